package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/derive-tools/derive-census/internal/domain"
	"github.com/derive-tools/derive-census/internal/repocache"
	"github.com/derive-tools/derive-census/internal/results"
	"github.com/derive-tools/derive-census/internal/scanner"
)

type processorFixture struct {
	proc  *RepoProcessor
	store *results.Store
	mock  *repocache.MockExecutor
	root  string
}

func newProcessorFixture(t *testing.T) *processorFixture {
	t.Helper()

	root := t.TempDir()
	mock := repocache.NewMockExecutor()
	mock.AddStickyResponse("git status", []byte(""), nil)

	cfg := repocache.Config{Root: root, MaxRepositories: 10}
	cache, err := repocache.NewCache(cfg, repocache.NewGitClientWithExecutor(mock))
	if err != nil {
		t.Fatal(err)
	}

	store := results.NewStore("")
	proc := NewRepoProcessor(cache, cfg, scanner.New(), scanner.DefaultGateThresholds(), store)
	return &processorFixture{proc: proc, store: store, mock: mock, root: root}
}

// seedClone plants a valid-looking clone under the cache root so Ensure
// treats it as a cache hit.
func (f *processorFixture) seedClone(t *testing.T, fullName string, files map[string]string) {
	t.Helper()
	dir := filepath.Join(f.root, strings.ReplaceAll(fullName, "/", "_"))
	if err := os.MkdirAll(filepath.Join(dir, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	for rel, content := range files {
		path := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestProcessScansRepository(t *testing.T) {
	f := newProcessorFixture(t)
	f.seedClone(t, "owner/repo", map[string]string{
		"src/lib.rs":  "#[derive(Clone, Debug)]\nstruct A;\n",
		"src/main.rs": "fn main() {}\n",
		"README.md":   "docs\n",
	})

	result, err := f.proc.Process(context.Background(), domain.Repository{
		FullName: "owner/repo",
		CloneURL: "https://example.com/owner/repo.git",
	})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if result.FilesProcessed != 2 {
		t.Errorf("FilesProcessed = %d, want 2", result.FilesProcessed)
	}
	if len(result.Findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(result.Findings))
	}
	finding := result.Findings[0]
	if finding.Repository != "owner/repo" || finding.FilePath != "src/lib.rs" {
		t.Errorf("unexpected finding location: %s %s", finding.Repository, finding.FilePath)
	}

	if got := f.store.Findings(); len(got) != 1 {
		t.Errorf("expected result appended to store, got %d findings", len(got))
	}
}

func TestProcessCloneFailure(t *testing.T) {
	f := newProcessorFixture(t)
	f.mock.AddResponse("git clone", nil, errors.New("remote: not found"))

	_, err := f.proc.Process(context.Background(), domain.Repository{
		FullName: "owner/gone",
		CloneURL: "https://example.com/owner/gone.git",
	})
	if err == nil {
		t.Fatal("expected clone failure to fail the task")
	}
	if !strings.Contains(err.Error(), "acquire owner/gone") {
		t.Errorf("unexpected error: %v", err)
	}

	if got := f.store.Findings(); len(got) != 0 {
		t.Errorf("failed task must not append results, got %d", len(got))
	}
}

func TestProcessEmptyRepository(t *testing.T) {
	f := newProcessorFixture(t)
	f.seedClone(t, "owner/empty", map[string]string{"README.md": "no sources\n"})

	result, err := f.proc.Process(context.Background(), domain.Repository{FullName: "owner/empty"})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if result.FilesProcessed != 0 || len(result.Findings) != 0 {
		t.Errorf("expected empty result, got %+v", result)
	}

	// Empty repositories still record a result.
	if got := f.store.Results(); len(got) != 1 {
		t.Errorf("expected 1 stored result, got %d", len(got))
	}
}

func TestProcessGateRoutesRiskyFile(t *testing.T) {
	f := newProcessorFixture(t)
	// A multi-line derive only the structured tier can see, placed at a
	// path the gate marks as pathological.
	f.seedClone(t, "owner/repo", map[string]string{
		"associated-consts/a.rs": "#[derive(\n    Clone,\n)]\nstruct A;\n",
		"src/ok.rs":              "#[derive(\n    Clone,\n)]\nstruct B;\n",
	})

	result, err := f.proc.Process(context.Background(), domain.Repository{FullName: "owner/repo"})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if len(result.Findings) != 1 {
		t.Fatalf("expected only the ungated file to yield a finding, got %d", len(result.Findings))
	}
	if result.Findings[0].FilePath != "src/ok.rs" {
		t.Errorf("unexpected finding file: %s", result.Findings[0].FilePath)
	}
}

func TestCanProcess(t *testing.T) {
	f := newProcessorFixture(t)

	if f.proc.CanProcess(domain.Repository{}) {
		t.Error("empty descriptor must be rejected")
	}
	if !f.proc.CanProcess(domain.Repository{FullName: "owner/repo"}) {
		t.Error("valid descriptor must be accepted")
	}
}

func TestProcessorConfigInfo(t *testing.T) {
	f := newProcessorFixture(t)

	info := f.proc.ConfigInfo()
	if !strings.Contains(info, "cache_limit=10") {
		t.Errorf("unexpected config info: %s", info)
	}
	if f.proc.Name() != "RepositoryProcessor" {
		t.Errorf("unexpected name: %s", f.proc.Name())
	}
}
