package results

import (
	"path/filepath"
	"testing"

	"github.com/derive-tools/derive-census/internal/domain"
)

func testFindings() []domain.Finding {
	return []domain.Finding{
		{
			Repository: "tokio-rs/tokio",
			FilePath:   "src/sync/mutex.rs",
			LineNumber: 12,
			Derives:    []string{"Debug"},
			FullLine:   "#[derive(Debug)]",
		},
		{
			Repository: "serde-rs/serde",
			FilePath:   "src/de/mod.rs",
			LineNumber: 40,
			Derives:    []string{"Clone", "Debug"},
			FullLine:   "#[derive(Clone, Debug)]",
		},
		{
			Repository: "serde-rs/serde",
			FilePath:   "src/ser/mod.rs",
			LineNumber: 8,
			Derives:    []string{"Serialize"},
			FullLine:   "#[derive(Serialize)]",
		},
	}
}

func TestBuildIndexAndSearch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "findings.bleve")

	count, err := BuildIndex(path, testFindings())
	if err != nil {
		t.Fatalf("BuildIndex failed: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 indexed documents, got %d", count)
	}

	hits, total, err := SearchIndex(path, "Debug", "", 10)
	if err != nil {
		t.Fatalf("SearchIndex failed: %v", err)
	}
	if total != 2 {
		t.Errorf("expected 2 hits for Debug, got %d", total)
	}
	if len(hits) == 0 || len(hits[0].Derives) == 0 {
		t.Fatalf("expected populated hits, got %+v", hits)
	}
}

func TestSearchIndexRepositoryFilter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "findings.bleve")
	if _, err := BuildIndex(path, testFindings()); err != nil {
		t.Fatal(err)
	}

	hits, total, err := SearchIndex(path, "Debug", "serde-rs/serde", 10)
	if err != nil {
		t.Fatalf("SearchIndex failed: %v", err)
	}
	if total != 1 {
		t.Errorf("expected 1 filtered hit, got %d", total)
	}
	if len(hits) == 1 && hits[0].Repository != "serde-rs/serde" {
		t.Errorf("unexpected repository: %s", hits[0].Repository)
	}
}

func TestBuildIndexReplacesPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "findings.bleve")

	if _, err := BuildIndex(path, testFindings()); err != nil {
		t.Fatal(err)
	}
	count, err := BuildIndex(path, testFindings()[:1])
	if err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected rebuilt index with 1 document, got %d", count)
	}

	_, total, err := SearchIndex(path, "Serialize", "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if total != 0 {
		t.Errorf("expected old documents gone, got %d hits", total)
	}
}

func TestSearchIndexMissing(t *testing.T) {
	if _, _, err := SearchIndex(filepath.Join(t.TempDir(), "absent.bleve"), "Debug", "", 10); err == nil {
		t.Error("expected error for missing index")
	}
}
