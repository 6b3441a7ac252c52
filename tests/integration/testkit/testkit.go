package testkit

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/derive-tools/derive-census/internal/app"
	"github.com/derive-tools/derive-census/internal/config"
	"github.com/derive-tools/derive-census/internal/domain"
	"github.com/derive-tools/derive-census/internal/repocache"
)

// RepoKey converts a repository full name to its cache directory name.
func RepoKey(fullName string) string {
	return strings.NewReplacer("/", "_", "\\", "_").Replace(fullName)
}

// SeedClone plants a directory under the cache root that passes clone
// validation: a .git marker plus the given files.
func SeedClone(t testing.TB, cacheRoot, fullName string, files map[string]string) {
	t.Helper()

	dir := filepath.Join(cacheRoot, RepoKey(fullName))
	if err := os.MkdirAll(filepath.Join(dir, ".git"), 0o755); err != nil {
		t.Fatalf("Failed to seed clone %s: %v", fullName, err)
	}
	for rel, content := range files {
		path := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("Failed to create %s: %v", rel, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("Failed to write %s: %v", rel, err)
		}
	}
}

// NewMockGit returns a MockExecutor that reports seeded clones as healthy.
func NewMockGit() *repocache.MockExecutor {
	mock := repocache.NewMockExecutor()
	mock.AddStickyResponse("git status", []byte(""), nil)
	return mock
}

// NewTestSettings returns a valid settings object rooted at outDir.
func NewTestSettings(outDir string) *config.Settings {
	return &config.Settings{
		GitHub: config.GitHubSettings{
			Language: "rust",
			MinStars: 100,
			Limit:    5,
		},
		Cache: config.CacheSettings{
			MaxRepositories: 10,
			MaxSizeGB:       5.0,
		},
		Scanner: config.ScannerSettings{
			GateMaxBytes:   200_000,
			GateMaxBraces:  500,
			GateMaxMacros:  100,
			GuardMaxBytes:  500_000,
			GuardMaxBraces: 1000,
			GuardMaxMacros: 200,
		},
		Output:  config.OutputSettings{Dir: outDir},
		Workers: 2,
	}
}

// NewRunParams builds RunParams that bypass loading, discovery and git, so a
// full run can execute against seeded clones only.
func NewRunParams(settings *config.Settings, repos []domain.Repository, git repocache.CommandExecutor) app.RunParams {
	return app.RunParams{
		LoadSettings:  func(*pflag.FlagSet) (*config.Settings, error) { return settings, nil },
		ValidSettings: config.ValidateSettings,
		Discover: func(context.Context, *config.Settings) ([]domain.Repository, error) {
			return repos, nil
		},
		Now:         func() time.Time { return time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC) },
		GitExecutor: git,
	}
}

// NewTestFlags creates a configured pflag.FlagSet for testing
func NewTestFlags(t testing.TB, outDir string) *pflag.FlagSet {
	t.Helper()

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	app.RegisterFlags(flags)
	_ = flags.Set("output", outDir)

	return flags
}
