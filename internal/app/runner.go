package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"

	"github.com/derive-tools/derive-census/internal/config"
	"github.com/derive-tools/derive-census/internal/domain"
	"github.com/derive-tools/derive-census/internal/ghsearch"
	"github.com/derive-tools/derive-census/internal/pipeline"
	"github.com/derive-tools/derive-census/internal/repocache"
	"github.com/derive-tools/derive-census/internal/results"
	"github.com/derive-tools/derive-census/internal/scanner"
)

// RunParams contains dependencies for the run function
type RunParams struct {
	LoadSettings  func(*pflag.FlagSet) (*config.Settings, error)
	ValidSettings func(*config.Settings) error
	Discover      func(context.Context, *config.Settings) ([]domain.Repository, error)
	Now           func() time.Time

	// GitExecutor overrides command execution (for testing)
	GitExecutor repocache.CommandExecutor
}

// DefaultRunParams returns production dependencies
func DefaultRunParams() RunParams {
	return RunParams{
		LoadSettings:  config.LoadSettingsWithFlags,
		ValidSettings: config.ValidateSettings,
		Discover:      discoverRepositories,
		Now:           time.Now,
	}
}

func discoverRepositories(ctx context.Context, settings *config.Settings) ([]domain.Repository, error) {
	client := ghsearch.NewClient(ctx, settings.GitHub.Token, settings.GitHub.Language)
	return client.Discover(ctx, settings.GitHub.Limit, settings.GitHub.MinStars)
}

// RunWithDeps executes the analysis with the provided dependencies.
func RunWithDeps(ctx context.Context, params RunParams, flags *pflag.FlagSet, version string) error {
	settings, err := params.LoadSettings(flags)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	if err := params.ValidSettings(settings); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Configure logging - always use stderr so artifacts stay clean
	level := slog.LevelInfo
	if settings.Verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))

	slog.Info("Starting derive census", "version", version)
	config.Log(settings)

	// One run owns the output directory at a time.
	lock, err := results.AcquireRunLock(settings.Output.Dir)
	if err != nil {
		return fmt.Errorf("lock output directory: %w", err)
	}
	defer func() {
		if rerr := lock.Release(); rerr != nil {
			slog.Warn("Failed to release run lock", "error", rerr)
		}
	}()

	repos, err := params.Discover(ctx, settings)
	if err != nil {
		if ghsearch.IsFatal(err) {
			slog.Error("Discovery aborted by API error", "error", err)
			return fmt.Errorf("repository discovery aborted: %w", err)
		}
		return fmt.Errorf("repository discovery: %w", err)
	}
	if len(repos) == 0 {
		slog.Warn("No repositories found matching criteria")
		return nil
	}
	slog.Info("Discovered repositories for analysis", "count", len(repos))

	cacheCfg := repocache.Config{
		Root:            filepath.Join(settings.Output.Dir, "cache"),
		MaxRepositories: settings.Cache.MaxRepositories,
		MaxSizeGB:       settings.Cache.MaxSizeGB,
	}
	git := repocache.NewGitClient()
	if params.GitExecutor != nil {
		git = repocache.NewGitClientWithExecutor(params.GitExecutor)
	}
	cache, err := repocache.NewCache(cacheCfg, git)
	if err != nil {
		return fmt.Errorf("initialize repository cache: %w", err)
	}
	if settings.Cache.Cleanup {
		defer func() {
			if cerr := cache.Cleanup(); cerr != nil {
				slog.Warn("Cache cleanup failed", "error", cerr)
			} else {
				slog.Info("Cache cleaned up")
			}
		}()
	}

	store := results.NewStore(settings.Output.Dir)
	sc := scanner.NewWithGuard(guardThresholds(settings))
	processor := pipeline.NewRepoProcessor(cache, cacheCfg, sc, gateThresholds(settings), store)

	pool := pipeline.NewPool[domain.Repository, domain.RepositoryResult](settings.Workers)
	_, stats, err := pool.Run(ctx, repos, processor)
	if err != nil {
		return fmt.Errorf("repository processing: %w", err)
	}

	repoResults := store.Results()
	totalFiles := 0
	for _, r := range repoResults {
		slog.Info("Repository result",
			"repository", r.Repository,
			"files", r.FilesProcessed,
			"findings", len(r.Findings))
		totalFiles += r.FilesProcessed
	}

	findings := store.Findings()
	slog.Info("Processing complete",
		"successful", stats.Successful, "failed", stats.Failed, "skipped", stats.Skipped,
		"files", totalFiles, "findings", len(findings))

	if len(findings) == 0 {
		slog.Warn("No derive statements found in any repositories")
		return nil
	}

	outDir := settings.Output.Dir
	if err := results.WriteJSON(filepath.Join(outDir, results.FindingsFile), findings); err != nil {
		return fmt.Errorf("save JSON output: %w", err)
	}
	if err := results.WriteCSV(filepath.Join(outDir, results.CSVFile), findings); err != nil {
		return fmt.Errorf("save CSV output: %w", err)
	}
	summary := results.BuildSummary(findings, params.Now())
	if err := results.WriteSummary(filepath.Join(outDir, results.SummaryFile), summary); err != nil {
		return fmt.Errorf("save summary output: %w", err)
	}

	if settings.Output.Index {
		indexPath := filepath.Join(outDir, results.IndexFilename)
		count, err := results.BuildIndex(indexPath, findings)
		if err != nil {
			return fmt.Errorf("build findings index: %w", err)
		}
		slog.Info("Findings index built", "documents", count, "path", indexPath)
	}

	slog.Info("Analysis complete",
		"repositories", stats.Successful,
		"derive_statements", len(findings),
		"output_dir", outDir)
	return nil
}

// gateThresholds builds the pipeline-level routing thresholds from settings,
// keeping the built-in pathological path and content fragments.
func gateThresholds(settings *config.Settings) scanner.RiskThresholds {
	t := scanner.DefaultGateThresholds()
	t.MaxContentBytes = settings.Scanner.GateMaxBytes
	t.MaxOpenBraces = settings.Scanner.GateMaxBraces
	t.MaxMacroCount = settings.Scanner.GateMaxMacros
	return t
}

// guardThresholds builds the in-scanner thresholds from settings.
func guardThresholds(settings *config.Settings) scanner.RiskThresholds {
	t := scanner.DefaultGuardThresholds()
	t.MaxContentBytes = settings.Scanner.GuardMaxBytes
	t.MaxOpenBraces = settings.Scanner.GuardMaxBraces
	t.MaxCloseBraces = settings.Scanner.GuardMaxBraces
	t.MaxMacroCount = settings.Scanner.GuardMaxMacros
	return t
}
