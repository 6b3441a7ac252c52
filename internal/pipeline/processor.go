package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/derive-tools/derive-census/internal/domain"
	"github.com/derive-tools/derive-census/internal/repocache"
	"github.com/derive-tools/derive-census/internal/results"
	"github.com/derive-tools/derive-census/internal/scanner"
)

// RepoProcessor acquires one repository, scans its source files, and appends
// the outcome to the shared result store. All workers share one processor:
// the cache serializes admission and the store serializes appends.
type RepoProcessor struct {
	cache    *repocache.Cache
	cacheCfg repocache.Config
	scanner  *scanner.Scanner
	gate     scanner.RiskThresholds
	store    *results.Store
}

// NewRepoProcessor creates a processor over the shared cache and store. The
// gate thresholds route risky files straight to the text tier before the
// scanner sees them.
func NewRepoProcessor(cache *repocache.Cache, cacheCfg repocache.Config, sc *scanner.Scanner, gate scanner.RiskThresholds, store *results.Store) *RepoProcessor {
	return &RepoProcessor{
		cache:    cache,
		cacheCfg: cacheCfg,
		scanner:  sc,
		gate:     gate,
		store:    store,
	}
}

// Process clones or reuses the repository, scans every source file, and
// records the result. A clone failure fails the whole task; a file read
// failure skips only that file.
func (p *RepoProcessor) Process(ctx context.Context, repo domain.Repository) (domain.RepositoryResult, error) {
	slog.Info("Processing repository", "repository", repo.FullName)

	repoPath, err := p.cache.Ensure(ctx, repo)
	if err != nil {
		return domain.RepositoryResult{}, fmt.Errorf("acquire %s: %w", repo.FullName, err)
	}

	files, err := repocache.FindSourceFiles(repoPath)
	if err != nil {
		return domain.RepositoryResult{}, fmt.Errorf("enumerate sources in %s: %w", repo.FullName, err)
	}

	result := domain.RepositoryResult{Repository: repo.FullName}
	if len(files) == 0 {
		slog.Info("No source files found, skipping scan", "repository", repo.FullName)
		p.store.Append(result)
		return result, nil
	}

	slog.Info("Scanning source files", "repository", repo.FullName, "files", len(files))
	for _, file := range files {
		if ctx.Err() != nil {
			return domain.RepositoryResult{}, ctx.Err()
		}

		content, err := os.ReadFile(file)
		if err != nil {
			slog.Warn("Failed to read source file", "file", file, "error", err)
			continue
		}

		relPath, err := filepath.Rel(repoPath, file)
		if err != nil {
			relPath = file
		}

		findings := p.scanFile(repo.FullName, relPath, string(content))
		if len(findings) > 0 {
			slog.Debug("Found derive statements",
				"repository", repo.FullName, "file", relPath, "count", len(findings))
			result.Findings = append(result.Findings, findings...)
		}
		result.FilesProcessed++
	}

	slog.Info("Finished repository",
		"repository", repo.FullName,
		"files", result.FilesProcessed,
		"findings", len(result.Findings))

	p.store.Append(result)
	return result, nil
}

// scanFile applies the gate before handing the file to the scanner. Gated
// files take the text tier directly.
func (p *RepoProcessor) scanFile(repository, relPath, content string) []domain.Finding {
	qualified := repository + "/" + relPath
	if p.gate.Risky(qualified, content) {
		slog.Debug("Gate routed file to text tier", "file", qualified)
		return p.scanner.ExtractTextOnly(repository, relPath, content)
	}
	return p.scanner.Extract(repository, relPath, content)
}

// CanProcess rejects descriptors without a repository key.
func (p *RepoProcessor) CanProcess(repo domain.Repository) bool {
	return repo.FullName != ""
}

// Name identifies the processor in logs.
func (p *RepoProcessor) Name() string {
	return "RepositoryProcessor"
}

// ConfigInfo describes the processor configuration for logs.
func (p *RepoProcessor) ConfigInfo() string {
	return fmt.Sprintf("RepositoryProcessor: cache_limit=%d, cache_size=%gGB",
		p.cacheCfg.MaxRepositories, p.cacheCfg.MaxSizeGB)
}
