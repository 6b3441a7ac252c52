// Package results owns everything downstream of scanning: the shared result
// store, artifact persistence, the frequency summary, and the optional
// findings search index.
package results

import (
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/derive-tools/derive-census/internal/domain"
)

// Store is a concurrency-safe append-only collection of repository results.
// Workers append as they finish; after each append the full finding set is
// checkpointed to disk so a crash loses at most one repository's work.
// Checkpoint failures are logged, never propagated.
type Store struct {
	mu      sync.Mutex
	results []domain.RepositoryResult
	outDir  string
}

// NewStore creates a store that checkpoints into outDir. An empty outDir
// disables checkpointing.
func NewStore(outDir string) *Store {
	return &Store{outDir: outDir}
}

// Append records one repository result and writes the checkpoint snapshot.
func (s *Store) Append(result domain.RepositoryResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results = append(s.results, result)

	if s.outDir == "" {
		return
	}
	findings := s.flattenLocked()
	if len(findings) == 0 {
		return
	}

	path := filepath.Join(s.outDir, CheckpointFile)
	if err := WriteJSON(path, findings); err != nil {
		slog.Warn("Failed to write checkpoint", "repository", result.Repository, "error", err)
		return
	}
	slog.Info("Checkpoint written", "repository", result.Repository, "total_findings", len(findings))
}

// Findings returns every finding appended so far, in append order.
func (s *Store) Findings() []domain.Finding {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flattenLocked()
}

// Results returns a snapshot of the per-repository results.
func (s *Store) Results() []domain.RepositoryResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.RepositoryResult, len(s.results))
	copy(out, s.results)
	return out
}

func (s *Store) flattenLocked() []domain.Finding {
	var findings []domain.Finding
	for _, r := range s.results {
		findings = append(findings, r.Findings...)
	}
	return findings
}
