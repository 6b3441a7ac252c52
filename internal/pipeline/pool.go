// Package pipeline schedules repository tasks across a bounded worker pool.
package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Processor handles one homogeneous task type. Implementations must be safe
// for concurrent use; every worker calls the same instance.
type Processor[T, R any] interface {
	// Process handles one task. An error marks the task failed without
	// affecting other tasks.
	Process(ctx context.Context, task T) (R, error)

	// CanProcess reports whether the task is admissible. Inadmissible
	// tasks are counted as skipped.
	CanProcess(task T) bool

	// Name identifies the processor in logs.
	Name() string

	// ConfigInfo describes the processor configuration for logs.
	ConfigInfo() string
}

// Stats aggregates task outcomes for one pool run.
type Stats struct {
	Successful int
	Failed     int
	Skipped    int
}

// Pool fans tasks out to a fixed number of workers. Run blocks until every
// worker has joined, so results are complete when it returns.
type Pool[T, R any] struct {
	workers int
}

// NewPool creates a pool with the given worker count; values below one are
// raised to one.
func NewPool[T, R any](workers int) *Pool[T, R] {
	if workers < 1 {
		workers = 1
	}
	return &Pool[T, R]{workers: workers}
}

// Run processes every task and returns the successful outputs in completion
// order together with the outcome counts. Task failures are recorded, not
// propagated; the only returned error is context cancellation.
func (p *Pool[T, R]) Run(ctx context.Context, tasks []T, proc Processor[T, R]) ([]R, Stats, error) {
	slog.Info("Starting worker pool",
		"workers", p.workers, "tasks", len(tasks),
		"processor", proc.Name(), "config", proc.ConfigInfo())

	var (
		mu      sync.Mutex
		outputs []R
		stats   Stats
	)

	taskCh := make(chan T)
	g, ctx := errgroup.WithContext(ctx)

	for w := 0; w < p.workers; w++ {
		g.Go(func() error {
			for task := range taskCh {
				if !proc.CanProcess(task) {
					mu.Lock()
					stats.Skipped++
					mu.Unlock()
					continue
				}

				output, err := proc.Process(ctx, task)
				mu.Lock()
				if err != nil {
					stats.Failed++
					slog.Warn("Task failed", "processor", proc.Name(), "error", err)
				} else {
					stats.Successful++
					outputs = append(outputs, output)
				}
				mu.Unlock()

				if ctx.Err() != nil {
					return ctx.Err()
				}
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(taskCh)
		for _, task := range tasks {
			select {
			case taskCh <- task:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	err := g.Wait()
	slog.Info("Worker pool finished",
		"successful", stats.Successful, "failed", stats.Failed, "skipped", stats.Skipped)
	return outputs, stats, err
}
