package repocache

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// CommandExecutor abstracts command execution for testing.
type CommandExecutor interface {
	// Run executes a command and returns its standard output.
	Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error)
}

// DefaultExecutor executes commands using os/exec.
type DefaultExecutor struct{}

// Run executes a command and returns its standard output.
func (e *DefaultExecutor) Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if dir != "" {
		cmd.Dir = dir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		// Include stderr in error message for debugging
		if stderr.Len() > 0 {
			return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return nil, err
	}

	return stdout.Bytes(), nil
}

// GitClient executes git and filesystem inspection commands for the cache.
type GitClient struct {
	executor CommandExecutor
}

// NewGitClient creates a new GitClient with the default command executor.
func NewGitClient() *GitClient {
	return &GitClient{
		executor: &DefaultExecutor{},
	}
}

// NewGitClientWithExecutor creates a GitClient with a custom executor (for testing).
func NewGitClientWithExecutor(executor CommandExecutor) *GitClient {
	return &GitClient{
		executor: executor,
	}
}

// Clone performs a shallow clone of the repository.
// Uses --depth 1 and --single-branch for efficiency.
func (g *GitClient) Clone(ctx context.Context, url, destDir string) error {
	_, err := g.executor.Run(ctx, "", "git", "clone",
		"--depth", "1",
		"--single-branch",
		url,
		destDir,
	)
	if err != nil {
		return fmt.Errorf("git clone failed: %w", err)
	}
	return nil
}

// StatusOK reports whether git can read the working copy. The output is
// discarded; a failing status means the clone is corrupt and must be redone.
func (g *GitClient) StatusOK(ctx context.Context, repoDir string) bool {
	_, err := g.executor.Run(ctx, repoDir, "git", "status", "--porcelain")
	return err == nil
}

// DiskUsage returns the total size of a directory tree in bytes, as reported
// by du. Hidden files and git metadata are included.
func (g *GitClient) DiskUsage(ctx context.Context, dir string) (int64, error) {
	output, err := g.executor.Run(ctx, "", "du", "-sb", dir)
	if err != nil {
		return 0, fmt.Errorf("du failed: %w", err)
	}

	// Output is "<bytes>\t<path>"
	fields := strings.Fields(strings.TrimSpace(string(output)))
	if len(fields) == 0 {
		return 0, fmt.Errorf("du produced no output for %s", dir)
	}
	size, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse du output %q: %w", fields[0], err)
	}
	return size, nil
}
