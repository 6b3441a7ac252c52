package results

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// LockFilename is the lock file name under the output directory.
const LockFilename = ".derive-census.lock"

// ErrOutputLocked indicates another process is writing the same output
// directory.
var ErrOutputLocked = errors.New("output directory is locked by another process")

// RunLock guards an output directory against concurrent runs using flock(2).
// The lock is released automatically if the process exits or crashes.
type RunLock struct {
	path string
	file *os.File
}

// AcquireRunLock takes the exclusive lock for the output directory without
// blocking. Returns ErrOutputLocked when another process holds it.
func AcquireRunLock(outDir string) (*RunLock, error) {
	path := filepath.Join(outDir, LockFilename)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = file.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return nil, ErrOutputLocked
		}
		return nil, fmt.Errorf("flock failed: %w", err)
	}

	return &RunLock{path: path, file: file}, nil
}

// Release drops the lock. Safe to call on an already released lock.
func (l *RunLock) Release() error {
	if l.file == nil {
		return nil
	}

	err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil

	if err != nil {
		return fmt.Errorf("flock unlock failed: %w", err)
	}
	if closeErr != nil {
		return fmt.Errorf("close failed: %w", closeErr)
	}
	return nil
}

// Path returns the lock file path.
func (l *RunLock) Path() string {
	return l.path
}
