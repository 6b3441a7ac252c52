package repocache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

// MockExecutor records commands and returns configured responses. Safe for
// concurrent use so it can stand in for git under parallel workers.
// This is exported for use in integration tests.
type MockExecutor struct {
	mu       sync.Mutex
	commands []MockCommand
	calls    []ExecutorCall
}

// MockCommand defines a mock response for a command prefix.
type MockCommand struct {
	NamePrefix string
	Output     []byte
	Err        error
	// Sticky responses are not consumed and keep matching.
	Sticky bool
}

// ExecutorCall records a command invocation.
type ExecutorCall struct {
	Dir  string
	Name string
	Args []string
}

// NewMockExecutor creates a new mock executor.
func NewMockExecutor() *MockExecutor {
	return &MockExecutor{
		commands: make([]MockCommand, 0),
		calls:    make([]ExecutorCall, 0),
	}
}

// AddResponse adds a one-shot mock response for commands matching the given prefix.
func (m *MockExecutor) AddResponse(namePrefix string, output []byte, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = append(m.commands, MockCommand{
		NamePrefix: namePrefix,
		Output:     output,
		Err:        err,
	})
}

// AddStickyResponse adds a mock response that matches any number of times.
func (m *MockExecutor) AddStickyResponse(namePrefix string, output []byte, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = append(m.commands, MockCommand{
		NamePrefix: namePrefix,
		Output:     output,
		Err:        err,
		Sticky:     true,
	})
}

// Run executes a command and returns the configured mock response.
func (m *MockExecutor) Run(_ context.Context, dir string, name string, args ...string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	call := ExecutorCall{Dir: dir, Name: name, Args: args}
	m.calls = append(m.calls, call)

	// Build full command string for matching
	fullCmd := name + " " + strings.Join(args, " ")

	// Find matching response
	for i, cmd := range m.commands {
		if strings.HasPrefix(fullCmd, cmd.NamePrefix) {
			if !cmd.Sticky {
				m.commands = append(m.commands[:i], m.commands[i+1:]...)
			}
			return cmd.Output, cmd.Err
		}
	}

	return nil, errors.New("no mock response configured for: " + fullCmd)
}

// GetCalls returns all recorded command calls.
func (m *MockExecutor) GetCalls() []ExecutorCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ExecutorCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CountCalls returns the number of recorded calls whose command line starts
// with the given prefix.
func (m *MockExecutor) CountCalls(namePrefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, call := range m.calls {
		fullCmd := call.Name + " " + strings.Join(call.Args, " ")
		if strings.HasPrefix(fullCmd, namePrefix) {
			count++
		}
	}
	return count
}

// MustGetLastCall returns the last recorded call, fails the test if no calls were made.
func (m *MockExecutor) MustGetLastCall(t *testing.T) ExecutorCall {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		t.Fatal("Expected at least one command call")
	}
	return m.calls[len(m.calls)-1]
}
