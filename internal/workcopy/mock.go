package workcopy

import (
	"context"
	"sync"
)

// MockExecutor implements Executor for testing
type MockExecutor struct {
	mu sync.Mutex

	// Calls records every invocation
	Calls []MockCall

	CloneResult Result
	PullResult  Result
	DiffResult  Result
	Err         error
}

// MockCall records a single invocation
type MockCall struct {
	Op   string
	URL  string
	Path string
}

// NewMockExecutor creates a mock whose operations all succeed with empty output
func NewMockExecutor() *MockExecutor {
	return &MockExecutor{}
}

func (m *MockExecutor) record(op, url, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, MockCall{Op: op, URL: url, Path: path})
}

// CallCount returns the number of recorded invocations of op
func (m *MockExecutor) CallCount(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.Calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// SetDiff replaces the diff result; safe while a watcher is polling
func (m *MockExecutor) SetDiff(res Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DiffResult = res
}

func (m *MockExecutor) Clone(ctx context.Context, url, dest string) (Result, error) {
	m.record("clone", url, dest)
	return m.CloneResult, m.Err
}

func (m *MockExecutor) Pull(ctx context.Context, dir string) (Result, error) {
	m.record("pull", "", dir)
	return m.PullResult, m.Err
}

func (m *MockExecutor) DiffNameStatus(ctx context.Context, dir string) (Result, error) {
	m.record("diff", "", dir)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.DiffResult, m.Err
}
