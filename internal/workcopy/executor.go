// Package workcopy runs clone, pull and diff against local working copies
// and turns name-status diff output into file change records.
package workcopy

import (
	"context"
	"fmt"
	"strings"
)

// Result is the outcome of one source control invocation
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Succeeded reports a zero exit code
func (r Result) Succeeded() bool {
	return r.ExitCode == 0
}

// Output returns stderr when present, otherwise stdout
func (r Result) Output() string {
	if s := strings.TrimSpace(r.Stderr); s != "" {
		return s
	}
	return strings.TrimSpace(r.Stdout)
}

// Executor runs source control operations. A non-nil error means the
// operation could not be started at all; a command that ran and failed
// reports a non-zero ExitCode instead.
type Executor interface {
	Clone(ctx context.Context, url, dest string) (Result, error)
	Pull(ctx context.Context, dir string) (Result, error)
	DiffNameStatus(ctx context.Context, dir string) (Result, error)
}

// Executor kinds accepted by NewExecutor
const (
	KindGitCLI = "git"
	KindGoGit  = "go-git"
)

// TokenSource returns the current hosting credential, or "" when none is set
type TokenSource func() string

// NewExecutor builds an executor by kind; an empty kind selects the git CLI
func NewExecutor(kind string, token TokenSource) (Executor, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", KindGitCLI:
		return NewGitCLIExecutor(), nil
	case KindGoGit:
		return NewGoGitExecutor(token), nil
	default:
		return nil, fmt.Errorf("unknown executor %q (expected %s or %s)", kind, KindGitCLI, KindGoGit)
	}
}
