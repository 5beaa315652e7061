package workcopy

import (
	"bytes"
	"context"
	"errors"
	osexec "os/exec"
)

// GitCLIExecutor shells out to the git binary
type GitCLIExecutor struct {
	// Binary is the git executable; defaults to "git" on PATH
	Binary string
	// Env overrides environment variables (nil = inherit from parent)
	Env []string
}

// NewGitCLIExecutor creates an executor using git from PATH
func NewGitCLIExecutor() *GitCLIExecutor {
	return &GitCLIExecutor{Binary: "git"}
}

func (g *GitCLIExecutor) Clone(ctx context.Context, url, dest string) (Result, error) {
	return g.run(ctx, "", "clone", url, dest)
}

func (g *GitCLIExecutor) Pull(ctx context.Context, dir string) (Result, error) {
	return g.run(ctx, dir, "pull", "--ff-only")
}

func (g *GitCLIExecutor) DiffNameStatus(ctx context.Context, dir string) (Result, error) {
	return g.run(ctx, dir, "diff", "--name-status", "HEAD")
}

func (g *GitCLIExecutor) run(ctx context.Context, dir string, args ...string) (Result, error) {
	binary := g.Binary
	if binary == "" {
		binary = "git"
	}

	cmd := osexec.CommandContext(ctx, binary, args...)
	cmd.Dir = dir
	if g.Env != nil {
		cmd.Env = g.Env
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, ctxErr
	}

	var exitErr *osexec.ExitError
	switch {
	case err == nil:
		return res, nil
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	default:
		return res, err
	}
}
