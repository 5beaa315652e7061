package workcopy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
)

// exit codes reported for go-git failures, matching what the git CLI uses
const (
	exitGeneric = 1
	exitFatal   = 128
)

// GoGitExecutor runs operations in-process with go-git, without a git binary.
// The diff is computed from worktree status against HEAD.
type GoGitExecutor struct {
	token TokenSource
}

// NewGoGitExecutor creates an in-process executor; token may be nil
func NewGoGitExecutor(token TokenSource) *GoGitExecutor {
	return &GoGitExecutor{token: token}
}

func (g *GoGitExecutor) Clone(ctx context.Context, url, dest string) (Result, error) {
	_, err := git.PlainCloneContext(ctx, dest, false, &git.CloneOptions{
		URL:  url,
		Auth: g.auth(url),
	})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{}, ctxErr
	}
	if err != nil {
		return Result{ExitCode: exitFatal, Stderr: fmt.Sprintf("fatal: %v", err)}, nil
	}
	return Result{Stderr: fmt.Sprintf("Cloning into '%s'...", dest)}, nil
}

func (g *GoGitExecutor) Pull(ctx context.Context, dir string) (Result, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return Result{ExitCode: exitFatal, Stderr: fmt.Sprintf("fatal: %v", err)}, nil
	}

	wt, err := repo.Worktree()
	if err != nil {
		return Result{ExitCode: exitFatal, Stderr: fmt.Sprintf("fatal: %v", err)}, nil
	}

	url := ""
	if remote, err := repo.Remote(git.DefaultRemoteName); err == nil && len(remote.Config().URLs) > 0 {
		url = remote.Config().URLs[0]
	}

	// go-git only performs fast-forward merges, which is the --ff-only contract
	err = wt.PullContext(ctx, &git.PullOptions{
		RemoteName: git.DefaultRemoteName,
		Auth:       g.auth(url),
	})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{}, ctxErr
	}

	switch {
	case err == nil:
		return Result{Stdout: "Fast-forward"}, nil
	case errors.Is(err, git.NoErrAlreadyUpToDate):
		return Result{Stdout: "Already up to date."}, nil
	case errors.Is(err, git.ErrNonFastForwardUpdate):
		return Result{ExitCode: exitFatal, Stderr: "fatal: Not possible to fast-forward, aborting."}, nil
	default:
		return Result{ExitCode: exitGeneric, Stderr: fmt.Sprintf("error: %v", err)}, nil
	}
}

func (g *GoGitExecutor) DiffNameStatus(ctx context.Context, dir string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	repo, err := git.PlainOpen(dir)
	if err != nil {
		return Result{ExitCode: exitFatal, Stderr: fmt.Sprintf("fatal: %v", err)}, nil
	}
	wt, err := repo.Worktree()
	if err != nil {
		return Result{ExitCode: exitFatal, Stderr: fmt.Sprintf("fatal: %v", err)}, nil
	}
	status, err := wt.Status()
	if err != nil {
		return Result{ExitCode: exitFatal, Stderr: fmt.Sprintf("fatal: %v", err)}, nil
	}

	return Result{Stdout: formatNameStatus(status)}, nil
}

// formatNameStatus renders tracked changes against HEAD the way
// `git diff --name-status HEAD` does: sorted by path, untracked files omitted.
func formatNameStatus(status git.Status) string {
	paths := make([]string, 0, len(status))
	for path := range status {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var b strings.Builder
	for _, path := range paths {
		fs := status[path]

		code := fs.Staging
		if code == git.Unmodified || code == git.Untracked {
			code = fs.Worktree
		}
		if fs.Staging == git.Added && fs.Worktree == git.Deleted {
			continue
		}

		switch code {
		case git.Added, git.Modified, git.Deleted:
			fmt.Fprintf(&b, "%c\t%s\n", code, path)
		case git.Renamed:
			if fs.Extra != "" {
				fmt.Fprintf(&b, "R\t%s\t%s\n", fs.Extra, path)
			} else {
				fmt.Fprintf(&b, "R\t%s\n", path)
			}
		}
	}
	return b.String()
}

// auth returns token credentials for HTTPS remotes when a token is available
func (g *GoGitExecutor) auth(url string) transport.AuthMethod {
	if g.token == nil || !strings.HasPrefix(url, "https://") {
		return nil
	}
	token := g.token()
	if token == "" {
		return nil
	}
	return &http.BasicAuth{
		Username: "token",
		Password: token,
	}
}
