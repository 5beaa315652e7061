package workcopy

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/d1childress/ccmanager/internal/common"
	"github.com/d1childress/ccmanager/internal/observability"
	apperrors "github.com/d1childress/ccmanager/pkg/errors"
	"github.com/d1childress/ccmanager/pkg/models"
)

// DefaultHost is the hosting provider used to derive clone URLs
const DefaultHost = "github.com"

// Bridge runs working copy operations for repositories
type Bridge struct {
	exec   Executor
	host   string
	logger *observability.Logger
	now    func() time.Time
}

// Option configures a Bridge
type Option func(*Bridge)

// WithHost overrides the clone URL host
func WithHost(host string) Option {
	return func(b *Bridge) { b.host = host }
}

// WithClock overrides the detection timestamp source
func WithClock(now func() time.Time) Option {
	return func(b *Bridge) { b.now = now }
}

// NewBridge creates a bridge over an executor
func NewBridge(exec Executor, logger *observability.Logger, opts ...Option) *Bridge {
	b := &Bridge{
		exec:   exec,
		host:   DefaultHost,
		logger: observability.OrNop(logger).WithField("component", "workcopy"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Clone clones repo into localPath (tilde-expanded) and returns the absolute path
func (b *Bridge) Clone(ctx context.Context, repo models.Repository, localPath string) (string, error) {
	dest, err := common.ExpandHome(localPath)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeConfigInvalid, "invalid clone destination").
			WithContext("path", localPath)
	}

	if err := os.MkdirAll(filepath.Dir(dest), common.DirPermissionNormal); err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeCloneFailed, "Failed to clone repository").
			WithContext("path", dest)
	}

	url := repo.CloneURL(b.host)
	log := b.logger.WithFields(observability.Fields{"repository": repo.FullName, "dest": dest})
	start := time.Now()

	res, err := b.exec.Clone(ctx, url, dest)
	if err != nil {
		log.WithError(err).Error("clone could not run")
		if ctx.Err() != nil {
			return "", err
		}
		return "", apperrors.Wrap(err, apperrors.ErrCodeCloneFailed, "Failed to clone repository").
			WithContext("url", url)
	}
	if !res.Succeeded() {
		log.WithFields(observability.Fields{"exit_code": res.ExitCode, "output": res.Output()}).Error("clone failed")
		return "", apperrors.CloneFailed(url, res.ExitCode, res.Output())
	}

	log.WithField("latency_ms", observability.Since(start)).Info("repository cloned")
	return dest, nil
}

// Pull fast-forwards the working copy of repo
func (b *Bridge) Pull(ctx context.Context, repo models.Repository) error {
	if !repo.HasLocalPath() {
		return apperrors.NoLocalPath(repo.FullName)
	}

	log := b.logger.WithFields(observability.Fields{"repository": repo.FullName, "path": repo.LocalPath})
	start := time.Now()

	res, err := b.exec.Pull(ctx, repo.LocalPath)
	if err != nil {
		log.WithError(err).Error("pull could not run")
		if ctx.Err() != nil {
			return err
		}
		return apperrors.Wrap(err, apperrors.ErrCodeCommandFailed, "Git command failed").
			WithContext("command", "git pull --ff-only")
	}
	if !res.Succeeded() {
		log.WithFields(observability.Fields{"exit_code": res.ExitCode, "output": res.Output()}).Error("pull failed")
		return apperrors.CommandFailed("git pull --ff-only", res.ExitCode, res.Output())
	}

	log.WithField("latency_ms", observability.Since(start)).Debug("pulled latest")
	return nil
}

// Changes lists the working copy's changes against HEAD. Line counts are
// zero and patches are empty; this path never reads patch bodies.
func (b *Bridge) Changes(ctx context.Context, repo models.Repository) ([]models.FileChange, error) {
	if !repo.HasLocalPath() {
		return nil, apperrors.NoLocalPath(repo.FullName)
	}

	res, err := b.exec.DiffNameStatus(ctx, repo.LocalPath)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeCommandFailed, "Git command failed").
			WithContext("command", "git diff --name-status HEAD")
	}
	if !res.Succeeded() {
		return nil, apperrors.CommandFailed("git diff --name-status HEAD", res.ExitCode, res.Output())
	}

	entries := ParseNameStatus(res.Stdout)
	detected := b.now()
	changes := make([]models.FileChange, 0, len(entries))
	for _, e := range entries {
		changes = append(changes, models.FileChange{
			ID:         uuid.NewString(),
			Path:       e.Path,
			Kind:       e.Kind,
			DetectedAt: detected,
		})
	}

	b.logger.WithFields(observability.Fields{"repository": repo.FullName, "changes": len(changes)}).Debug("changes detected")
	return changes, nil
}
