// Package catalog lists repositories from the hosting provider and runs
// working copy operations on them.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/d1childress/ccmanager/internal/notify"
	"github.com/d1childress/ccmanager/internal/observability"
	"github.com/d1childress/ccmanager/internal/workcopy"
	apperrors "github.com/d1childress/ccmanager/pkg/errors"
	"github.com/d1childress/ccmanager/pkg/models"
)

const (
	// DefaultBaseURL is the hosting provider REST endpoint
	DefaultBaseURL = "https://api.github.com"
	// PageSize is the fixed page size; only the first page is fetched
	PageSize = 100

	provider = "github"
)

// EventKind identifies a catalog state change
type EventKind string

const (
	EventAuthenticated        EventKind = "authenticated"
	EventLoading              EventKind = "loading"
	EventRepositoriesReplaced EventKind = "repositories_replaced"
	EventRepositoryUpdated    EventKind = "repository_updated"
	EventFetchFailed          EventKind = "fetch_failed"
)

// Event carries the catalog state after a change was applied
type Event struct {
	Kind         EventKind
	Repositories []models.Repository
	Loading      bool
	Error        string
}

// Catalog holds the authenticated repository list
type Catalog struct {
	mu            sync.Mutex
	baseURL       string
	client        *http.Client
	bridge        *workcopy.Bridge
	logger        *observability.Logger
	now           func() time.Time
	token         string
	authenticated bool
	repos         []models.Repository
	loading       bool
	lastErr       string
	hub           notify.Hub[Event]
}

// Option configures a Catalog
type Option func(*Catalog)

// WithBaseURL overrides the hosting API endpoint
func WithBaseURL(url string) Option {
	return func(c *Catalog) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithHTTPClient overrides the HTTP client; the default has no explicit timeout
func WithHTTPClient(client *http.Client) Option {
	return func(c *Catalog) { c.client = client }
}

// New creates a catalog that runs working copy operations through bridge
func New(bridge *workcopy.Bridge, logger *observability.Logger, opts ...Option) *Catalog {
	c := &Catalog{
		baseURL: DefaultBaseURL,
		client:  http.DefaultClient,
		bridge:  bridge,
		logger:  observability.OrNop(logger).WithField("component", "catalog"),
		now:     time.Now,
		repos:   []models.Repository{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe registers fn for catalog events
func (c *Catalog) Subscribe(fn func(Event)) (unsubscribe func()) {
	return c.hub.Subscribe(fn)
}

// SetToken installs a token without fetching. An empty token signs out.
func (c *Catalog) SetToken(token string) {
	c.mu.Lock()
	c.token = strings.TrimSpace(token)
	c.authenticated = c.token != ""
	c.hub.Enqueue(c.eventLocked(EventAuthenticated))
	c.mu.Unlock()
	c.hub.Flush()
}

// Authenticate stores the token and fetches the repository list immediately
func (c *Catalog) Authenticate(ctx context.Context, token string) error {
	c.SetToken(token)
	return c.FetchRepositories(ctx)
}

// Seed replaces the list with previously persisted repositories
func (c *Catalog) Seed(repos []models.Repository) {
	c.mu.Lock()
	c.repos = dedupe(repos)
	c.hub.Enqueue(c.eventLocked(EventRepositoriesReplaced))
	c.mu.Unlock()
	c.hub.Flush()
}

// FetchRepositories replaces the list with the first page of the user's
// repositories. On failure the error is recorded and returned and the
// previous list is kept.
func (c *Catalog) FetchRepositories(ctx context.Context) error {
	c.mu.Lock()
	token := c.token
	c.loading = true
	c.hub.Enqueue(c.eventLocked(EventLoading))
	c.mu.Unlock()
	c.hub.Flush()

	repos, err := c.fetch(ctx, token)

	c.mu.Lock()
	c.loading = false
	if err != nil {
		c.lastErr = apperrors.Describe(err)
		c.hub.Enqueue(c.eventLocked(EventFetchFailed))
	} else {
		c.lastErr = ""
		c.repos = carryLocalPaths(c.repos, repos)
		c.hub.Enqueue(c.eventLocked(EventRepositoriesReplaced))
	}
	c.mu.Unlock()
	c.hub.Flush()

	return err
}

func (c *Catalog) fetch(ctx context.Context, token string) ([]models.Repository, error) {
	if token == "" {
		return nil, apperrors.NotAuthenticated(provider)
	}

	logger := c.logger.WithField("operation", "list_repositories")
	start := time.Now()

	url := fmt.Sprintf("%s/user/repos?per_page=%d", c.baseURL, PageSize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to create request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := c.client.Do(req)
	if err != nil {
		logger.WithFields(observability.Fields{
			"error":      err.Error(),
			"latency_ms": observability.Since(start),
		}).Error("list request failed")
		return nil, apperrors.TransportError(provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		logger.WithFields(observability.Fields{
			"status":     resp.StatusCode,
			"latency_ms": observability.Since(start),
		}).Error("list returned non-OK status")
		return nil, apperrors.APIError(provider, resp.StatusCode)
	}

	var remote []remoteRepository
	if err := json.NewDecoder(resp.Body).Decode(&remote); err != nil {
		logger.WithError(err).Error("failed to decode repository list")
		return nil, apperrors.InvalidResponse(provider, err)
	}

	now := c.now()
	repos := make([]models.Repository, 0, len(remote))
	for _, r := range remote {
		repos = append(repos, r.toModel(now))
	}
	repos = dedupe(repos)

	logger.WithFields(observability.Fields{
		"count":      len(repos),
		"latency_ms": observability.Since(start),
	}).Debug("repositories fetched")

	return repos, nil
}

// CloneRepository clones repo into localPath and returns it bound to the
// absolute working copy path. A listed repository is updated in place.
func (c *Catalog) CloneRepository(ctx context.Context, repo models.Repository, localPath string) (models.Repository, error) {
	dest, err := c.bridge.Clone(ctx, repo, localPath)
	if err != nil {
		return repo, err
	}

	cloned := repo.WithLocalPath(dest)
	c.mu.Lock()
	for i := range c.repos {
		if c.repos[i].Equal(cloned) {
			c.repos[i] = c.repos[i].WithLocalPath(dest)
			c.hub.Enqueue(c.eventLocked(EventRepositoryUpdated))
			break
		}
	}
	c.mu.Unlock()
	c.hub.Flush()

	return cloned, nil
}

// Add inserts repo, or replaces the listed repository with the same id
func (c *Catalog) Add(repo models.Repository) {
	c.mu.Lock()
	replaced := false
	for i := range c.repos {
		if c.repos[i].Equal(repo) {
			c.repos[i] = repo
			replaced = true
			break
		}
	}
	if !replaced {
		c.repos = append(c.repos, repo)
	}
	c.hub.Enqueue(c.eventLocked(EventRepositoriesReplaced))
	c.mu.Unlock()
	c.hub.Flush()
}

// Remove drops the repository with the given id or full name
func (c *Catalog) Remove(ref string) (models.Repository, bool) {
	c.mu.Lock()
	for i, r := range c.repos {
		if r.ID == ref || strings.EqualFold(r.FullName, ref) {
			c.repos = append(c.repos[:i:i], c.repos[i+1:]...)
			c.hub.Enqueue(c.eventLocked(EventRepositoriesReplaced))
			c.mu.Unlock()
			c.hub.Flush()
			return r, true
		}
	}
	c.mu.Unlock()
	return models.Repository{}, false
}

// FetchChanges lists the working copy changes of repo against HEAD
func (c *Catalog) FetchChanges(ctx context.Context, repo models.Repository) ([]models.FileChange, error) {
	return c.bridge.Changes(ctx, repo)
}

// PullLatest fast-forwards the working copy of repo
func (c *Catalog) PullLatest(ctx context.Context, repo models.Repository) error {
	return c.bridge.Pull(ctx, repo)
}

// Repositories returns a copy of the current list
func (c *Catalog) Repositories() []models.Repository {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Repository(nil), c.repos...)
}

// Repository looks up a repository by id or full name
func (c *Catalog) Repository(ref string) (models.Repository, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.repos {
		if r.ID == ref || strings.EqualFold(r.FullName, ref) {
			return r, true
		}
	}
	return models.Repository{}, false
}

// IsLoading reports whether a fetch is in flight
func (c *Catalog) IsLoading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// LastError returns the last fetch error, or "" after a successful fetch
func (c *Catalog) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// IsAuthenticated reports whether a token is installed
func (c *Catalog) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticated
}

func (c *Catalog) eventLocked(kind EventKind) Event {
	return Event{
		Kind:         kind,
		Repositories: append([]models.Repository(nil), c.repos...),
		Loading:      c.loading,
		Error:        c.lastErr,
	}
}

// carryLocalPaths keeps working copy paths of repositories that are listed again
func carryLocalPaths(prev, next []models.Repository) []models.Repository {
	paths := make(map[string]string, len(prev))
	for _, r := range prev {
		if r.HasLocalPath() {
			paths[r.ID] = r.LocalPath
		}
	}
	for i := range next {
		if p, ok := paths[next[i].ID]; ok && !next[i].HasLocalPath() {
			next[i] = next[i].WithLocalPath(p)
		}
	}
	return next
}

// dedupe keeps the first repository for each id
func dedupe(repos []models.Repository) []models.Repository {
	seen := make(map[string]bool, len(repos))
	out := make([]models.Repository, 0, len(repos))
	for _, r := range repos {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		out = append(out, r)
	}
	return out
}
