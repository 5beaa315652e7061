// Package app wires every component into one explicitly constructed
// application context. The process entry point owns it and passes it down.
package app

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/d1childress/ccmanager/internal/assistant"
	"github.com/d1childress/ccmanager/internal/auth"
	"github.com/d1childress/ccmanager/internal/catalog"
	"github.com/d1childress/ccmanager/internal/common"
	"github.com/d1childress/ccmanager/internal/config"
	"github.com/d1childress/ccmanager/internal/observability"
	"github.com/d1childress/ccmanager/internal/session"
	"github.com/d1childress/ccmanager/internal/usage"
	"github.com/d1childress/ccmanager/internal/vault"
	"github.com/d1childress/ccmanager/internal/workcopy"
	apperrors "github.com/d1childress/ccmanager/pkg/errors"
	"github.com/d1childress/ccmanager/pkg/models"
)

const (
	usageDatabase  = "usage.db"
	credentialsDir = "credentials"
)

// Options configures New. Zero values select production defaults.
type Options struct {
	Home         string
	ExecutorKind string
	GitHubAPI    string
	AnthropicAPI string
	OpenAIAPI    string
	ClaudeModel  string
	CodexModel   string
	HTTPClient   *http.Client
	Logger       *observability.Logger

	// Vault and Executor replace the selected backends
	Vault    vault.Vault
	Executor workcopy.Executor
	// InMemoryUsage keeps usage samples for the process lifetime only
	InMemoryUsage bool
}

// Context is the application state shared by every command
type Context struct {
	Home     string
	Logger   *observability.Logger
	Config   *config.Store
	Vault    vault.Vault
	Auth     *auth.Manager
	Bridge   *workcopy.Bridge
	Catalog  *catalog.Catalog
	Claude   *assistant.AnthropicClient
	Codex    *assistant.OpenAIClient
	Usage    *usage.Ledger
	Sessions *session.Coordinator

	mu       sync.Mutex
	settings models.Settings
}

// New loads persisted state and builds every component
func New(ctx context.Context, opts Options) (*Context, error) {
	logger := observability.OrNop(opts.Logger)

	home := opts.Home
	if home == "" {
		var err error
		if home, err = common.AppHome(); err != nil {
			return nil, err
		}
	} else {
		var err error
		if home, err = common.ExpandHome(home); err != nil {
			return nil, err
		}
	}

	store := config.NewStore(home)
	settings, err := store.LoadSettings()
	if err != nil {
		return nil, err
	}

	v := opts.Vault
	if v == nil {
		if v, err = vault.New(filepath.Join(home, credentialsDir), logger); err != nil {
			return nil, err
		}
	}

	authMgr := auth.NewManager(v, logger)
	if err := authMgr.Restore(); err != nil {
		logger.WithError(err).Warn("some credentials could not be restored")
	}
	for _, st := range authMgr.States() {
		if st.IsAuthenticated() {
			settings.SetCredentials(st.Provider, &models.Credentials{
				Username:       st.Metadata.Username,
				OrganizationID: st.Metadata.OrganizationID,
			})
		}
	}

	exec := opts.Executor
	if exec == nil {
		githubToken := func() string {
			token, _ := authMgr.Token(models.ProviderGitHub)
			return token
		}
		if exec, err = workcopy.NewExecutor(opts.ExecutorKind, githubToken); err != nil {
			return nil, apperrors.ConfigError(err.Error(), "executor")
		}
	}
	bridge := workcopy.NewBridge(exec, logger)

	catalogOpts := []catalog.Option{}
	if opts.GitHubAPI != "" {
		catalogOpts = append(catalogOpts, catalog.WithBaseURL(strings.TrimRight(opts.GitHubAPI, "/")))
	}
	if opts.HTTPClient != nil {
		catalogOpts = append(catalogOpts, catalog.WithHTTPClient(opts.HTTPClient))
	}
	cat := catalog.New(bridge, logger, catalogOpts...)

	repos, err := store.LoadRepositories()
	if err != nil {
		return nil, err
	}
	cat.Seed(repos)

	claude := assistant.NewAnthropicClient(logger, clientOptions(opts.AnthropicAPI, opts.ClaudeModel, opts.HTTPClient)...)
	codex := assistant.NewOpenAIClient(logger, clientOptions(opts.OpenAIAPI, opts.CodexModel, opts.HTTPClient)...)

	var usageStore usage.Store
	if !opts.InMemoryUsage {
		if usageStore, err = usage.OpenSQLiteStore(ctx, filepath.Join(home, usageDatabase)); err != nil {
			return nil, err
		}
	}
	ledger := usage.NewLedger(usageStore, logger)
	if err := ledger.Load(ctx); err != nil {
		logger.WithError(err).Warn("failed to load usage history")
	}

	a := &Context{
		Home:     home,
		Logger:   logger,
		Config:   store,
		Vault:    v,
		Auth:     authMgr,
		Bridge:   bridge,
		Catalog:  cat,
		Claude:   claude,
		Codex:    codex,
		Usage:    ledger,
		Sessions: session.New([]assistant.Client{claude, codex}, cat, logger, session.WithUsage(ledger)),
		settings: settings,
	}
	for _, p := range models.Providers {
		if token, ok := authMgr.Token(p); ok {
			a.connect(p, token)
		}
	}

	logger.WithFields(observability.Fields{
		"home":         home,
		"repositories": len(repos),
	}).Debug("application context ready")
	return a, nil
}

func clientOptions(baseURL, model string, client *http.Client) []assistant.Option {
	var opts []assistant.Option
	if baseURL != "" {
		opts = append(opts, assistant.WithBaseURL(strings.TrimRight(baseURL, "/")))
	}
	if model != "" {
		opts = append(opts, assistant.WithModel(model))
	}
	if client != nil {
		opts = append(opts, assistant.WithHTTPClient(client))
	}
	return opts
}

// connect hands a token to the component that owns it
func (a *Context) connect(p models.Provider, token string) {
	switch p {
	case models.ProviderGitHub:
		a.Catalog.SetToken(token)
	case models.ProviderClaude:
		a.Claude.Connect(token)
	case models.ProviderCodex:
		a.Codex.Connect(token)
	}
}

// Client returns the assistant client for a provider
func (a *Context) Client(p models.Provider) (assistant.Client, bool) {
	switch p {
	case models.ProviderClaude:
		return a.Claude, true
	case models.ProviderCodex:
		return a.Codex, true
	default:
		return nil, false
	}
}

// Settings returns a copy of the current settings
func (a *Context) Settings() models.Settings {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settings
}

// UpdateSettings applies fn to a copy of the settings, then validates and
// persists the result. The in-memory settings change only on success.
func (a *Context) UpdateSettings(fn func(*models.Settings) error) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	next := a.settings
	if err := fn(&next); err != nil {
		return err
	}
	if err := a.Config.SaveSettings(next); err != nil {
		return err
	}
	a.settings = next
	return nil
}

// Login stores a credential and connects the provider's client
func (a *Context) Login(p models.Provider, creds models.Credentials) (auth.State, error) {
	state, err := a.Auth.Login(p, creds)
	if err != nil {
		return state, err
	}
	token, _ := a.Auth.Token(p)
	a.connect(p, token)

	err = a.UpdateSettings(func(s *models.Settings) error {
		s.SetCredentials(p, &models.Credentials{
			Username:       state.Metadata.Username,
			OrganizationID: state.Metadata.OrganizationID,
		})
		return nil
	})
	return state, err
}

// Logout removes a credential and disconnects the provider's client
func (a *Context) Logout(p models.Provider) error {
	if err := a.Auth.Logout(p); err != nil {
		return err
	}
	a.connect(p, "")

	return a.UpdateSettings(func(s *models.Settings) error {
		s.SetCredentials(p, nil)
		return nil
	})
}

func (a *Context) saveRepositories() error {
	return a.Config.SaveRepositories(a.Catalog.Repositories())
}

// SyncRepositories refreshes the list from the hosting provider and
// persists it. A failed fetch keeps the previous list.
func (a *Context) SyncRepositories(ctx context.Context) error {
	if err := a.Catalog.FetchRepositories(ctx); err != nil {
		return err
	}
	return a.saveRepositories()
}

// AddRepository inserts or replaces a repository and persists the list
func (a *Context) AddRepository(repo models.Repository) error {
	if strings.TrimSpace(repo.ID) == "" || strings.TrimSpace(repo.FullName) == "" {
		return apperrors.ConfigError("repository needs an id and a full name", "repository")
	}
	a.Catalog.Add(repo)
	return a.saveRepositories()
}

// RemoveRepository drops a repository, clearing the selection when it was
// the selected one, and persists the list
func (a *Context) RemoveRepository(ref string) (models.Repository, error) {
	removed, ok := a.Catalog.Remove(ref)
	if !ok {
		return models.Repository{}, apperrors.RepositoryNotFound(ref)
	}
	if err := a.saveRepositories(); err != nil {
		return removed, err
	}

	if a.Settings().SelectedRepository == removed.ID {
		if err := a.UpdateSettings(func(s *models.Settings) error {
			s.SelectedRepository = ""
			return nil
		}); err != nil {
			return removed, err
		}
	}
	return removed, nil
}

// SelectRepository makes ref the repository commands run against
func (a *Context) SelectRepository(ref string) (models.Repository, error) {
	repo, ok := a.Catalog.Repository(ref)
	if !ok {
		return models.Repository{}, apperrors.RepositoryNotFound(ref)
	}
	err := a.UpdateSettings(func(s *models.Settings) error {
		s.SelectedRepository = repo.ID
		return nil
	})
	return repo, err
}

// SelectedRepository returns the selected repository, if it is still listed
func (a *Context) SelectedRepository() (models.Repository, bool) {
	id := a.Settings().SelectedRepository
	if id == "" {
		return models.Repository{}, false
	}
	return a.Catalog.Repository(id)
}

// Resolve looks up ref, or the selected repository when ref is empty
func (a *Context) Resolve(ref string) (models.Repository, error) {
	if strings.TrimSpace(ref) == "" {
		repo, ok := a.SelectedRepository()
		if !ok {
			return models.Repository{}, apperrors.New(apperrors.ErrCodeRepoNotFound, "No repository selected").
				WithSuggestions("Run 'ccmanager repo select <repository>'")
		}
		return repo, nil
	}
	repo, ok := a.Catalog.Repository(ref)
	if !ok {
		return models.Repository{}, apperrors.RepositoryNotFound(ref)
	}
	return repo, nil
}

// CloneRepository clones ref into localPath, defaulting to
// <default_local_path>/<name>, and persists the new working copy path
func (a *Context) CloneRepository(ctx context.Context, ref, localPath string) (models.Repository, error) {
	repo, err := a.Resolve(ref)
	if err != nil {
		return repo, err
	}
	if localPath == "" {
		localPath = filepath.Join(a.Settings().DefaultLocalPath, repo.Name)
	}

	cloned, err := a.Catalog.CloneRepository(ctx, repo, localPath)
	if err != nil {
		return repo, err
	}
	return cloned, a.saveRepositories()
}

// PullRepository fast-forwards the working copy of ref
func (a *Context) PullRepository(ctx context.Context, ref string) error {
	repo, err := a.Resolve(ref)
	if err != nil {
		return err
	}
	return a.Catalog.PullLatest(ctx, repo)
}

// WatchChanges refreshes the current session's changes immediately and then
// every sync interval until ctx is done. Refresh failures are reported to
// onRefresh and do not stop the loop.
func (a *Context) WatchChanges(ctx context.Context, repo models.Repository, onRefresh func([]models.FileChange, error)) error {
	settings := a.Settings()
	if !settings.AutoSync {
		return apperrors.ConfigError("auto sync is disabled", "auto_sync")
	}

	interval := settings.SyncInterval
	if interval <= 0 {
		return apperrors.ConfigError(fmt.Sprintf("invalid sync interval %s", interval), "sync_interval")
	}

	refresh := func() {
		changes, err := a.Sessions.RefreshChanges(ctx, repo)
		if ctx.Err() != nil {
			return
		}
		if onRefresh != nil {
			onRefresh(changes, err)
		}
	}

	a.Logger.WithFields(observability.Fields{
		"repository": repo.FullName,
		"interval":   interval.String(),
	}).Info("watching working copy")

	refresh()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			refresh()
		}
	}
}

// Close releases the usage store
func (a *Context) Close() error {
	return a.Usage.Close()
}
