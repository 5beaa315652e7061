// Package session owns the active agent session, its command history and
// the working copy changes detected for its repository.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/d1childress/ccmanager/internal/assistant"
	"github.com/d1childress/ccmanager/internal/notify"
	"github.com/d1childress/ccmanager/internal/observability"
	apperrors "github.com/d1childress/ccmanager/pkg/errors"
	"github.com/d1childress/ccmanager/pkg/models"
)

// EventKind identifies a coordinator state change
type EventKind string

const (
	EventSessionStarted  EventKind = "session_started"
	EventSessionEnded    EventKind = "session_ended"
	EventCommandRecorded EventKind = "command_recorded"
	EventChangesReplaced EventKind = "changes_replaced"
	EventRefreshFailed   EventKind = "refresh_failed"
)

// Event carries a snapshot of the affected session after the change
type Event struct {
	Kind    EventKind
	Session models.AgentSession
	Command *models.AgentCommand
	Error   string
}

// ChangeSource lists the working copy changes of a repository
type ChangeSource interface {
	FetchChanges(ctx context.Context, repo models.Repository) ([]models.FileChange, error)
}

// UsageRecorder accepts one usage sample per assistant call
type UsageRecorder interface {
	Record(ctx context.Context, sample models.UsageSample) error
}

// Coordinator serializes every session mutation behind one mutex and
// publishes events after the mutation commits. Assistant and working copy
// I/O runs outside the lock, so two submissions may be in flight at once.
type Coordinator struct {
	mu       sync.Mutex
	clients  map[models.Provider]assistant.Client
	changes  ChangeSource
	usage    UsageRecorder
	logger   *observability.Logger
	now      func() time.Time
	hub      notify.Hub[Event]
	sessions []*models.AgentSession
	current  *models.AgentSession
	lastErr  string
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithUsage records a sample for every successful assistant call
func WithUsage(u UsageRecorder) Option {
	return func(c *Coordinator) { c.usage = u }
}

// New creates a coordinator dispatching to the given clients
func New(clients []assistant.Client, changes ChangeSource, logger *observability.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		clients: make(map[models.Provider]assistant.Client, len(clients)),
		changes: changes,
		logger:  observability.OrNop(logger).WithField("component", "session"),
		now:     time.Now,
	}
	for _, client := range clients {
		c.clients[client.Provider()] = client
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe registers fn for every committed state change
func (c *Coordinator) Subscribe(fn func(Event)) (unsubscribe func()) {
	return c.hub.Subscribe(fn)
}

// StartSession opens a session for repo and makes it current. A previous
// current session is left open in history.
func (c *Coordinator) StartSession(repo models.Repository) models.AgentSession {
	s := &models.AgentSession{
		ID:         uuid.NewString(),
		Repository: repo,
		StartTime:  c.now(),
		Active:     true,
	}

	c.mu.Lock()
	c.sessions = append(c.sessions, s)
	c.current = s
	snap := s.Snapshot()
	c.hub.Enqueue(Event{Kind: EventSessionStarted, Session: snap})
	c.mu.Unlock()
	c.hub.Flush()

	c.logger.WithFields(observability.Fields{
		"session_id": s.ID,
		"repository": repo.FullName,
	}).Info("session started")
	return snap
}

// EndCurrentSession closes the current session; it stays in history
func (c *Coordinator) EndCurrentSession() (models.AgentSession, bool) {
	c.mu.Lock()
	if c.current == nil {
		c.mu.Unlock()
		return models.AgentSession{}, false
	}
	end := c.now()
	c.current.EndTime = &end
	c.current.Active = false
	snap := c.current.Snapshot()
	c.current = nil
	c.hub.Enqueue(Event{Kind: EventSessionEnded, Session: snap})
	c.mu.Unlock()
	c.hub.Flush()

	c.logger.WithField("session_id", snap.ID).Info("session ended")
	return snap, true
}

// Current returns a snapshot of the current session
func (c *Coordinator) Current() (models.AgentSession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return models.AgentSession{}, false
	}
	return c.current.Snapshot(), true
}

// Sessions returns snapshots of every session in start order
func (c *Coordinator) Sessions() []models.AgentSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.AgentSession, len(c.sessions))
	for i, s := range c.sessions {
		out[i] = s.Snapshot()
	}
	return out
}

// LastError returns the description of the last failed refresh
func (c *Coordinator) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// SubmitCommand sends text to every provider the agent selects, one after
// another, and appends exactly one command per provider to the session
// that was current at submission. Blank text is ignored. Provider failures
// are recorded as Failed commands, not returned.
func (c *Coordinator) SubmitCommand(ctx context.Context, text string, agent Agent) ([]models.AgentCommand, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	c.mu.Lock()
	if c.current == nil {
		c.mu.Unlock()
		return nil, apperrors.NoActiveSession()
	}
	target := c.current
	repo := target.Repository
	c.mu.Unlock()

	cmdCtx := assistant.ContextFor(repo)
	var results []models.AgentCommand
	for _, p := range agent.Providers() {
		cmd := c.execute(ctx, p, text, cmdCtx)
		c.appendCommand(target, cmd)
		results = append(results, cmd)
	}
	return results, nil
}

func (c *Coordinator) execute(ctx context.Context, p models.Provider, text string, cmdCtx *assistant.Context) models.AgentCommand {
	cmd := models.AgentCommand{
		ID:          uuid.NewString(),
		Text:        text,
		Provider:    p,
		SubmittedAt: c.now(),
		Status:      models.CommandPending,
	}

	logger := c.logger.WithFields(observability.Fields{
		"command_id": cmd.ID,
		"provider":   string(p),
	})
	start := time.Now()

	client, ok := c.clients[p]
	if !ok {
		cmd.Advance(models.CommandFailed)
		cmd.Error = apperrors.Describe(apperrors.NotAuthenticated(string(p)))
		logger.Warn("no client configured for provider")
		return cmd
	}

	cmd.Advance(models.CommandRunning)
	resp, err := client.ExecuteCommand(ctx, text, cmdCtx)
	if err != nil {
		cmd.Advance(models.CommandFailed)
		cmd.Error = apperrors.Describe(err)
		logger.WithFields(observability.Fields{
			"error":      err.Error(),
			"latency_ms": observability.Since(start),
		}).Warn("command failed")
		return cmd
	}

	cmd.Advance(models.CommandCompleted)
	cmd.Output = resp.Text
	logger.WithField("latency_ms", observability.Since(start)).Info("command completed")

	tokens := assistant.EstimateTokens(assistant.BuildPrompt(text, cmdCtx) + resp.Text)
	if resp.Usage != nil {
		tokens = resp.Usage.Total()
	}
	model := resp.Model
	if model == "" {
		model = client.Model()
	}
	c.recordUsage(ctx, p, tokens, model)
	return cmd
}

func (c *Coordinator) recordUsage(ctx context.Context, p models.Provider, tokens int, model string) {
	if c.usage == nil {
		return
	}
	sample := models.UsageSample{
		Date:     c.now(),
		APICalls: 1,
		Cost:     assistant.EstimateCost(tokens, model),
	}
	switch p {
	case models.ProviderClaude:
		sample.ClaudeTokens = tokens
	case models.ProviderCodex:
		sample.CodexTokens = tokens
	}
	if err := c.usage.Record(ctx, sample); err != nil {
		c.logger.WithError(err).Warn("failed to record usage")
	}
}

func (c *Coordinator) appendCommand(target *models.AgentSession, cmd models.AgentCommand) {
	c.mu.Lock()
	target.Commands = append(target.Commands, cmd)
	recorded := cmd
	c.hub.Enqueue(Event{Kind: EventCommandRecorded, Session: target.Snapshot(), Command: &recorded})
	c.mu.Unlock()
	c.hub.Flush()
}

// RefreshChanges replaces the current session's change list with the
// working copy's changes. On failure the list is kept and the error is
// recorded and returned. Changes for a repository other than the current
// session's are returned but not stored.
func (c *Coordinator) RefreshChanges(ctx context.Context, repo models.Repository) ([]models.FileChange, error) {
	changes, err := c.changes.FetchChanges(ctx, repo)
	if err != nil {
		c.mu.Lock()
		c.lastErr = apperrors.Describe(err)
		ev := Event{Kind: EventRefreshFailed, Error: c.lastErr}
		if c.current != nil {
			ev.Session = c.current.Snapshot()
		}
		c.hub.Enqueue(ev)
		c.mu.Unlock()
		c.hub.Flush()

		c.logger.WithFields(observability.Fields{
			"repository": repo.FullName,
			"error":      err.Error(),
		}).Warn("change refresh failed")
		return nil, err
	}

	c.mu.Lock()
	c.lastErr = ""
	if c.current != nil && c.current.Repository.Equal(repo) {
		c.current.Changes = changes
		c.hub.Enqueue(Event{Kind: EventChangesReplaced, Session: c.current.Snapshot()})
	}
	c.mu.Unlock()
	c.hub.Flush()

	c.logger.WithFields(observability.Fields{
		"repository": repo.FullName,
		"changes":    len(changes),
	}).Debug("changes refreshed")
	return changes, nil
}
