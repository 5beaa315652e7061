package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d1childress/ccmanager/internal/assistant"
	"github.com/d1childress/ccmanager/internal/testutil"
	"github.com/d1childress/ccmanager/internal/usage"
	apperrors "github.com/d1childress/ccmanager/pkg/errors"
	"github.com/d1childress/ccmanager/pkg/models"
)

var now = time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

type harness struct {
	coord   *Coordinator
	claude  *testutil.FakeClient
	codex   *testutil.FakeClient
	changes *testutil.FakeChangeSource
	ledger  *usage.Ledger
}

func newHarness() *harness {
	h := &harness{
		claude:  testutil.NewFakeClient(models.ProviderClaude, assistant.ModelSonnet),
		codex:   testutil.NewFakeClient(models.ProviderCodex, assistant.ModelCodex),
		changes: &testutil.FakeChangeSource{},
		ledger:  usage.NewLedger(nil, nil, usage.WithClock(clock)),
	}
	h.claude.Response = assistant.Response{Text: "done", Model: assistant.ModelSonnet}
	h.codex.Response = assistant.Response{Text: "ok"}
	h.coord = New([]assistant.Client{h.claude, h.codex}, h.changes, nil,
		WithClock(clock), WithUsage(h.ledger))
	return h
}

func TestParseAgent(t *testing.T) {
	tests := []struct {
		in      string
		want    []models.Provider
		wantErr bool
	}{
		{in: "claude", want: []models.Provider{models.ProviderClaude}},
		{in: "", want: []models.Provider{models.ProviderClaude}},
		{in: "CODEX", want: []models.Provider{models.ProviderCodex}},
		{in: "both", want: []models.Provider{models.ProviderClaude, models.ProviderCodex}},
		{in: "gemini", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			a, err := ParseAgent(tt.in)
			if tt.wantErr {
				assert.Equal(t, apperrors.ErrCodeUnknownAgent, apperrors.GetErrorCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, a.Providers())
		})
	}
}

func TestStartSessionKeepsHistory(t *testing.T) {
	h := newHarness()
	r1, r2 := testutil.Repository(1), testutil.Repository(2)

	h.coord.StartSession(r1)
	h.coord.StartSession(r2)

	current, ok := h.coord.Current()
	require.True(t, ok)
	assert.True(t, current.Repository.Equal(r2))

	sessions := h.coord.Sessions()
	require.Len(t, sessions, 2)
	assert.True(t, sessions[0].Active, "starting a new session does not end the previous one")
}

func TestEndCurrentSession(t *testing.T) {
	h := newHarness()

	_, ok := h.coord.EndCurrentSession()
	assert.False(t, ok)

	h.coord.StartSession(testutil.Repository(1))
	ended, ok := h.coord.EndCurrentSession()
	require.True(t, ok)
	require.NotNil(t, ended.EndTime)
	assert.Equal(t, now, *ended.EndTime)
	assert.False(t, ended.Active)

	_, ok = h.coord.Current()
	assert.False(t, ok)
	assert.Len(t, h.coord.Sessions(), 1)
}

func TestSubmitCommandSuccess(t *testing.T) {
	h := newHarness()
	repo := testutil.Repository(1)
	h.coord.StartSession(repo)

	cmds, err := h.coord.SubmitCommand(context.Background(), "add tests", AgentClaude)
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	assert.Equal(t, models.CommandCompleted, cmds[0].Status)
	assert.Equal(t, "done", cmds[0].Output)
	assert.Empty(t, cmds[0].Error)

	current, _ := h.coord.Current()
	require.Len(t, current.Commands, 1)
	assert.Equal(t, cmds[0], current.Commands[0])

	require.Len(t, h.claude.Contexts, 1)
	assert.Equal(t, repo.Name, h.claude.Contexts[0].RepositoryName)
}

func TestSubmitCommandFailure(t *testing.T) {
	h := newHarness()
	h.claude.Err = apperrors.APIError("claude", 500)
	h.coord.StartSession(testutil.Repository(1))

	cmds, err := h.coord.SubmitCommand(context.Background(), "add tests", AgentClaude)
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	assert.Equal(t, models.CommandFailed, cmds[0].Status)
	assert.Equal(t, "API error: HTTP 500", cmds[0].Error)
	assert.Empty(t, cmds[0].Output)

	current, _ := h.coord.Current()
	assert.Len(t, current.Commands, 1)
	assert.Equal(t, 0, h.ledger.Len(), "failed calls record no usage")
}

func TestSubmitCommandBothAgents(t *testing.T) {
	h := newHarness()
	h.codex.Err = errors.New("connection reset")
	h.coord.StartSession(testutil.Repository(1))

	cmds, err := h.coord.SubmitCommand(context.Background(), "refactor", AgentBoth)
	require.NoError(t, err)
	require.Len(t, cmds, 2)
	assert.Equal(t, models.ProviderClaude, cmds[0].Provider)
	assert.Equal(t, models.CommandCompleted, cmds[0].Status)
	assert.Equal(t, models.ProviderCodex, cmds[1].Provider)
	assert.Equal(t, models.CommandFailed, cmds[1].Status)
	assert.Equal(t, "connection reset", cmds[1].Error)

	current, _ := h.coord.Current()
	assert.Len(t, current.Commands, 2)
}

func TestSubmitCommandWithoutSession(t *testing.T) {
	h := newHarness()

	cmds, err := h.coord.SubmitCommand(context.Background(), "hello", AgentClaude)
	assert.Nil(t, cmds)
	assert.True(t, apperrors.Is(err, apperrors.ErrNoActiveSession))
	assert.Equal(t, 0, h.claude.CallCount(), "nothing is dispatched")
}

func TestSubmitBlankCommandIsNoop(t *testing.T) {
	h := newHarness()
	h.coord.StartSession(testutil.Repository(1))

	for _, text := range []string{"", "   ", "\n\t"} {
		cmds, err := h.coord.SubmitCommand(context.Background(), text, AgentBoth)
		assert.NoError(t, err)
		assert.Nil(t, cmds)
	}
	assert.Equal(t, 0, h.claude.CallCount())
	current, _ := h.coord.Current()
	assert.Empty(t, current.Commands)
}

func TestSubmitCommandMissingClient(t *testing.T) {
	claude := testutil.NewFakeClient(models.ProviderClaude, assistant.ModelOpus)
	coord := New([]assistant.Client{claude}, &testutil.FakeChangeSource{}, nil, WithClock(clock))
	coord.StartSession(testutil.Repository(1))

	cmds, err := coord.SubmitCommand(context.Background(), "x", AgentCodex)
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	assert.Equal(t, models.CommandFailed, cmds[0].Status)
	assert.Equal(t, "OpenAI API key not configured", cmds[0].Error)
}

func TestSubmitCommandRecordsUsage(t *testing.T) {
	tests := []struct {
		name       string
		response   assistant.Response
		wantTokens int
	}{
		{
			name:       "reported usage",
			response:   assistant.Response{Text: "done", Model: assistant.ModelSonnet, Usage: &assistant.Usage{InputTokens: 600, OutputTokens: 400}},
			wantTokens: 1000,
		},
		{
			name:     "estimated usage",
			response: assistant.Response{Text: "done", Model: assistant.ModelSonnet},
			wantTokens: assistant.EstimateTokens(
				assistant.BuildPrompt("add tests", assistant.ContextFor(testutil.Repository(1))) + "done"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			h.claude.Response = tt.response
			h.coord.StartSession(testutil.Repository(1))

			_, err := h.coord.SubmitCommand(context.Background(), "add tests", AgentClaude)
			require.NoError(t, err)

			totals := h.ledger.Totals(usage.Range24h)
			assert.Equal(t, tt.wantTokens, totals.ClaudeTokens)
			assert.Equal(t, 0, totals.CodexTokens)
			assert.Equal(t, 1, totals.APICalls)
			assert.InDelta(t, float64(tt.wantTokens)*1e-5, totals.Cost, 1e-12)
		})
	}
}

func TestCommandLandsInSubmittingSession(t *testing.T) {
	h := newHarness()
	first := h.coord.StartSession(testutil.Repository(1))

	release := make(chan struct{})
	entered := make(chan struct{})
	blocking := &blockingClient{FakeClient: h.claude, entered: entered, release: release}
	h.coord.clients[models.ProviderClaude] = blocking

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = h.coord.SubmitCommand(context.Background(), "slow", AgentClaude)
	}()

	<-entered
	h.coord.StartSession(testutil.Repository(2))
	close(release)
	wg.Wait()

	sessions := h.coord.Sessions()
	require.Len(t, sessions, 2)
	assert.Equal(t, first.ID, sessions[0].ID)
	assert.Len(t, sessions[0].Commands, 1)
	assert.Empty(t, sessions[1].Commands)
}

type blockingClient struct {
	*testutil.FakeClient
	entered chan struct{}
	release chan struct{}
}

func (b *blockingClient) ExecuteCommand(ctx context.Context, command string, c *assistant.Context) (assistant.Response, error) {
	close(b.entered)
	<-b.release
	return b.FakeClient.ExecuteCommand(ctx, command, c)
}

func TestRefreshChanges(t *testing.T) {
	h := newHarness()
	repo := testutil.ClonedRepository(1, "/src/project-1")
	h.coord.StartSession(repo)

	h.changes.Set([]models.FileChange{{ID: "a", Path: "main.go", Kind: models.ChangeModified}}, nil)
	changes, err := h.coord.RefreshChanges(context.Background(), repo)
	require.NoError(t, err)
	assert.Len(t, changes, 1)

	current, _ := h.coord.Current()
	require.Len(t, current.Changes, 1)
	assert.Equal(t, "main.go", current.Changes[0].Path)

	h.changes.Set(nil, apperrors.CommandFailed("git diff --name-status HEAD", 128, "fatal"))
	_, err = h.coord.RefreshChanges(context.Background(), repo)
	require.Error(t, err)

	current, _ = h.coord.Current()
	assert.Len(t, current.Changes, 1, "a failed refresh keeps the previous changes")
	assert.Equal(t, "Git command failed", h.coord.LastError())

	h.changes.Set([]models.FileChange{}, nil)
	_, err = h.coord.RefreshChanges(context.Background(), repo)
	require.NoError(t, err)
	current, _ = h.coord.Current()
	assert.Empty(t, current.Changes)
	assert.Empty(t, h.coord.LastError())
}

func TestRefreshChangesOtherRepository(t *testing.T) {
	h := newHarness()
	h.coord.StartSession(testutil.Repository(1))
	h.changes.Set([]models.FileChange{{ID: "a", Path: "x.go", Kind: models.ChangeAdded}}, nil)

	changes, err := h.coord.RefreshChanges(context.Background(), testutil.Repository(2))
	require.NoError(t, err)
	assert.Len(t, changes, 1)

	current, _ := h.coord.Current()
	assert.Empty(t, current.Changes)
}

func TestEventsObserveCommittedState(t *testing.T) {
	h := newHarness()

	var kinds []EventKind
	var counts []int
	unsubscribe := h.coord.Subscribe(func(e Event) {
		kinds = append(kinds, e.Kind)
		counts = append(counts, len(e.Session.Commands))
		if e.Kind == EventCommandRecorded {
			current, ok := h.coord.Current()
			require.True(t, ok)
			assert.Len(t, current.Commands, len(e.Session.Commands))
		}
	})

	h.coord.StartSession(testutil.Repository(1))
	_, err := h.coord.SubmitCommand(context.Background(), "one", AgentBoth)
	require.NoError(t, err)
	h.coord.EndCurrentSession()
	unsubscribe()
	h.coord.StartSession(testutil.Repository(2))

	assert.Equal(t, []EventKind{EventSessionStarted, EventCommandRecorded, EventCommandRecorded, EventSessionEnded}, kinds)
	assert.Equal(t, []int{0, 1, 2, 2}, counts)
}

func sseServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestStreamCommand(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus models.CommandStatus
		wantOutput string
		wantError  string
		wantUsage  int
	}{
		{
			name:       "completed",
			body:       "data: {\"delta\":{\"text\":\"ab\"}}\n\ndata: {\"delta\":{\"text\":\"cd\"}}\n\ndata: [DONE]\n",
			wantStatus: models.CommandCompleted,
			wantOutput: "abcd",
			wantUsage:  1,
		},
		{
			name:       "connection closed early",
			body:       "data: {\"delta\":{\"text\":\"ab\"}}\n\n",
			wantStatus: models.CommandFailed,
			wantOutput: "ab",
			wantError:  "stream ended before [DONE]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := sseServer(t, tt.body)
			client := assistant.NewAnthropicClient(nil, assistant.WithBaseURL(server.URL))
			client.Connect("k")

			ledger := usage.NewLedger(nil, nil, usage.WithClock(clock))
			coord := New([]assistant.Client{client}, &testutil.FakeChangeSource{}, nil, WithClock(clock), WithUsage(ledger))
			coord.StartSession(testutil.Repository(1))

			sc, err := coord.StreamCommand(context.Background(), "explain", models.ProviderClaude)
			require.NoError(t, err)

			var got string
			for f := range sc.Fragments() {
				got += f
			}
			assert.Equal(t, tt.wantOutput, got)

			cmd := sc.Finish()
			assert.Equal(t, tt.wantStatus, cmd.Status)
			assert.Equal(t, tt.wantOutput, cmd.Output)
			assert.Equal(t, tt.wantError, cmd.Error)
			assert.Equal(t, cmd, sc.Finish(), "finish is idempotent")

			current, _ := coord.Current()
			require.Len(t, current.Commands, 1)
			assert.Equal(t, tt.wantUsage, ledger.Len())
		})
	}
}

func TestStreamCommandConsumerStopsEarly(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		flusher := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/event-stream")
		for {
			select {
			case <-r.Context().Done():
				return
			default:
			}
			_, _ = fmt.Fprint(w, "data: {\"delta\":{\"text\":\"tick\"}}\n\n")
			flusher.Flush()
			time.Sleep(5 * time.Millisecond)
		}
	}))
	t.Cleanup(server.Close)

	client := assistant.NewAnthropicClient(nil, assistant.WithBaseURL(server.URL))
	client.Connect("k")
	ledger := usage.NewLedger(nil, nil, usage.WithClock(clock))
	coord := New([]assistant.Client{client}, &testutil.FakeChangeSource{}, nil, WithClock(clock), WithUsage(ledger))
	coord.StartSession(testutil.Repository(1))

	sc, err := coord.StreamCommand(context.Background(), "explain", models.ProviderClaude)
	require.NoError(t, err)

	for f := range sc.Fragments() {
		assert.Equal(t, "tick", f)
		break
	}

	cmd := sc.Finish()
	assert.Equal(t, models.CommandFailed, cmd.Status)
	assert.Equal(t, "closed by consumer", cmd.Error)
	assert.Equal(t, "tick", cmd.Output)

	current, _ := coord.Current()
	require.Len(t, current.Commands, 1)
	assert.Equal(t, cmd, current.Commands[0])
	assert.Equal(t, 0, ledger.Len(), "aborted streams record no usage")
}

func TestStreamCommandPreconditions(t *testing.T) {
	h := newHarness()

	_, err := h.coord.StreamCommand(context.Background(), "x", models.ProviderClaude)
	assert.True(t, apperrors.Is(err, apperrors.ErrNoActiveSession))

	h.coord.StartSession(testutil.Repository(1))
	_, err = h.coord.StreamCommand(context.Background(), " ", models.ProviderClaude)
	assert.Equal(t, apperrors.ErrCodeEmptyCommand, apperrors.GetErrorCode(err))

	_, err = h.coord.StreamCommand(context.Background(), "x", models.ProviderGitHub)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotAuthenticated))
}

func TestStreamCommandUnconfiguredClientFails(t *testing.T) {
	h := newHarness()
	h.coord.StartSession(testutil.Repository(1))

	sc, err := h.coord.StreamCommand(context.Background(), "x", models.ProviderClaude)
	require.NoError(t, err)

	for range sc.Fragments() {
		t.Fatal("no fragments expected")
	}
	cmd := sc.Finish()
	assert.Equal(t, models.CommandFailed, cmd.Status)
	assert.Equal(t, "Claude API key not configured", cmd.Error)
}
