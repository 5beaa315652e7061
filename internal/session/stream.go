package session

import (
	"context"
	"iter"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/d1childress/ccmanager/internal/assistant"
	apperrors "github.com/d1childress/ccmanager/pkg/errors"
	"github.com/d1childress/ccmanager/pkg/models"
)

// StreamedCommand is a command whose output arrives as fragments. The
// command is appended to its session when Finish is called.
type StreamedCommand struct {
	c       *Coordinator
	ctx     context.Context
	target  *models.AgentSession
	cmd     models.AgentCommand
	prompt  string
	model   string
	stream  *assistant.Stream
	once    sync.Once
	outcome models.AgentCommand
}

// StreamCommand starts a streamed command against one provider of the
// current session
func (c *Coordinator) StreamCommand(ctx context.Context, text string, p models.Provider) (*StreamedCommand, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.New(apperrors.ErrCodeEmptyCommand, "Command text is empty")
	}

	c.mu.Lock()
	if c.current == nil {
		c.mu.Unlock()
		return nil, apperrors.NoActiveSession()
	}
	target := c.current
	repo := target.Repository
	c.mu.Unlock()

	client, ok := c.clients[p]
	if !ok {
		return nil, apperrors.NotAuthenticated(string(p))
	}

	cmdCtx := assistant.ContextFor(repo)
	sc := &StreamedCommand{
		c:      c,
		ctx:    ctx,
		target: target,
		cmd: models.AgentCommand{
			ID:          uuid.NewString(),
			Text:        text,
			Provider:    p,
			SubmittedAt: c.now(),
			Status:      models.CommandPending,
		},
		prompt: assistant.BuildPrompt(text, cmdCtx),
		model:  client.Model(),
	}
	sc.cmd.Advance(models.CommandRunning)
	sc.stream = client.StreamCommand(ctx, text, cmdCtx)
	return sc, nil
}

// Fragments yields the response text; see assistant.Stream.Fragments
func (s *StreamedCommand) Fragments() iter.Seq[string] {
	return s.stream.Fragments()
}

// Finish closes the stream, records the command and returns it. A stream
// that completed becomes a Completed command with the delivered text;
// anything else becomes Failed with the abort reason. Later calls return
// the same command.
func (s *StreamedCommand) Finish() models.AgentCommand {
	s.once.Do(func() {
		s.stream.Close()

		cmd := s.cmd
		text := s.stream.Text()
		switch status, reason := s.stream.Status(); status {
		case assistant.StreamCompleted:
			cmd.Advance(models.CommandCompleted)
			cmd.Output = text
			s.c.recordUsage(s.ctx, cmd.Provider, assistant.EstimateTokens(s.prompt+text), s.model)
		default:
			cmd.Advance(models.CommandFailed)
			cmd.Output = text
			cmd.Error = reason
		}

		s.c.appendCommand(s.target, cmd)
		s.outcome = cmd
	})
	return s.outcome
}
