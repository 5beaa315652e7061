package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/d1childress/ccmanager/internal/observability"
	apperrors "github.com/d1childress/ccmanager/pkg/errors"
	"github.com/d1childress/ccmanager/pkg/models"
)

const (
	// AnthropicBaseURL is the default messages API endpoint host
	AnthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion = "2023-06-01"
)

// AnthropicClient talks to the Anthropic messages API
type AnthropicClient struct {
	connection
	settings
	logger *observability.Logger
}

// NewAnthropicClient creates a disconnected client
func NewAnthropicClient(logger *observability.Logger, opts ...Option) *AnthropicClient {
	s := newSettings(AnthropicBaseURL, ModelOpus, opts)
	return &AnthropicClient{
		settings: s,
		logger: observability.OrNop(logger).WithFields(observability.Fields{
			"component": "assistant",
			"provider":  string(models.ProviderClaude),
			"model":     s.model,
		}),
	}
}

func (c *AnthropicClient) Provider() models.Provider { return models.ProviderClaude }

func (c *AnthropicClient) Model() string { return c.model }

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
	System    string             `json:"system,omitempty"`
	Stream    bool               `json:"stream,omitempty"`
}

type anthropicResponse struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model string `json:"model"`
	Usage *Usage `json:"usage"`
}

func (c *AnthropicClient) newRequest(ctx context.Context, key, command string, cmdCtx *Context, stream bool) (*http.Request, error) {
	body, err := json.Marshal(anthropicRequest{
		Model:     c.model,
		MaxTokens: DefaultMaxTokens,
		Messages:  []anthropicMessage{{Role: "user", Content: BuildPrompt(command, cmdCtx)}},
		System:    SystemPrompt,
		Stream:    stream,
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to marshal request")
	}

	url := strings.TrimRight(c.baseURL, "/") + "/v1/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", key)
	req.Header.Set("anthropic-version", anthropicVersion)
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}
	return req, nil
}

// ExecuteCommand sends one command and waits for the whole response
func (c *AnthropicClient) ExecuteCommand(ctx context.Context, command string, cmdCtx *Context) (Response, error) {
	key := c.key()
	if key == "" {
		return Response{}, apperrors.NotAuthenticated(string(models.ProviderClaude))
	}

	end := c.begin()
	defer end()

	logger := c.logger.WithField("operation", "execute")
	start := time.Now()

	req, err := c.newRequest(ctx, key, command, cmdCtx, false)
	if err != nil {
		return Response{}, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		logger.WithFields(observability.Fields{
			"error":      err.Error(),
			"latency_ms": observability.Since(start),
		}).Error("messages request failed")
		return Response{}, apperrors.TransportError("Claude API", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		logger.WithFields(observability.Fields{
			"status":     resp.StatusCode,
			"latency_ms": observability.Since(start),
		}).Error("messages returned non-OK status")
		return Response{}, apperrors.APIError(string(models.ProviderClaude), resp.StatusCode)
	}

	var decoded anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		logger.WithError(err).Error("failed to decode messages response")
		return Response{}, apperrors.InvalidResponse("Claude API", err)
	}
	if len(decoded.Content) == 0 {
		logger.Error("messages response has no content")
		return Response{}, apperrors.InvalidResponse("Claude API", fmt.Errorf("empty content"))
	}

	text := decoded.Content[0].Text
	c.setResponse(text)

	model := decoded.Model
	if model == "" {
		model = c.model
	}

	logger.WithFields(observability.Fields{
		"latency_ms": observability.Since(start),
		"chars":      len(text),
	}).Debug("messages request completed")

	return Response{Provider: models.ProviderClaude, Model: model, Text: text, Usage: decoded.Usage}, nil
}

// StreamCommand sends one command and streams the response text. Failures
// end the stream with StreamAborted rather than returning an error.
func (c *AnthropicClient) StreamCommand(ctx context.Context, command string, cmdCtx *Context) *Stream {
	key := c.key()
	if key == "" {
		return abortedStream(apperrors.Describe(apperrors.NotAuthenticated(string(models.ProviderClaude))))
	}

	logger := c.logger.WithField("operation", "stream")
	open := func(ctx context.Context) (*http.Response, error) {
		req, err := c.newRequest(ctx, key, command, cmdCtx, true)
		if err != nil {
			return nil, err
		}
		return c.client.Do(req)
	}
	return startStream(ctx, open, extractAnthropic, logger)
}

// extractAnthropic reads delta.text; message_stop also ends the stream
func extractAnthropic(payload []byte) (event, error) {
	var raw struct {
		Type  string `json:"type"`
		Delta *struct {
			Text *string `json:"text"`
		} `json:"delta"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return event{}, err
	}

	switch {
	case raw.Type == "message_stop":
		return event{done: true}, nil
	case raw.Type == "error" && raw.Error != nil:
		return event{err: raw.Error.Message}, nil
	case raw.Delta != nil && raw.Delta.Text != nil:
		return event{text: *raw.Delta.Text, hasText: true}, nil
	}
	return event{}, nil
}
