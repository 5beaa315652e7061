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

// OpenAIBaseURL is the default chat completions endpoint host
const OpenAIBaseURL = "https://api.openai.com"

// OpenAIClient talks to an OpenAI-compatible chat completions API; it backs the codex agent
type OpenAIClient struct {
	connection
	settings
	logger *observability.Logger
}

// NewOpenAIClient creates a disconnected client
func NewOpenAIClient(logger *observability.Logger, opts ...Option) *OpenAIClient {
	s := newSettings(OpenAIBaseURL, ModelCodex, opts)
	return &OpenAIClient{
		settings: s,
		logger: observability.OrNop(logger).WithFields(observability.Fields{
			"component": "assistant",
			"provider":  string(models.ProviderCodex),
			"model":     s.model,
		}),
	}
}

func (c *OpenAIClient) Provider() models.Provider { return models.ProviderCodex }

func (c *OpenAIClient) Model() string { return c.model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	Messages  []chatMessage `json:"messages"`
	Stream    bool          `json:"stream,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (c *OpenAIClient) newRequest(ctx context.Context, key, command string, cmdCtx *Context, stream bool) (*http.Request, error) {
	body, err := json.Marshal(chatRequest{
		Model:     c.model,
		MaxTokens: DefaultMaxTokens,
		Messages: []chatMessage{
			{Role: "system", Content: SystemPrompt},
			{Role: "user", Content: BuildPrompt(command, cmdCtx)},
		},
		Stream: stream,
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to marshal request")
	}

	url := strings.TrimRight(c.baseURL, "/") + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)
	return req, nil
}

// ExecuteCommand sends one command and waits for the whole response
func (c *OpenAIClient) ExecuteCommand(ctx context.Context, command string, cmdCtx *Context) (Response, error) {
	key := c.key()
	if key == "" {
		return Response{}, apperrors.NotAuthenticated(string(models.ProviderCodex))
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
		}).Error("chat request failed")
		return Response{}, apperrors.TransportError("OpenAI API", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		logger.WithFields(observability.Fields{
			"status":     resp.StatusCode,
			"latency_ms": observability.Since(start),
		}).Error("chat returned non-OK status")
		return Response{}, apperrors.APIError(string(models.ProviderCodex), resp.StatusCode)
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		logger.WithError(err).Error("failed to decode chat response")
		return Response{}, apperrors.InvalidResponse("OpenAI API", err)
	}
	if len(decoded.Choices) == 0 {
		logger.Error("chat response has no choices")
		return Response{}, apperrors.InvalidResponse("OpenAI API", fmt.Errorf("empty choices"))
	}

	text := decoded.Choices[0].Message.Content
	c.setResponse(text)

	out := Response{Provider: models.ProviderCodex, Model: decoded.Model, Text: text}
	if out.Model == "" {
		out.Model = c.model
	}
	if decoded.Usage != nil {
		out.Usage = &Usage{InputTokens: decoded.Usage.PromptTokens, OutputTokens: decoded.Usage.CompletionTokens}
	}

	logger.WithFields(observability.Fields{
		"latency_ms": observability.Since(start),
		"chars":      len(text),
	}).Debug("chat request completed")

	return out, nil
}

// StreamCommand sends one command and streams the response text
func (c *OpenAIClient) StreamCommand(ctx context.Context, command string, cmdCtx *Context) *Stream {
	key := c.key()
	if key == "" {
		return abortedStream(apperrors.Describe(apperrors.NotAuthenticated(string(models.ProviderCodex))))
	}

	logger := c.logger.WithField("operation", "stream")
	open := func(ctx context.Context) (*http.Response, error) {
		req, err := c.newRequest(ctx, key, command, cmdCtx, true)
		if err != nil {
			return nil, err
		}
		return c.client.Do(req)
	}
	return startStream(ctx, open, extractOpenAI, logger)
}

// extractOpenAI reads choices[0].delta.content
func extractOpenAI(payload []byte) (event, error) {
	var chunk struct {
		Choices []struct {
			Delta struct {
				Content *string `json:"content"`
			} `json:"delta"`
		} `json:"choices"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(payload, &chunk); err != nil {
		return event{}, err
	}

	if chunk.Error != nil {
		return event{err: chunk.Error.Message}, nil
	}
	if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != nil {
		return event{text: *chunk.Choices[0].Delta.Content, hasText: true}, nil
	}
	return event{}, nil
}
