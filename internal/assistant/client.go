// Package assistant sends natural-language commands to remote AI assistants,
// either as a single request or as a streamed sequence of text fragments.
package assistant

import (
	"context"
	"net/http"
	"sync"

	"github.com/d1childress/ccmanager/pkg/models"
)

// Usage is the token accounting reported by a provider
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Total returns input plus output tokens
func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// Response is a completed, non-streamed command result
type Response struct {
	Provider models.Provider
	Model    string
	Text     string
	// Usage is nil when the provider did not report it
	Usage *Usage
}

// Client is a remote assistant
type Client interface {
	Provider() models.Provider
	Model() string
	Connect(apiKey string)
	IsConnected() bool
	IsProcessing() bool
	CurrentResponse() (string, bool)
	ExecuteCommand(ctx context.Context, command string, c *Context) (Response, error)
	StreamCommand(ctx context.Context, command string, c *Context) *Stream
}

// Option configures a client
type Option func(*settings)

type settings struct {
	baseURL string
	model   string
	client  *http.Client
}

// WithBaseURL overrides the API endpoint
func WithBaseURL(url string) Option {
	return func(s *settings) { s.baseURL = url }
}

// WithModel overrides the request model
func WithModel(model string) Option {
	return func(s *settings) {
		if model != "" {
			s.model = model
		}
	}
}

// WithHTTPClient overrides the HTTP client; the default has no explicit timeout
func WithHTTPClient(client *http.Client) Option {
	return func(s *settings) { s.client = client }
}

func newSettings(baseURL, model string, opts []Option) settings {
	s := settings{baseURL: baseURL, model: model, client: http.DefaultClient}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// connection holds the key and the observable request state shared by all clients
type connection struct {
	mu         sync.RWMutex
	apiKey     string
	processing bool
	response   *string
}

func (c *connection) Connect(apiKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apiKey = apiKey
}

func (c *connection) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey != ""
}

func (c *connection) IsProcessing() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.processing
}

// CurrentResponse returns the text of the last successful command
func (c *connection) CurrentResponse() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.response == nil {
		return "", false
	}
	return *c.response, true
}

func (c *connection) key() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey
}

// begin sets the processing flag; the returned func clears it
func (c *connection) begin() (end func()) {
	c.mu.Lock()
	c.processing = true
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		c.processing = false
		c.mu.Unlock()
	}
}

func (c *connection) setResponse(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.response = &text
}
