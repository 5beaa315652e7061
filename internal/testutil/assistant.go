package testutil

import (
	"context"
	"sync"

	"github.com/d1childress/ccmanager/internal/assistant"
	"github.com/d1childress/ccmanager/pkg/models"
)

// FakeClient is a scripted assistant.Client
type FakeClient struct {
	mu       sync.Mutex
	provider models.Provider
	model    string
	apiKey   string
	Response assistant.Response
	Err      error
	// StreamFn serves StreamCommand; without it the stream is aborted
	StreamFn func(ctx context.Context, command string, c *assistant.Context) *assistant.Stream
	Commands []string
	Contexts []*assistant.Context
	last     *string
}

// NewFakeClient creates a connected fake for a provider
func NewFakeClient(p models.Provider, model string) *FakeClient {
	return &FakeClient{provider: p, model: model, apiKey: "test-key"}
}

func (f *FakeClient) Provider() models.Provider { return f.provider }

func (f *FakeClient) Model() string { return f.model }

func (f *FakeClient) Connect(apiKey string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apiKey = apiKey
}

func (f *FakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.apiKey != ""
}

func (f *FakeClient) IsProcessing() bool { return false }

func (f *FakeClient) CurrentResponse() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.last == nil {
		return "", false
	}
	return *f.last, true
}

func (f *FakeClient) ExecuteCommand(_ context.Context, command string, c *assistant.Context) (assistant.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Commands = append(f.Commands, command)
	f.Contexts = append(f.Contexts, c)
	if f.Err != nil {
		return assistant.Response{}, f.Err
	}
	resp := f.Response
	resp.Provider = f.provider
	text := resp.Text
	f.last = &text
	return resp, nil
}

func (f *FakeClient) StreamCommand(ctx context.Context, command string, c *assistant.Context) *assistant.Stream {
	f.mu.Lock()
	f.Commands = append(f.Commands, command)
	fn := f.StreamFn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, command, c)
	}
	// An unconfigured client aborts immediately without touching the network.
	return assistant.NewAnthropicClient(nil).StreamCommand(ctx, command, c)
}

// CallCount returns how many commands were executed or streamed
func (f *FakeClient) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Commands)
}

var _ assistant.Client = (*FakeClient)(nil)
