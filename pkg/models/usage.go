package models

import "time"

// Provider identifies an external service the application authenticates against
type Provider string

const (
	ProviderGitHub Provider = "github"
	ProviderClaude Provider = "claude"
	ProviderCodex  Provider = "codex"
)

// Providers lists every known provider in display order
var Providers = []Provider{ProviderGitHub, ProviderClaude, ProviderCodex}

// IsAssistant reports whether the provider is an AI assistant
func (p Provider) IsAssistant() bool {
	return p == ProviderClaude || p == ProviderCodex
}

// UsageSample is one observation of assistant consumption
type UsageSample struct {
	Date         time.Time `json:"date"`
	ClaudeTokens int       `json:"claude_tokens"`
	CodexTokens  int       `json:"codex_tokens"`
	APICalls     int       `json:"api_calls"`
	Cost         float64   `json:"cost"`
}

// TokensFor returns the token count recorded for an assistant provider
func (u UsageSample) TokensFor(p Provider) int {
	switch p {
	case ProviderClaude:
		return u.ClaudeTokens
	case ProviderCodex:
		return u.CodexTokens
	default:
		return 0
	}
}

// TotalTokens returns the token count across all providers
func (u UsageSample) TotalTokens() int {
	return u.ClaudeTokens + u.CodexTokens
}
