package session

import (
	"fmt"
	"strings"

	apperrors "github.com/d1childress/ccmanager/pkg/errors"
	"github.com/d1childress/ccmanager/pkg/models"
)

// Agent selects which assistants receive a command
type Agent string

const (
	AgentClaude Agent = "claude"
	AgentCodex  Agent = "codex"
	AgentBoth   Agent = "both"
)

// ParseAgent validates an agent selector
func ParseAgent(s string) (Agent, error) {
	switch a := Agent(strings.ToLower(strings.TrimSpace(s))); a {
	case AgentClaude, AgentCodex, AgentBoth:
		return a, nil
	case "":
		return AgentClaude, nil
	default:
		return "", apperrors.New(apperrors.ErrCodeUnknownAgent, fmt.Sprintf("Unknown agent %q", s)).
			WithSuggestions("Use claude, codex or both")
	}
}

// Providers returns the providers the selector dispatches to, in order
func (a Agent) Providers() []models.Provider {
	switch a {
	case AgentCodex:
		return []models.Provider{models.ProviderCodex}
	case AgentBoth:
		return []models.Provider{models.ProviderClaude, models.ProviderCodex}
	default:
		return []models.Provider{models.ProviderClaude}
	}
}
