package assistant

import (
	"fmt"

	"github.com/d1childress/ccmanager/pkg/models"
)

// SystemPrompt is the fixed instruction sent with every command
const SystemPrompt = "You are a code assistant helping with repository management and code generation. Provide clear, concise responses with code examples when appropriate."

// DefaultMaxTokens bounds every completion
const DefaultMaxTokens = 4096

// Context describes the repository a command runs against
type Context struct {
	RepositoryName string
	Language       string
}

// ContextFor builds a command context from a repository
func ContextFor(repo models.Repository) *Context {
	return &Context{RepositoryName: repo.Name, Language: repo.Language}
}

// Prefix renders the context block that precedes the command; nil renders nothing
func (c *Context) Prefix() string {
	if c == nil {
		return ""
	}
	return fmt.Sprintf("Repository: %s\nLanguage: %s\n\n", orUnknown(c.RepositoryName), orUnknown(c.Language))
}

// BuildPrompt renders the user message for a command
func BuildPrompt(command string, c *Context) string {
	return c.Prefix() + "Command: " + command
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
