package models

import (
	"fmt"
	"strings"
	"time"
)

// Theme selects the application color scheme
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
	ThemeAuto  Theme = "auto"
)

// ParseTheme validates a theme name
func ParseTheme(name string) (Theme, error) {
	switch t := Theme(strings.ToLower(strings.TrimSpace(name))); t {
	case ThemeDark, ThemeLight, ThemeAuto:
		return t, nil
	default:
		return "", fmt.Errorf("unknown theme %q (expected dark, light or auto)", name)
	}
}

// Credentials holds a provider secret plus its descriptive metadata.
// Token never leaves the vault through serialized settings.
type Credentials struct {
	Token          string `yaml:"-" json:"-"`
	Username       string `yaml:"username,omitempty" json:"username,omitempty"`
	OrganizationID string `yaml:"organization_id,omitempty" json:"organization_id,omitempty"`
}

// Settings is the persisted application configuration
type Settings struct {
	DefaultLocalPath  string        `yaml:"default_local_path"`
	AutoSync          bool          `yaml:"auto_sync"`
	SyncInterval      time.Duration `yaml:"sync_interval"`
	ShowNotifications bool          `yaml:"show_notifications"`
	Theme             Theme         `yaml:"theme"`
	LogLevel          string        `yaml:"log_level,omitempty"`
	GitHub            *Credentials  `yaml:"github,omitempty"`
	Claude            *Credentials  `yaml:"claude,omitempty"`
	Codex             *Credentials  `yaml:"codex,omitempty"`

	// SelectedRepository is the id of the repository commands run against
	SelectedRepository string `yaml:"selected_repository,omitempty"`
}

// DefaultSettings returns the settings used before anything is persisted
func DefaultSettings() Settings {
	return Settings{
		DefaultLocalPath:  "~/Developer",
		AutoSync:          true,
		SyncInterval:      300 * time.Second,
		ShowNotifications: true,
		Theme:             ThemeDark,
	}
}

// CredentialsFor returns the embedded credentials for a provider, if any
func (s Settings) CredentialsFor(p Provider) *Credentials {
	switch p {
	case ProviderGitHub:
		return s.GitHub
	case ProviderClaude:
		return s.Claude
	case ProviderCodex:
		return s.Codex
	default:
		return nil
	}
}

// SetCredentials replaces the embedded credentials for a provider; nil clears them
func (s *Settings) SetCredentials(p Provider, creds *Credentials) {
	switch p {
	case ProviderGitHub:
		s.GitHub = creds
	case ProviderClaude:
		s.Claude = creds
	case ProviderCodex:
		s.Codex = creds
	}
}
