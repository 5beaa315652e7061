package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestRepositoryIdentity(t *testing.T) {
	a := Repository{ID: "42", Name: "one"}
	b := Repository{ID: "42", Name: "renamed", LocalPath: "/tmp/x"}
	c := Repository{ID: "43", Name: "one"}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestRepositoryCloneURL(t *testing.T) {
	repo := Repository{FullName: "octo/widgets"}
	assert.Equal(t, "https://github.com/octo/widgets.git", repo.CloneURL("github.com"))
}

func TestRepositoryWithLocalPath(t *testing.T) {
	repo := Repository{ID: "1"}
	assert.False(t, repo.HasLocalPath())

	cloned := repo.WithLocalPath("/src/widgets")
	assert.True(t, cloned.HasLocalPath())
	assert.False(t, repo.HasLocalPath(), "original value must not change")
}

func TestCommandStatusTerminal(t *testing.T) {
	assert.False(t, CommandPending.IsTerminal())
	assert.False(t, CommandRunning.IsTerminal())
	assert.True(t, CommandCompleted.IsTerminal())
	assert.True(t, CommandFailed.IsTerminal())
}

func TestSessionSnapshotIsIndependent(t *testing.T) {
	end := time.Now()
	s := &AgentSession{
		ID:       "s1",
		Commands: []AgentCommand{{ID: "c1"}},
		EndTime:  &end,
	}

	snap := s.Snapshot()
	snap.Commands[0].ID = "mutated"
	*snap.EndTime = end.Add(time.Hour)

	assert.Equal(t, "c1", s.Commands[0].ID)
	assert.Equal(t, end, *s.EndTime)
}

func TestUsageSampleTokens(t *testing.T) {
	u := UsageSample{ClaudeTokens: 10, CodexTokens: 5}
	assert.Equal(t, 10, u.TokensFor(ProviderClaude))
	assert.Equal(t, 5, u.TokensFor(ProviderCodex))
	assert.Equal(t, 0, u.TokensFor(ProviderGitHub))
	assert.Equal(t, 15, u.TotalTokens())
}

func TestParseTheme(t *testing.T) {
	for _, name := range []string{"dark", "Light", " auto "} {
		_, err := ParseTheme(name)
		assert.NoError(t, err, name)
	}
	_, err := ParseTheme("solarized")
	assert.Error(t, err)
}

func TestSettingsYAMLOmitsTokens(t *testing.T) {
	s := DefaultSettings()
	s.SetCredentials(ProviderGitHub, &Credentials{Token: "ghp_secret", Username: "octo"})

	data, err := yaml.Marshal(s)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "ghp_secret")
	assert.Contains(t, string(data), "octo")

	var decoded Settings
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, 300*time.Second, decoded.SyncInterval)
	require.NotNil(t, decoded.CredentialsFor(ProviderGitHub))
	assert.Empty(t, decoded.CredentialsFor(ProviderGitHub).Token)
}

func TestCredentialsForReadsValue(t *testing.T) {
	settings := func() Settings {
		s := DefaultSettings()
		s.SetCredentials(ProviderClaude, &Credentials{Username: "dev"})
		return s
	}

	require.NotNil(t, settings().CredentialsFor(ProviderClaude))
	assert.Equal(t, "dev", settings().CredentialsFor(ProviderClaude).Username)
	assert.Nil(t, settings().CredentialsFor(ProviderCodex))
	assert.Nil(t, settings().CredentialsFor(Provider("gitlab")))
}

func TestCommandLifecycle(t *testing.T) {
	tests := []struct {
		from CommandStatus
		to   CommandStatus
		ok   bool
	}{
		{CommandPending, CommandRunning, true},
		{CommandPending, CommandFailed, true},
		{CommandPending, CommandCompleted, false},
		{CommandRunning, CommandCompleted, true},
		{CommandRunning, CommandFailed, true},
		{CommandRunning, CommandPending, false},
		{CommandCompleted, CommandFailed, false},
		{CommandFailed, CommandRunning, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.ok, tt.from.CanTransition(tt.to))

			cmd := AgentCommand{Status: tt.from}
			assert.Equal(t, tt.ok, cmd.Advance(tt.to))
			if tt.ok {
				assert.Equal(t, tt.to, cmd.Status)
			} else {
				assert.Equal(t, tt.from, cmd.Status)
			}
		})
	}
}
