// Package auth tracks which providers hold a credential.
package auth

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/d1childress/ccmanager/internal/observability"
	"github.com/d1childress/ccmanager/internal/vault"
	apperrors "github.com/d1childress/ccmanager/pkg/errors"
	"github.com/d1childress/ccmanager/pkg/models"
)

// Status is the authentication status of one provider
type Status int

const (
	Unauthenticated Status = iota
	Authenticated
)

func (s Status) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "unauthenticated"
}

// Metadata is the non-secret part of a credential
type Metadata struct {
	Username       string `json:"username,omitempty"`
	OrganizationID string `json:"organization_id,omitempty"`
}

// State is the typed auth state for a provider. Tokens never appear here.
type State struct {
	Provider models.Provider
	Status   Status
	Metadata Metadata
}

// IsAuthenticated reports whether the provider holds a credential
func (s State) IsAuthenticated() bool {
	return s.Status == Authenticated
}

type record struct {
	Token string `json:"token"`
	Metadata
}

// Manager owns provider credentials. State changes only through Restore, Login and Logout.
type Manager struct {
	mu     sync.RWMutex
	vault  vault.Vault
	states map[models.Provider]State
	tokens map[models.Provider]string
	logger *observability.Logger
}

// NewManager creates a manager over a vault; every provider starts unauthenticated
func NewManager(v vault.Vault, logger *observability.Logger) *Manager {
	m := &Manager{
		vault:  v,
		states: make(map[models.Provider]State),
		tokens: make(map[models.Provider]string),
		logger: observability.OrNop(logger).WithField("component", "auth"),
	}
	for _, p := range models.Providers {
		m.states[p] = State{Provider: p}
	}
	return m
}

// VaultKey returns the vault key holding a provider credential
func VaultKey(p models.Provider) string {
	return fmt.Sprintf("%s.token", p)
}

// Restore computes every provider state from the vault. A provider whose
// record cannot be read stays unauthenticated; the first failure is returned.
func (m *Manager) Restore() error {
	var firstErr error
	states := make(map[models.Provider]State, len(models.Providers))
	tokens := make(map[models.Provider]string, len(models.Providers))

	for _, p := range models.Providers {
		states[p] = State{Provider: p}

		raw, ok, err := m.vault.Load(VaultKey(p))
		if err != nil {
			m.logger.WithField("provider", string(p)).WithError(err).Warn("failed to restore credential")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if !ok {
			continue
		}

		rec, err := decodeRecord(raw)
		if err != nil {
			m.logger.WithField("provider", string(p)).WithError(err).Warn("ignoring unreadable credential")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		states[p] = State{Provider: p, Status: Authenticated, Metadata: rec.Metadata}
		tokens[p] = rec.Token
	}

	m.mu.Lock()
	m.states = states
	m.tokens = tokens
	m.mu.Unlock()

	return firstErr
}

// Login stores a credential and marks the provider authenticated
func (m *Manager) Login(p models.Provider, creds models.Credentials) (State, error) {
	token := strings.TrimSpace(creds.Token)
	if token == "" {
		return State{}, apperrors.ConfigError("token must not be empty", string(p))
	}

	rec := record{
		Token: token,
		Metadata: Metadata{
			Username:       creds.Username,
			OrganizationID: creds.OrganizationID,
		},
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return State{}, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to encode credential")
	}
	if err := m.vault.Save(VaultKey(p), string(data)); err != nil {
		return State{}, err
	}

	state := State{Provider: p, Status: Authenticated, Metadata: rec.Metadata}

	m.mu.Lock()
	m.states[p] = state
	m.tokens[p] = token
	m.mu.Unlock()

	m.logger.WithField("provider", string(p)).Info("credential stored")
	return state, nil
}

// Logout deletes a credential and marks the provider unauthenticated
func (m *Manager) Logout(p models.Provider) error {
	if err := m.vault.Delete(VaultKey(p)); err != nil {
		return err
	}

	m.mu.Lock()
	m.states[p] = State{Provider: p}
	delete(m.tokens, p)
	m.mu.Unlock()

	m.logger.WithField("provider", string(p)).Info("credential removed")
	return nil
}

// State returns the current state of a provider
func (m *Manager) State(p models.Provider) State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.states[p]; ok {
		return s
	}
	return State{Provider: p}
}

// States returns every provider state in display order
func (m *Manager) States() []State {
	out := make([]State, 0, len(models.Providers))
	for _, p := range models.Providers {
		out = append(out, m.State(p))
	}
	return out
}

// Token returns the secret for a provider; only provider clients should call this
func (m *Manager) Token(p models.Provider) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	token, ok := m.tokens[p]
	return token, ok
}

// decodeRecord accepts the JSON record, or a bare token written by older versions
func decodeRecord(raw string) (record, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return record{}, fmt.Errorf("empty credential")
	}
	if !strings.HasPrefix(raw, "{") {
		return record{Token: raw}, nil
	}

	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return record{}, fmt.Errorf("failed to decode credential: %w", err)
	}
	if rec.Token == "" {
		return record{}, fmt.Errorf("credential has no token")
	}
	return rec, nil
}
