// Package config persists application settings and the repository list as YAML blobs.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/d1childress/ccmanager/internal/common"
	apperrors "github.com/d1childress/ccmanager/pkg/errors"
	"github.com/d1childress/ccmanager/pkg/models"
)

const (
	SettingsFileName     = "settings.yaml"
	RepositoriesFileName = "repositories.yaml"
)

// Store reads and writes whole blobs under one directory
type Store struct {
	mu  sync.Mutex
	dir string
}

// NewStore creates a store rooted at dir
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the store directory
func (s *Store) Dir() string {
	return s.dir
}

// SettingsFile returns the settings blob path
func (s *Store) SettingsFile() string {
	return filepath.Join(s.dir, SettingsFileName)
}

// RepositoriesFile returns the repository list blob path
func (s *Store) RepositoriesFile() string {
	return filepath.Join(s.dir, RepositoriesFileName)
}

// LoadSettings reads settings; a missing file yields the defaults.
// Fields absent from the file keep their default values.
func (s *Store) LoadSettings() (models.Settings, error) {
	settings := models.DefaultSettings()

	found, err := s.read(s.SettingsFile(), &settings)
	if err != nil || !found {
		return settings, err
	}

	if err := Validate(settings); err != nil {
		return models.DefaultSettings(), err
	}
	return settings, nil
}

// SaveSettings writes the whole settings blob
func (s *Store) SaveSettings(settings models.Settings) error {
	if err := Validate(settings); err != nil {
		return err
	}
	return s.write(s.SettingsFile(), settings)
}

type repositoryFile struct {
	Repositories []models.Repository `yaml:"repositories"`
}

// LoadRepositories reads the persisted repository list; a missing file yields an empty list
func (s *Store) LoadRepositories() ([]models.Repository, error) {
	var doc repositoryFile
	if _, err := s.read(s.RepositoriesFile(), &doc); err != nil {
		return nil, err
	}
	if doc.Repositories == nil {
		return []models.Repository{}, nil
	}
	return doc.Repositories, nil
}

// SaveRepositories writes the whole repository list
func (s *Store) SaveRepositories(repos []models.Repository) error {
	if repos == nil {
		repos = []models.Repository{}
	}
	return s.write(s.RepositoriesFile(), repositoryFile{Repositories: repos})
}

func (s *Store) read(path string, out interface{}) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(path) // #nosec G304 - path is derived from the store dir
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.ErrCodeConfigIO, "failed to read config file").
			WithContext("path", path)
	}

	if err := yaml.Unmarshal(data, out); err != nil {
		return false, apperrors.Wrap(err, apperrors.ErrCodeConfigInvalid, "failed to unmarshal config").
			WithContext("path", path)
	}
	return true, nil
}

func (s *Store) write(path string, in interface{}) error {
	data, err := yaml.Marshal(in)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeConfigIO, "failed to marshal config")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, common.DirPermissionSecure); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeConfigIO, "failed to create config directory").
			WithContext("path", s.dir)
	}
	if err := common.WriteFileAtomic(path, data, common.FilePermissionSecure); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeConfigIO, "failed to write config file").
			WithContext("path", path)
	}
	return nil
}

// Validate checks settings invariants
func Validate(s models.Settings) error {
	if strings.TrimSpace(s.DefaultLocalPath) == "" {
		return apperrors.ConfigError("default local path must not be empty", "default_local_path")
	}
	if s.SyncInterval <= 0 {
		return apperrors.ConfigError("sync interval must be positive", "sync_interval")
	}
	if _, err := models.ParseTheme(string(s.Theme)); err != nil {
		return apperrors.ConfigError(err.Error(), "theme")
	}
	return nil
}

var setters = map[string]func(*models.Settings, string) error{
	"default_local_path": func(s *models.Settings, v string) error {
		s.DefaultLocalPath = strings.TrimSpace(v)
		return nil
	},
	"auto_sync": func(s *models.Settings, v string) error {
		b, err := strconv.ParseBool(v)
		s.AutoSync = b
		return err
	},
	"sync_interval": func(s *models.Settings, v string) error {
		d, err := parseInterval(v)
		s.SyncInterval = d
		return err
	},
	"show_notifications": func(s *models.Settings, v string) error {
		b, err := strconv.ParseBool(v)
		s.ShowNotifications = b
		return err
	},
	"theme": func(s *models.Settings, v string) error {
		t, err := models.ParseTheme(v)
		s.Theme = t
		return err
	},
	"log_level": func(s *models.Settings, v string) error {
		s.LogLevel = strings.ToLower(strings.TrimSpace(v))
		return nil
	},
}

// Keys lists the settings accepted by Apply
func Keys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Apply sets one named setting from its string form. The input is left
// untouched when the value is rejected.
func Apply(s *models.Settings, key, value string) error {
	set, ok := setters[key]
	if !ok {
		return apperrors.ConfigError(fmt.Sprintf("unknown setting %q", key), key).
			WithSuggestions("Valid settings: " + strings.Join(Keys(), ", "))
	}

	next := *s
	if err := set(&next, value); err != nil {
		return apperrors.ConfigError(fmt.Sprintf("invalid value %q: %v", value, err), key)
	}
	if err := Validate(next); err != nil {
		return err
	}
	*s = next
	return nil
}

// parseInterval accepts a Go duration ("5m") or a bare number of seconds ("300")
func parseInterval(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(v)
}
