package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/d1childress/ccmanager/pkg/errors"
	"github.com/d1childress/ccmanager/pkg/models"
)

func TestLoadSettingsDefaults(t *testing.T) {
	store := NewStore(t.TempDir())

	settings, err := store.LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSettings(), settings)
}

func TestSaveAndLoadSettings(t *testing.T) {
	store := NewStore(t.TempDir())

	settings := models.DefaultSettings()
	settings.AutoSync = false
	settings.Theme = models.ThemeLight
	settings.SyncInterval = time.Minute
	settings.GitHub = &models.Credentials{Token: "ghp_secret", Username: "octo"}

	require.NoError(t, store.SaveSettings(settings))

	raw, err := os.ReadFile(store.SettingsFile())
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "ghp_secret")

	info, err := os.Stat(store.SettingsFile())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := store.LoadSettings()
	require.NoError(t, err)
	assert.False(t, loaded.AutoSync)
	assert.Equal(t, models.ThemeLight, loaded.Theme)
	assert.Equal(t, time.Minute, loaded.SyncInterval)
	require.NotNil(t, loaded.GitHub)
	assert.Equal(t, "octo", loaded.GitHub.Username)
	assert.Empty(t, loaded.GitHub.Token)
}

func TestLoadSettingsPartialFileKeepsDefaults(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, os.WriteFile(store.SettingsFile(), []byte("theme: auto\n"), 0600))

	settings, err := store.LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, models.ThemeAuto, settings.Theme)
	assert.True(t, settings.AutoSync)
	assert.Equal(t, "~/Developer", settings.DefaultLocalPath)
}

func TestLoadSettingsInvalid(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, os.WriteFile(store.SettingsFile(), []byte("theme: neon\n"), 0600))

	_, err := store.LoadSettings()
	assert.True(t, apperrors.Is(err, apperrors.ErrConfigInvalid))

	require.NoError(t, os.WriteFile(store.SettingsFile(), []byte("theme: [unclosed"), 0600))
	_, err = store.LoadSettings()
	assert.Error(t, err)
}

func TestRepositoriesRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())

	repos, err := store.LoadRepositories()
	require.NoError(t, err)
	assert.Empty(t, repos)

	want := []models.Repository{
		{ID: "1", Name: "widgets", FullName: "octo/widgets", DefaultBranch: "main", LocalPath: "/src/widgets"},
		{ID: "2", Name: "gadgets", FullName: "octo/gadgets", DefaultBranch: "trunk", Private: true},
	}
	require.NoError(t, store.SaveRepositories(want))

	got, err := store.LoadRepositories()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "/src/widgets", got[0].LocalPath)
	assert.True(t, got[1].Private)
	assert.Equal(t, "trunk", got[1].DefaultBranch)
}

func TestApply(t *testing.T) {
	tests := []struct {
		key     string
		value   string
		wantErr bool
		check   func(t *testing.T, s models.Settings)
	}{
		{"theme", "light", false, func(t *testing.T, s models.Settings) { assert.Equal(t, models.ThemeLight, s.Theme) }},
		{"theme", "neon", true, nil},
		{"auto_sync", "false", false, func(t *testing.T, s models.Settings) { assert.False(t, s.AutoSync) }},
		{"auto_sync", "maybe", true, nil},
		{"sync_interval", "120", false, func(t *testing.T, s models.Settings) { assert.Equal(t, 2*time.Minute, s.SyncInterval) }},
		{"sync_interval", "10m", false, func(t *testing.T, s models.Settings) { assert.Equal(t, 10*time.Minute, s.SyncInterval) }},
		{"sync_interval", "0", true, nil},
		{"default_local_path", "~/src", false, func(t *testing.T, s models.Settings) { assert.Equal(t, "~/src", s.DefaultLocalPath) }},
		{"default_local_path", " ", true, nil},
		{"show_notifications", "0", false, func(t *testing.T, s models.Settings) { assert.False(t, s.ShowNotifications) }},
		{"colour", "x", true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			s := models.DefaultSettings()
			err := Apply(&s, tt.key, tt.value)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, models.DefaultSettings(), s, "rejected values leave settings untouched")
				return
			}
			require.NoError(t, err)
			tt.check(t, s)
		})
	}
}

func TestKeysSorted(t *testing.T) {
	keys := Keys()
	assert.Contains(t, keys, "theme")
	assert.IsIncreasing(t, keys)
}
