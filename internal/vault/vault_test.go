package vault

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	apperrors "github.com/d1childress/ccmanager/pkg/errors"
)

func backends(t *testing.T) map[string]Vault {
	t.Helper()
	keyring.MockInit()

	fileVault, err := NewFileVault(t.TempDir())
	require.NoError(t, err)

	return map[string]Vault{
		"keyring": NewKeyringVault("ccmanager-test"),
		"file":    fileVault,
		"memory":  NewMemoryVault(),
	}
}

func TestVaultContract(t *testing.T) {
	for name, v := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := v.Load("github.token")
			require.NoError(t, err)
			assert.False(t, ok, "missing key reports absence")

			require.NoError(t, v.Save("github.token", "first"))
			require.NoError(t, v.Save("github.token", "second"))

			got, ok, err := v.Load("github.token")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "second", got)

			require.NoError(t, v.Delete("github.token"))
			require.NoError(t, v.Delete("github.token"), "deleting a missing key is a no-op")

			_, ok, err = v.Load("github.token")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestVaultRejectsInvalidKeys(t *testing.T) {
	for name, v := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, key := range []string{"", "../escape", "a/b", ".hidden"} {
				err := v.Save(key, "x")
				require.Error(t, err, key)
				assert.Equal(t, apperrors.ErrCodeCredentialStore, apperrors.GetErrorCode(err))
			}
		})
	}
}

func TestFileVaultEncryptsAtRest(t *testing.T) {
	dir := t.TempDir()
	v, err := NewFileVault(dir)
	require.NoError(t, err)

	require.NoError(t, v.Save("claude.token", "sk-ant-secret"))

	raw, err := os.ReadFile(filepath.Join(dir, "claude.token.cred"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "sk-ant-secret")

	info, err := os.Stat(filepath.Join(dir, "claude.token.cred"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestFileVaultReopenKeepsMasterKey(t *testing.T) {
	dir := t.TempDir()
	first, err := NewFileVault(dir)
	require.NoError(t, err)
	require.NoError(t, first.Save("codex.token", "sk-openai"))

	second, err := NewFileVault(dir)
	require.NoError(t, err)
	got, ok, err := second.Load("codex.token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "sk-openai", got)
}

func TestFileVaultRejectsCorruptMasterKey(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".master"), []byte("short"), 0600))

	_, err := NewFileVault(dir)
	assert.Error(t, err)
}

func TestNewHonorsKeychainOptOut(t *testing.T) {
	t.Setenv(KeychainEnvVar, "false")

	v, err := New(t.TempDir(), nil)
	require.NoError(t, err)
	assert.IsType(t, &FileVault{}, v)
}
