// Package vault persists opaque secrets by key.
//
// Every implementation is idempotent: Save overwrites, Delete of a missing
// key is a no-op, and Load of a missing key reports absence instead of an error.
package vault

import (
	"fmt"
	"os"
	"regexp"
	"runtime"

	"github.com/d1childress/ccmanager/internal/observability"
	apperrors "github.com/d1childress/ccmanager/pkg/errors"
)

// ServiceName namespaces every secret in the system keyring
const ServiceName = "ccmanager"

// KeychainEnvVar set to "false" forces the encrypted file backend
const KeychainEnvVar = "CCMANAGER_USE_KEYCHAIN"

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Vault is opaque key/value secret persistence
type Vault interface {
	Save(key, value string) error
	Load(key string) (value string, ok bool, err error)
	Delete(key string) error
}

// New selects the system keyring when one is reachable, otherwise an
// encrypted file store under dir
func New(dir string, logger *observability.Logger) (Vault, error) {
	logger = observability.OrNop(logger).WithField("component", "vault")

	if keyringAvailable() {
		logger.Debug("using system keyring")
		return NewKeyringVault(ServiceName), nil
	}

	logger.WithField("dir", dir).Debug("system keyring unavailable, using encrypted files")
	return NewFileVault(dir)
}

func validateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return apperrors.New(apperrors.ErrCodeCredentialStore, fmt.Sprintf("invalid vault key %q", key)).
			WithContext("key", key)
	}
	return nil
}

func storeError(op, key string, err error) error {
	return apperrors.Wrap(err, apperrors.ErrCodeCredentialStore, fmt.Sprintf("vault %s failed", op)).
		WithContext("key", key)
}

func keyringAvailable() bool {
	if os.Getenv(KeychainEnvVar) == "false" {
		return false
	}

	switch runtime.GOOS {
	case "darwin", "windows":
		return true
	case "linux":
		if os.Getenv("DISPLAY") != "" || os.Getenv("WAYLAND_DISPLAY") != "" {
			return true
		}
	}
	return false
}
