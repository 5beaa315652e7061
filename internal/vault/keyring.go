package vault

import (
	"errors"

	"github.com/zalando/go-keyring"
)

// KeyringVault stores secrets in the operating system keyring
type KeyringVault struct {
	service string
}

// NewKeyringVault creates a keyring-backed vault for a service name
func NewKeyringVault(service string) *KeyringVault {
	return &KeyringVault{service: service}
}

// Save overwrites the secret stored under key
func (v *KeyringVault) Save(key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := keyring.Set(v.service, key, value); err != nil {
		return storeError("save", key, err)
	}
	return nil
}

// Load returns the secret under key and whether it exists
func (v *KeyringVault) Load(key string) (string, bool, error) {
	if err := validateKey(key); err != nil {
		return "", false, err
	}
	value, err := keyring.Get(v.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, storeError("load", key, err)
	}
	return value, true, nil
}

// Delete removes the secret under key
func (v *KeyringVault) Delete(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	err := keyring.Delete(v.service, key)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return storeError("delete", key, err)
	}
	return nil
}
