package vault

import "sync"

// MemoryVault keeps secrets in process memory
type MemoryVault struct {
	mu      sync.RWMutex
	secrets map[string]string
}

// NewMemoryVault creates an empty in-memory vault
func NewMemoryVault() *MemoryVault {
	return &MemoryVault{secrets: make(map[string]string)}
}

func (v *MemoryVault) Save(key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.secrets[key] = value
	return nil
}

func (v *MemoryVault) Load(key string) (string, bool, error) {
	if err := validateKey(key); err != nil {
		return "", false, err
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	value, ok := v.secrets[key]
	return value, ok, nil
}

func (v *MemoryVault) Delete(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.secrets, key)
	return nil
}
