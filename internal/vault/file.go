package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/d1childress/ccmanager/internal/common"
	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize         = 32
	pbkdf2Iterations = 100000
	keySize          = 32
	masterKeyFile    = ".master"
	secretSuffix     = ".cred"
)

type secretFile struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// FileVault stores each secret AES-GCM encrypted in its own file
type FileVault struct {
	mu        sync.Mutex
	dir       string
	masterKey []byte
}

// NewFileVault opens or initializes an encrypted vault directory
func NewFileVault(dir string) (*FileVault, error) {
	dir, err := common.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, common.DirPermissionSecure); err != nil {
		return nil, storeError("init", masterKeyFile, err)
	}

	v := &FileVault{dir: dir}
	key, err := v.loadMasterKey()
	if err != nil {
		return nil, storeError("init", masterKeyFile, err)
	}
	v.masterKey = key
	return v, nil
}

// Save overwrites the secret stored under key
func (v *FileVault) Save(key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	sealed, err := v.encrypt(value)
	if err != nil {
		return storeError("save", key, err)
	}
	data, err := json.Marshal(secretFile{Key: key, Value: sealed})
	if err != nil {
		return storeError("save", key, err)
	}
	if err := common.WriteFileAtomic(v.path(key), data, common.FilePermissionSecure); err != nil {
		return storeError("save", key, err)
	}
	return nil
}

// Load returns the secret under key and whether it exists
func (v *FileVault) Load(key string) (string, bool, error) {
	if err := validateKey(key); err != nil {
		return "", false, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	data, err := os.ReadFile(v.path(key)) // #nosec G304 - key is validated
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, storeError("load", key, err)
	}

	var sf secretFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return "", false, storeError("load", key, err)
	}
	value, err := v.decrypt(sf.Value)
	if err != nil {
		return "", false, storeError("load", key, err)
	}
	return value, true, nil
}

// Delete removes the secret under key
func (v *FileVault) Delete(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if err := os.Remove(v.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return storeError("delete", key, err)
	}
	return nil
}

func (v *FileVault) path(key string) string {
	return filepath.Join(v.dir, key+secretSuffix)
}

func (v *FileVault) loadMasterKey() ([]byte, error) {
	keyPath := filepath.Join(v.dir, masterKeyFile)

	data, err := os.ReadFile(keyPath) // #nosec G304 - fixed name inside vault dir
	if err == nil {
		if len(data) != saltSize+keySize {
			return nil, fmt.Errorf("invalid master key file size")
		}
		return data[saltSize:], nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	key := pbkdf2.Key([]byte(machineID()), salt, pbkdf2Iterations, keySize, sha256.New)

	keyData := append(salt, key...)
	if err := common.WriteFileAtomic(keyPath, keyData, common.FilePermissionSecure); err != nil {
		return nil, err
	}
	return key, nil
}

func (v *FileVault) encrypt(plaintext string) (string, error) {
	gcm, err := v.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

func (v *FileVault) decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", err
	}

	gcm, err := v.gcm()
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, sealed := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func (v *FileVault) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(v.masterKey)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func machineID() string {
	hostname, _ := os.Hostname()
	user := os.Getenv("USER")
	if user == "" {
		user = os.Getenv("USERNAME")
	}

	data := fmt.Sprintf("%s-%s-%s-%s", hostname, user, runtime.GOOS, runtime.GOARCH)
	hash := sha256.Sum256([]byte(data))
	return base64.StdEncoding.EncodeToString(hash[:])
}
