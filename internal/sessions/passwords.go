package sessions

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/99designs/keyring"
	"github.com/rebeliceyang/lazymy/internal/models"
)

const serviceName = "lazymy"

// ErrPasswordNotFound is returned when no password is stored for a session
var ErrPasswordNotFound = errors.New("password not found in keyring")

// PasswordSaveError reports a failed keyring write
type PasswordSaveError struct {
	Message string
	Err     error
}

func (e *PasswordSaveError) Error() string {
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *PasswordSaveError) Unwrap() error {
	return e.Err
}

// PasswordReadError reports a failed keyring read other than a missing key
type PasswordReadError struct {
	Err error
}

func (e *PasswordReadError) Error() string {
	return fmt.Sprintf("failed to read password from keyring: %v", e.Err)
}

func (e *PasswordReadError) Unwrap() error {
	return e.Err
}

// PasswordStore keeps session passwords in the OS keyring, falling back to an
// encrypted file under the config directory
type PasswordStore struct {
	ring          keyring.Keyring
	usingFallback bool
}

// NewPasswordStore opens the platform keyring
func NewPasswordStore(configDir string) (*PasswordStore, error) {
	backends := backendsForPlatform()

	ring, err := keyring.Open(keyring.Config{
		ServiceName:     serviceName,
		AllowedBackends: backends,
		FileDir:         filepath.Join(configDir, "keyring"),
		FilePasswordFunc: func(_ string) (string, error) {
			return deriveFilePassword()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open keyring: %w", err)
	}

	return &PasswordStore{
		ring:          ring,
		usingFallback: usingFallback(backends),
	}, nil
}

// NewPasswordStoreWithKeyring wraps an already opened keyring
func NewPasswordStoreWithKeyring(ring keyring.Keyring) *PasswordStore {
	return &PasswordStore{ring: ring}
}

func backendsForPlatform() []keyring.BackendType {
	switch runtime.GOOS {
	case "darwin":
		return []keyring.BackendType{keyring.KeychainBackend, keyring.FileBackend}
	case "linux":
		return []keyring.BackendType{keyring.SecretServiceBackend, keyring.KWalletBackend, keyring.FileBackend}
	case "windows":
		return []keyring.BackendType{keyring.WinCredBackend, keyring.FileBackend}
	default:
		return []keyring.BackendType{keyring.FileBackend}
	}
}

func usingFallback(requested []keyring.BackendType) bool {
	if len(requested) == 1 && requested[0] == keyring.FileBackend {
		return true
	}
	for _, b := range keyring.AvailableBackends() {
		if b != keyring.FileBackend {
			return false
		}
	}
	return true
}

// IsUsingFallback reports whether passwords go to the file backend
func (ps *PasswordStore) IsUsingFallback() bool {
	return ps.usingFallback
}

// Save stores the password of a session. Empty passwords are not stored.
func (ps *PasswordStore) Save(cfg models.ConnectionConfig) error {
	if cfg.Password == "" {
		return nil
	}

	err := ps.ring.Set(keyring.Item{
		Key:         cfg.UUID,
		Data:        []byte(cfg.Password),
		Label:       fmt.Sprintf("lazymy: %s", cfg),
		Description: "Database session password for lazymy",
	})
	if err != nil {
		return &PasswordSaveError{Message: "failed to save password to keyring", Err: err}
	}
	return nil
}

// Get returns the stored password of a session
func (ps *PasswordStore) Get(uuid string) (string, error) {
	item, err := ps.ring.Get(uuid)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", ErrPasswordNotFound
		}
		return "", &PasswordReadError{Err: err}
	}
	return string(item.Data), nil
}

// Delete removes the stored password of a session, if any
func (ps *PasswordStore) Delete(uuid string) error {
	err := ps.ring.Remove(uuid)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("failed to delete password from keyring: %w", err)
	}
	return nil
}
