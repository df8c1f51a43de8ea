package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"
)

// DefaultName is the entry used when no key name is given
const DefaultName = "default"

// APIKey is a stored proxy listing API key
type APIKey struct {
	Name         string    `json:"name"`
	Key          string    `json:"key"`
	LastModified time.Time `json:"last_modified"`
}

// KeyStore is the interface for storing and retrieving API keys
type KeyStore interface {
	// Store saves a key under its name
	Store(key *APIKey) error

	// Retrieve gets the key stored under name
	Retrieve(name string) (*APIKey, error)

	// List returns all stored keys
	List() ([]*APIKey, error)

	// Delete removes the key stored under name
	Delete(name string) error

	// Exists checks if a key is stored under name
	Exists(name string) bool
}

// Manager handles key storage with fallback mechanisms
type Manager struct {
	stores []KeyStore
}

// NewManager uses the system keychain when it is reachable and always falls
// back to an encrypted file in the config directory
func NewManager() (*Manager, error) {
	var stores []KeyStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "apikeys.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores creates a manager over the given stores, in order
func NewManagerWithStores(stores ...KeyStore) *Manager {
	return &Manager{stores: stores}
}

// Store saves the key using the first store that accepts it
func (m *Manager) Store(key *APIKey) error {
	if key == nil {
		return ErrInvalidKey
	}
	if key.Name == "" {
		key.Name = DefaultName
	}
	key.Key = strings.TrimSpace(key.Key)
	if key.Key == "" {
		return errors.New("API key is required")
	}

	key.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		err := store.Store(key)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store API key: %w", lastErr)
	}
	return ErrStoreUnavailable
}

// Retrieve gets the key from the first store that has it
func (m *Manager) Retrieve(name string) (*APIKey, error) {
	if name == "" {
		name = DefaultName
	}
	for _, store := range m.stores {
		if key, err := store.Retrieve(name); err == nil && key != nil {
			return key, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, name)
}

// RetrieveDefault returns the default key, or the most recently modified
// key when no default is stored
func (m *Manager) RetrieveDefault() (*APIKey, error) {
	if key, err := m.Retrieve(DefaultName); err == nil {
		return key, nil
	}

	keys, err := m.List()
	if err == nil && len(keys) > 0 {
		return keys[0], nil
	}
	return nil, ErrKeyNotFound
}

// List returns keys from all stores, newest first. A name stored in several
// stores is reported once with its latest value.
func (m *Manager) List() ([]*APIKey, error) {
	byName := make(map[string]*APIKey)

	for _, store := range m.stores {
		keys, err := store.List()
		if err != nil {
			continue
		}
		for _, k := range keys {
			if existing, ok := byName[k.Name]; !ok || k.LastModified.After(existing.LastModified) {
				byName[k.Name] = k
			}
		}
	}

	result := make([]*APIKey, 0, len(byName))
	for _, k := range byName {
		result = append(result, k)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].LastModified.After(result[j].LastModified)
	})
	return result, nil
}

// Delete removes the key from every store
func (m *Manager) Delete(name string) error {
	if name == "" {
		name = DefaultName
	}

	var deleted bool
	var lastErr error
	for _, store := range m.stores {
		if err := store.Delete(name); err == nil {
			deleted = true
		} else if !errors.Is(err, ErrKeyNotFound) {
			lastErr = err
		}
	}

	if deleted {
		return nil
	}
	if lastErr != nil {
		return fmt.Errorf("failed to delete API key: %w", lastErr)
	}
	return fmt.Errorf("%w: %s", ErrKeyNotFound, name)
}

// getConfigDir returns the per-user configuration directory
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "imgscraper")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "imgscraper")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "imgscraper")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "imgscraper")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// MaskKey hides all but the first and last 4 characters
func MaskKey(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

var (
	ErrKeyNotFound      = errors.New("API key not found")
	ErrInvalidKey       = errors.New("invalid API key entry")
	ErrStoreUnavailable = errors.New("key store unavailable")
)
