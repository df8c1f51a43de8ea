package auth

import (
	"sync"
)

// MemoryStore implements KeyStore in memory, with error injection for tests
type MemoryStore struct {
	keys map[string]*APIKey
	mu   sync.RWMutex

	StoreError    error
	RetrieveError error
	ListError     error
	DeleteError   error
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[string]*APIKey)}
}

// Store saves a copy of key
func (m *MemoryStore) Store(key *APIKey) error {
	if m.StoreError != nil {
		return m.StoreError
	}
	if key == nil || key.Name == "" {
		return ErrInvalidKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	c := *key
	m.keys[key.Name] = &c
	return nil
}

// Retrieve returns a copy of the key stored under name
func (m *MemoryStore) Retrieve(name string) (*APIKey, error) {
	if m.RetrieveError != nil {
		return nil, m.RetrieveError
	}
	if name == "" {
		return nil, ErrInvalidKey
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	k, ok := m.keys[name]
	if !ok {
		return nil, ErrKeyNotFound
	}
	c := *k
	return &c, nil
}

// List returns copies of all keys
func (m *MemoryStore) List() ([]*APIKey, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*APIKey, 0, len(m.keys))
	for _, k := range m.keys {
		c := *k
		out = append(out, &c)
	}
	return out, nil
}

// Delete removes the key stored under name
func (m *MemoryStore) Delete(name string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[name]; !ok {
		return ErrKeyNotFound
	}
	delete(m.keys, name)
	return nil
}

// Exists checks if a key is stored under name
func (m *MemoryStore) Exists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.keys[name]
	return ok
}

// Count returns the number of stored keys
func (m *MemoryStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.keys)
}
