package auth

import (
	"sync"
)

// MockStore is an in-memory CredentialStore for tests
type MockStore struct {
	mu       sync.RWMutex
	profiles map[string]*Profile

	// Injected failures
	StoreError  error
	ListError   error
	DeleteError error
}

// NewMockStore creates an empty mock store
func NewMockStore() *MockStore {
	return &MockStore{profiles: make(map[string]*Profile)}
}

// Store saves a copy of profile
func (m *MockStore) Store(profile *Profile) error {
	if m.StoreError != nil {
		return m.StoreError
	}
	if profile == nil || profile.Name == "" {
		return ErrInvalidCredentials
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p := *profile
	m.profiles[profile.Name] = &p
	return nil
}

// Retrieve returns a copy of the stored profile
func (m *MockStore) Retrieve(name string) (*Profile, error) {
	if name == "" {
		return nil, ErrInvalidCredentials
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	profile, exists := m.profiles[name]
	if !exists {
		return nil, ErrCredentialsNotFound
	}
	p := *profile
	return &p, nil
}

// List returns copies of all stored profiles
func (m *MockStore) List() ([]*Profile, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	profiles := make([]*Profile, 0, len(m.profiles))
	for _, profile := range m.profiles {
		p := *profile
		profiles = append(profiles, &p)
	}
	return profiles, nil
}

// Delete removes a profile
func (m *MockStore) Delete(name string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	if name == "" {
		return ErrInvalidCredentials
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.profiles[name]; !exists {
		return ErrCredentialsNotFound
	}
	delete(m.profiles, name)
	return nil
}

// Exists checks if a profile is stored under name
func (m *MockStore) Exists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.profiles[name]
	return exists
}

// Count returns the number of stored profiles
func (m *MockStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.profiles)
}

// NewMockManager creates a Manager backed by a single mock store. configDir
// holds the default profile marker.
func NewMockManager(configDir string) (*Manager, *MockStore) {
	store := NewMockStore()
	return NewManagerWithStores(configDir, store), store
}
