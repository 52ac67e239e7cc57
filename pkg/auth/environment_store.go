package auth

import (
	"os"
	"strings"
	"time"
)

// EnvAPIKey is the variable the environment store reads
const EnvAPIKey = "FLICKRHARVEST_API_KEY"

// EnvironmentStore exposes FLICKRHARVEST_API_KEY as a read-only profile
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(profile *Profile) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment key under name, or "env" when name is
// empty.
func (e *EnvironmentStore) Retrieve(name string) (*Profile, error) {
	key := strings.TrimSpace(os.Getenv(EnvAPIKey))
	if key == "" {
		return nil, ErrCredentialsNotFound
	}
	if name == "" {
		name = "env"
	} else if name != "env" {
		return nil, ErrCredentialsNotFound
	}

	return &Profile{
		Name:         name,
		APIKey:       key,
		LastModified: time.Now(),
	}, nil
}

// List returns the environment profile when the variable is set
func (e *EnvironmentStore) List() ([]*Profile, error) {
	profile, err := e.Retrieve("")
	if err != nil {
		return []*Profile{}, nil
	}
	return []*Profile{profile}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

// Exists checks if the environment key is set
func (e *EnvironmentStore) Exists(name string) bool {
	_, err := e.Retrieve(name)
	return err == nil
}
