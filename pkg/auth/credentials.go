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

// Profile is a named Flickr API key
type Profile struct {
	Name         string    `json:"name"`
	APIKey       string    `json:"api_key"`
	LastModified time.Time `json:"last_modified"`
}

// CredentialStore is the interface for storing and retrieving profiles
type CredentialStore interface {
	// Store saves a profile, replacing one with the same name
	Store(profile *Profile) error

	// Retrieve gets the profile called name
	Retrieve(name string) (*Profile, error)

	// List returns all stored profiles
	List() ([]*Profile, error)

	// Delete removes the profile called name
	Delete(name string) error

	// Exists checks if a profile is stored under name
	Exists(name string) bool
}

// Manager handles credential storage with fallback mechanisms
type Manager struct {
	stores    []CredentialStore
	configDir string
}

// NewManager creates a manager over the keyring (when available), an
// encrypted file and the environment, in that order.
func NewManager() (*Manager, error) {
	var stores []CredentialStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "credentials.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)
	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores, configDir: configDir}, nil
}

// NewManagerWithStores builds a manager over explicit stores. configDir
// holds the default profile marker; empty disables it.
func NewManagerWithStores(configDir string, stores ...CredentialStore) *Manager {
	return &Manager{stores: stores, configDir: configDir}
}

// Store saves a profile using the first store that accepts it
func (m *Manager) Store(profile *Profile) error {
	if profile == nil || strings.TrimSpace(profile.Name) == "" {
		return errors.New("profile name is required")
	}
	if strings.TrimSpace(profile.APIKey) == "" {
		return errors.New("API key is required")
	}
	profile.APIKey = strings.TrimSpace(profile.APIKey)
	profile.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		err := store.Store(profile)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store credentials: %w", lastErr)
	}
	return errors.New("no available credential stores")
}

// Retrieve gets a profile from the first store that has it
func (m *Manager) Retrieve(name string) (*Profile, error) {
	for _, store := range m.stores {
		if profile, err := store.Retrieve(name); err == nil && profile != nil {
			return profile, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrCredentialsNotFound, name)
}

// RetrieveDefault resolves the key to use when no profile is named: the
// environment first, then the profile marked with SetDefault, then the
// only stored profile.
func (m *Manager) RetrieveDefault() (*Profile, error) {
	for _, store := range m.stores {
		if env, ok := store.(*EnvironmentStore); ok {
			if profile, err := env.Retrieve(""); err == nil {
				return profile, nil
			}
		}
	}

	if name := m.defaultName(); name != "" {
		if profile, err := m.Retrieve(name); err == nil {
			return profile, nil
		}
	}

	profiles, err := m.List()
	if err == nil && len(profiles) == 1 {
		return profiles[0], nil
	}
	if len(profiles) > 1 {
		return nil, errors.New("several profiles stored; pick one with --profile or 'auth use'")
	}
	return nil, ErrCredentialsNotFound
}

// SetDefault marks name as the profile RetrieveDefault returns
func (m *Manager) SetDefault(name string) error {
	if _, err := m.Retrieve(name); err != nil {
		return err
	}
	if m.configDir == "" {
		return ErrStoreUnavailable
	}
	return os.WriteFile(filepath.Join(m.configDir, "default_profile"), []byte(name), 0600)
}

// DefaultName is the profile marked with SetDefault, if any
func (m *Manager) DefaultName() string { return m.defaultName() }

func (m *Manager) defaultName() string {
	if m.configDir == "" {
		return ""
	}
	content, err := os.ReadFile(filepath.Join(m.configDir, "default_profile"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(content))
}

// List returns all profiles from all stores, newest version of each name,
// sorted by name.
func (m *Manager) List() ([]*Profile, error) {
	byName := make(map[string]*Profile)

	for _, store := range m.stores {
		profiles, err := store.List()
		if err != nil {
			continue
		}
		for _, p := range profiles {
			if existing, ok := byName[p.Name]; !ok || p.LastModified.After(existing.LastModified) {
				byName[p.Name] = p
			}
		}
	}

	result := make([]*Profile, 0, len(byName))
	for _, p := range byName {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// Delete removes a profile from every store
func (m *Manager) Delete(name string) error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(name); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}

	if !deleted && lastErr != nil && !errors.Is(lastErr, ErrCredentialsNotFound) && !errors.Is(lastErr, ErrStoreUnavailable) {
		return fmt.Errorf("failed to delete credentials: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("%w: %s", ErrCredentialsNotFound, name)
	}

	if m.defaultName() == name {
		_ = os.Remove(filepath.Join(m.configDir, "default_profile"))
	}
	return nil
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
		configDir = filepath.Join(home, "Library", "Application Support", "flickrharvest")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "flickrharvest")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "flickrharvest")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "flickrharvest")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return configDir, nil
}

// SanitizeProfile returns a copy of profile with the key masked
func SanitizeProfile(profile *Profile) *Profile {
	if profile == nil {
		return nil
	}
	return &Profile{
		Name:         profile.Name,
		APIKey:       MaskKey(profile.APIKey),
		LastModified: profile.LastModified,
	}
}

// MaskKey masks all but the first 4 and last 4 characters of a key
func MaskKey(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)
