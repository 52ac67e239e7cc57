package auth

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCredentialManager(t *testing.T) {
	manager, mockStore := NewMockManager(t.TempDir())

	profile := &Profile{Name: "work", APIKey: "  0123456789abcdef0123456789abcdef "}
	if err := manager.Store(profile); err != nil {
		t.Fatalf("Failed to store profile: %v", err)
	}

	retrieved, err := manager.Retrieve("work")
	if err != nil {
		t.Fatalf("Failed to retrieve profile: %v", err)
	}
	if retrieved.APIKey != "0123456789abcdef0123456789abcdef" {
		t.Errorf("APIKey not trimmed: got %q", retrieved.APIKey)
	}
	if retrieved.LastModified.IsZero() {
		t.Error("LastModified should be set on store")
	}

	profiles, err := manager.List()
	if err != nil {
		t.Fatalf("Failed to list profiles: %v", err)
	}
	if len(profiles) != 1 {
		t.Errorf("Expected 1 profile, got %d", len(profiles))
	}

	sanitized := SanitizeProfile(retrieved)
	if sanitized.APIKey != "0123...cdef" {
		t.Errorf("APIKey should be masked, got %s", sanitized.APIKey)
	}
	if sanitized.Name != "work" {
		t.Error("Name should not be masked")
	}

	if err := manager.Delete("work"); err != nil {
		t.Errorf("Failed to delete profile: %v", err)
	}
	if _, err := manager.Retrieve("work"); !errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected ErrCredentialsNotFound, got %v", err)
	}
	if mockStore.Count() != 0 {
		t.Errorf("Expected 0 profiles after deletion, got %d", mockStore.Count())
	}
}

func TestManagerRejectsIncompleteProfiles(t *testing.T) {
	manager, _ := NewMockManager(t.TempDir())

	if err := manager.Store(&Profile{Name: "", APIKey: "k"}); err == nil {
		t.Error("Expected error for missing name")
	}
	if err := manager.Store(&Profile{Name: "n", APIKey: "   "}); err == nil {
		t.Error("Expected error for missing key")
	}
	if err := manager.Store(nil); err == nil {
		t.Error("Expected error for nil profile")
	}
}

func TestRetrieveDefault(t *testing.T) {
	t.Setenv(EnvAPIKey, "")
	dir := t.TempDir()
	store := NewMockStore()
	manager := NewManagerWithStores(dir, store, NewEnvironmentStore())

	if _, err := manager.RetrieveDefault(); !errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected ErrCredentialsNotFound with no profiles, got %v", err)
	}

	if err := manager.Store(&Profile{Name: "a", APIKey: "key-a"}); err != nil {
		t.Fatal(err)
	}
	p, err := manager.RetrieveDefault()
	if err != nil || p.Name != "a" {
		t.Fatalf("Expected the single profile, got %v, %v", p, err)
	}

	if err := manager.Store(&Profile{Name: "b", APIKey: "key-b"}); err != nil {
		t.Fatal(err)
	}
	if _, err := manager.RetrieveDefault(); err == nil {
		t.Error("Expected an error when several profiles exist and none is default")
	}

	if err := manager.SetDefault("b"); err != nil {
		t.Fatalf("SetDefault failed: %v", err)
	}
	if manager.DefaultName() != "b" {
		t.Errorf("DefaultName = %q, want b", manager.DefaultName())
	}
	p, err = manager.RetrieveDefault()
	if err != nil || p.APIKey != "key-b" {
		t.Fatalf("Expected default profile b, got %v, %v", p, err)
	}

	t.Setenv(EnvAPIKey, "from-env")
	p, err = manager.RetrieveDefault()
	if err != nil || p.APIKey != "from-env" || p.Name != "env" {
		t.Fatalf("Expected environment key to win, got %v, %v", p, err)
	}

	if err := manager.Delete("b"); err != nil {
		t.Fatal(err)
	}
	if manager.DefaultName() != "" {
		t.Error("Deleting the default profile should clear the marker")
	}

	if err := manager.SetDefault("missing"); err == nil {
		t.Error("Expected error when marking an unknown profile as default")
	}
}

func TestEncryptedFileStore(t *testing.T) {
	t.Setenv("FLICKRHARVEST_PASSPHRASE", "test_passphrase_123")
	path := filepath.Join(t.TempDir(), "credentials.enc")

	store, err := NewEncryptedFileStore(path)
	if err != nil {
		t.Fatalf("Failed to create encrypted store: %v", err)
	}

	profile := &Profile{Name: "encrypted", APIKey: "feedfacecafebeef"}
	if err := store.Store(profile); err != nil {
		t.Fatalf("Failed to store in encrypted file: %v", err)
	}

	retrieved, err := store.Retrieve("encrypted")
	if err != nil {
		t.Fatalf("Failed to retrieve from encrypted file: %v", err)
	}
	if retrieved.APIKey != profile.APIKey {
		t.Errorf("APIKey mismatch after encryption/decryption")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(content, []byte("feedfacecafebeef")) {
		t.Error("File contains plaintext API key")
	}

	reopened, err := NewEncryptedFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reopened.Exists("encrypted") {
		t.Error("Profile should survive reopening the store")
	}

	if err := store.Delete("encrypted"); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Store file should be removed with its last profile")
	}
}

func TestEncryptedFileStoreWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.enc")

	t.Setenv("FLICKRHARVEST_PASSPHRASE", "first")
	store, err := NewEncryptedFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Store(&Profile{Name: "p", APIKey: "k"}); err != nil {
		t.Fatal(err)
	}

	t.Setenv("FLICKRHARVEST_PASSPHRASE", "second")
	other, err := NewEncryptedFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := other.Retrieve("p"); err == nil {
		t.Error("Expected decryption to fail with the wrong passphrase")
	}
}

func TestEnvironmentStore(t *testing.T) {
	t.Setenv(EnvAPIKey, " env_key ")
	store := NewEnvironmentStore()

	profile, err := store.Retrieve("")
	if err != nil {
		t.Fatalf("Failed to retrieve from environment: %v", err)
	}
	if profile.APIKey != "env_key" || profile.Name != "env" {
		t.Errorf("Unexpected profile: %+v", profile)
	}
	if _, err := store.Retrieve("other"); !errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected only the env profile, got %v", err)
	}
	if err := store.Store(&Profile{}); !errors.Is(err, ErrStoreUnavailable) {
		t.Error("Expected ErrStoreUnavailable for environment store")
	}

	t.Setenv(EnvAPIKey, "")
	profiles, err := store.List()
	if err != nil || len(profiles) != 0 {
		t.Errorf("Expected no profiles without the variable, got %d (%v)", len(profiles), err)
	}
}

func TestManagerFallsBackAcrossStores(t *testing.T) {
	failing := NewMockStore()
	failing.StoreError = fmt.Errorf("keyring locked")
	working := NewMockStore()
	manager := NewManagerWithStores("", failing, working)

	if err := manager.Store(&Profile{Name: "p", APIKey: "k"}); err != nil {
		t.Fatalf("Expected fallback store to accept, got %v", err)
	}
	if working.Count() != 1 || failing.Count() != 0 {
		t.Errorf("Profile landed in the wrong store")
	}

	failing.ListError = fmt.Errorf("injected error")
	profiles, err := manager.List()
	if err != nil || len(profiles) != 1 {
		t.Errorf("List should skip failing stores, got %d (%v)", len(profiles), err)
	}
}

func TestAPIKeyGuide(t *testing.T) {
	var buf bytes.Buffer
	ShowAPIKeyGuide(&buf)
	if !strings.Contains(buf.String(), "https://www.flickr.com/services/apps/create/") {
		t.Error("Guide should link to the app creation page")
	}
	if !strings.Contains(buf.String(), EnvAPIKey) {
		t.Error("Guide should mention the environment variable")
	}
}
