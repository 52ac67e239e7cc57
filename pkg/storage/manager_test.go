package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestManager(t *testing.T) {
	tempDir := t.TempDir()

	manager, err := NewManager(tempDir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	if manager.Count() != 0 {
		t.Error("Expected initial count to be 0")
	}
	if manager.Exists("101") {
		t.Error("Expected Exists to return false for missing asset")
	}

	f, err := manager.Create("101")
	if err != nil {
		t.Fatalf("Failed to create pending file: %v", err)
	}
	testData := []byte("jpeg bytes")
	if _, err := f.Write(testData); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if _, err := os.Stat(manager.PathFor("101")); !os.IsNotExist(err) {
		t.Error("Asset must not appear before commit")
	}

	path, err := f.Commit()
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if path != filepath.Join(tempDir, "101.jpg") {
		t.Errorf("Unexpected path %s", path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read saved file: %v", err)
	}
	if !bytes.Equal(content, testData) {
		t.Error("File content does not match expected data")
	}
	if !manager.Exists("101") || manager.Count() != 1 {
		t.Error("Committed asset should be tracked")
	}

	// A second manager indexes what is already on disk
	if err := os.WriteFile(filepath.Join(tempDir, "202.jpg"), []byte("manual"), 0644); err != nil {
		t.Fatal(err)
	}
	manager2, err := NewManager(tempDir)
	if err != nil {
		t.Fatalf("Failed to create second manager: %v", err)
	}
	if manager2.Count() != 2 {
		t.Errorf("Expected 2 assets after scanning, got %d", manager2.Count())
	}
}

func TestAbortLeavesNothingBehind(t *testing.T) {
	tempDir := t.TempDir()
	manager, err := NewManager(tempDir)
	if err != nil {
		t.Fatal(err)
	}

	f, err := manager.Create("303")
	if err != nil {
		t.Fatal(err)
	}
	f.Write([]byte("partial"))
	f.Abort()
	f.Abort()

	entries, _ := os.ReadDir(tempDir)
	if len(entries) != 0 {
		t.Errorf("Expected empty directory after abort, found %d entries", len(entries))
	}
	if _, err := f.Commit(); err == nil {
		t.Error("Commit after Abort should fail")
	}
}
