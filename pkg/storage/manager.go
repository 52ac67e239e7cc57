package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const assetExt = ".jpg"

// Manager owns the asset directory of one harvest
type Manager struct {
	outputDir string
	stored    map[string]bool
	mu        sync.RWMutex
}

// NewManager creates outputDir if needed and indexes assets already in it
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	m := &Manager{
		outputDir: outputDir,
		stored:    make(map[string]bool),
	}
	if err := m.scanExistingFiles(); err != nil {
		return nil, fmt.Errorf("failed to scan existing files: %w", err)
	}
	return m, nil
}

func (m *Manager) scanExistingFiles() error {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == assetExt {
			m.stored[strings.TrimSuffix(entry.Name(), assetExt)] = true
		}
	}
	return nil
}

// PathFor is the final location of the asset named name
func (m *Manager) PathFor(name string) string {
	return filepath.Join(m.outputDir, name+assetExt)
}

// Exists reports whether an asset named name is already stored
func (m *Manager) Exists(name string) bool {
	m.mu.RLock()
	known := m.stored[name]
	m.mu.RUnlock()
	if known {
		return true
	}

	if _, err := os.Stat(m.PathFor(name)); err == nil {
		m.mu.Lock()
		m.stored[name] = true
		m.mu.Unlock()
		return true
	}
	return false
}

// Create opens a pending write for name. Nothing appears at PathFor(name)
// until Commit succeeds.
func (m *Manager) Create(name string) (*PendingFile, error) {
	final := m.PathFor(name)
	tmp, err := os.CreateTemp(m.outputDir, name+"-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file: %w", err)
	}
	return &PendingFile{File: tmp, final: final, name: name, manager: m}, nil
}

// OutputDir returns the asset directory
func (m *Manager) OutputDir() string {
	return m.outputDir
}

// Count returns the number of stored assets
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.stored)
}

// PendingFile is a temp file that becomes an asset on Commit
type PendingFile struct {
	*os.File
	final   string
	name    string
	manager *Manager
	done    bool
}

// Commit closes the temp file and renames it into place
func (p *PendingFile) Commit() (string, error) {
	if p.done {
		return "", fmt.Errorf("pending file %s already finished", p.name)
	}
	p.done = true

	tmp := p.File.Name()
	if err := p.File.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmp, p.final); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to rename temporary file: %w", err)
	}

	p.manager.mu.Lock()
	p.manager.stored[p.name] = true
	p.manager.mu.Unlock()
	return p.final, nil
}

// Abort discards the temp file. It is safe to call after Commit.
func (p *PendingFile) Abort() {
	if p.done {
		return
	}
	p.done = true
	tmp := p.File.Name()
	p.File.Close()
	os.Remove(tmp)
}
