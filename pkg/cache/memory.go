package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	body      []byte
	expiresAt time.Time
}

// MemoryCache keeps responses in process memory until their shelf life ends
type MemoryCache struct {
	counters
	mu        sync.RWMutex
	entries   map[string]memoryEntry
	shelfLife time.Duration
	now       func() time.Time
}

// NewMemoryCache creates an empty cache. A non-positive shelfLife keeps
// entries for the lifetime of the process.
func NewMemoryCache(shelfLife time.Duration) *MemoryCache {
	return &MemoryCache{
		counters:  counters{backend: "memory"},
		entries:   make(map[string]memoryEntry),
		shelfLife: shelfLife,
		now:       time.Now,
	}
}

func (m *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if ok && !e.expiresAt.IsZero() && m.now().After(e.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		ok = false
	}
	m.record(ok)
	if !ok {
		return nil, false
	}
	return e.body, true
}

func (m *MemoryCache) Put(ctx context.Context, key string, body []byte) {
	e := memoryEntry{body: append([]byte(nil), body...)}
	if m.shelfLife > 0 {
		e.expiresAt = m.now().Add(m.shelfLife)
	}
	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
}

// Len reports the number of stored entries, expired or not
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *MemoryCache) Close(ctx context.Context) error { return nil }
