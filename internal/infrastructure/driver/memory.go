package driver

import (
	"sync"
	"time"
)

type memoryEntry struct {
	value    string
	deadline time.Time
}

func (e *memoryEntry) expired() bool {
	return !e.deadline.IsZero() && time.Now().After(e.deadline)
}

// MemoryKV in-process KeyValueDB, used in tests and as a fallback when no
// redis instance is configured. Entries honor their TTL but are only evicted
// on access.
type MemoryKV struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
}

var _ KeyValueDB = &MemoryKV{}

// NewMemoryKV create an empty in-process store
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{
		entries: make(map[string]*memoryEntry),
	}
}

// SetEX implement KeyValueDB
func (m *MemoryKV) SetEX(key string, value string, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := &memoryEntry{value: value}
	if expiration > 0 {
		entry.deadline = time.Now().Add(expiration)
	}
	m.entries[key] = entry
	return nil
}

// Get implement KeyValueDB
func (m *MemoryKV) Get(key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	if entry.expired() {
		delete(m.entries, key)
		return "", ErrKeyNotFound
	}
	return entry.value, nil
}

// Exists implement KeyValueDB
func (m *MemoryKV) Exists(key string) (bool, error) {
	if _, err := m.Get(key); err != nil {
		if err == ErrKeyNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Del implement KeyValueDB
func (m *MemoryKV) Del(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}

// Ping implement KeyValueDB
func (m *MemoryKV) Ping() error {
	return nil
}
