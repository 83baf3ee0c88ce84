package cache

import (
	"encoding/json"
	"sync"
	"time"
)

// Mem is an in-process cache. Safe for concurrent use.
type Mem struct {
	mu      sync.RWMutex
	entries map[string]memEntry
	now     func() time.Time
}

type memEntry struct {
	value    json.RawMessage
	storedAt time.Time
}

func NewMem() *Mem {
	return &Mem{
		entries: make(map[string]memEntry),
		now:     time.Now,
	}
}

func (m *Mem) Get(key string, ttl time.Duration) (json.RawMessage, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if ttl > 0 && m.now().Sub(e.storedAt) > ttl {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

func (m *Mem) Set(key string, value json.RawMessage) bool {
	m.mu.Lock()
	m.entries[key] = memEntry{value: value, storedAt: m.now()}
	m.mu.Unlock()
	return true
}

// Len reports the number of live entries.
func (m *Mem) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
