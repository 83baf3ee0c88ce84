// Package cache provides result caching behind a minimal contract: callers
// ask for a key with a freshness window and store opaque JSON payloads. The
// rest of the system assumes only this contract, not a storage engine.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Cache is the storage contract. Get returns the payload only when an entry
// exists and is younger than ttl (ttl <= 0 means never expires). Set reports
// whether the write took effect.
type Cache interface {
	Get(key string, ttl time.Duration) (json.RawMessage, bool)
	Set(key string, value json.RawMessage) bool
}

// Key derives a stable cache key from the given parts.
func Key(parts ...any) string {
	h := sha256.New()
	for _, p := range parts {
		fmt.Fprintf(h, "%v\x00", p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// GetJSON decodes a cached entry into T.
func GetJSON[T any](c Cache, key string, ttl time.Duration) (*T, bool) {
	raw, ok := c.Get(key, ttl)
	if !ok {
		return nil, false
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, false
	}
	return &v, true
}

// SetJSON encodes v and stores it under key.
func SetJSON[T any](c Cache, key string, v T) bool {
	raw, err := json.Marshal(v)
	if err != nil {
		return false
	}
	return c.Set(key, raw)
}

// Nop is a cache that stores nothing; used when caching is disabled.
type Nop struct{}

func (Nop) Get(string, time.Duration) (json.RawMessage, bool) { return nil, false }
func (Nop) Set(string, json.RawMessage) bool                  { return true }
