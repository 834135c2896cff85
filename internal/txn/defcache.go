package txn

import (
	"sync"

	"github.com/google/uuid"
)

// definitionCache memoizes catalog definition lookups (namespace,
// database, table, field, index, event) against a per-entry cache-version
// UUID supplied by the catalog layer (C4): a cached entry is valid only as
// long as the version UUID it was stored under still matches the
// catalog's current version for that key.
type definitionCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	version uuid.UUID
	value   interface{}
}

func newDefinitionCache() *definitionCache {
	return &definitionCache{entries: make(map[string]cacheEntry)}
}

// Get returns the cached value for key if present and its stored version
// equals currentVersion.
func (c *definitionCache) Get(key string, currentVersion uuid.UUID) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || e.version != currentVersion {
		return nil, false
	}
	return e.value, true
}

// Put stores value under key tagged with version.
func (c *definitionCache) Put(key string, version uuid.UUID, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{version: version, value: value}
}

// Invalidate drops a single cached entry, used when a DEFINE/REMOVE
// statement changes that entity directly.
func (c *definitionCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear drops every cached entry, used on a namespace/database-wide
// schema change.
func (c *definitionCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}
