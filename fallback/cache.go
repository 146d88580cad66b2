package fallback

import "sync"

// AvailabilityCache remembers, for the process lifetime, whether a named
// command or dependency was last observed available. Concurrent misses
// resolving to the same write are fine; last writer wins. There is no
// invalidation beyond process exit.
type AvailabilityCache struct {
	mu      sync.RWMutex
	entries map[string]bool
}

// NewAvailabilityCache creates an empty cache.
func NewAvailabilityCache() *AvailabilityCache {
	return &AvailabilityCache{entries: make(map[string]bool)}
}

// Lookup returns the cached availability and whether an entry exists.
func (c *AvailabilityCache) Lookup(name string) (available, known bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	available, known = c.entries[name]
	return available, known
}

// Store records availability for a name.
func (c *AvailabilityCache) Store(name string, available bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[name] = available
}
