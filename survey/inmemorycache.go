package survey

import (
	"sync"
	"time"
)

type cacheEntry struct {
	def      *Definition
	cachedAt time.Time
}

// InMemoryDefinitionCache is a map-backed DefinitionCache, safe for
// concurrent use
type InMemoryDefinitionCache struct {
	entries map[string]cacheEntry
	config  CacheConfig
	now     func() time.Time
	mu      sync.RWMutex
}

// NewInMemoryDefinitionCache creates an empty cache
func NewInMemoryDefinitionCache(config CacheConfig) *InMemoryDefinitionCache {
	return &InMemoryDefinitionCache{
		entries: make(map[string]cacheEntry),
		config:  config,
		now:     time.Now,
	}
}

func (c *InMemoryDefinitionCache) Get(surveyID string) *Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[surveyID]
	if !ok {
		return nil
	}
	if c.config.TTL > 0 && c.now().Sub(entry.cachedAt) > c.config.TTL {
		return nil
	}
	// Return copy to prevent external modifications
	return entry.def.Clone()
}

func (c *InMemoryDefinitionCache) Set(def *Definition) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[def.ID] = cacheEntry{def: def.Clone(), cachedAt: c.now()}
}

func (c *InMemoryDefinitionCache) Invalidate(surveyID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, surveyID)
}

func (c *InMemoryDefinitionCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]cacheEntry)
}

// Len returns the number of entries, expired or not
func (c *InMemoryDefinitionCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}
