package survey

import "time"

// DefinitionCache keeps recently used definitions so routing calls do not
// hit the store on every request
type DefinitionCache interface {
	// Get returns the cached definition, or nil on a miss or expiry
	Get(surveyID string) *Definition

	// Set stores a definition
	Set(def *Definition)

	// Invalidate drops one survey, forcing a reload on next Get
	Invalidate(surveyID string)

	// Purge drops every entry
	Purge()
}

// CacheConfig holds configuration for cache behavior
type CacheConfig struct {
	// TTL is the time-to-live for cached entries.
	// Zero means entries live until invalidated.
	TTL time.Duration
}

// DefaultCacheConfig never expires entries; mutations invalidate them
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{TTL: 0}
}
