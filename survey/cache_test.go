package survey

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInMemoryDefinitionCache(t *testing.T) {
	c := NewInMemoryDefinitionCache(DefaultCacheConfig())
	assert.Nil(t, c.Get("s1"))

	def := testDefinition()
	c.Set(def)
	got := c.Get("s1")
	if assert.NotNil(t, got) {
		assert.Equal(t, "Survey one", got.Name)
	}

	got.Name = "mutated"
	def.Name = "mutated too"
	assert.Equal(t, "Survey one", c.Get("s1").Name)

	c.Invalidate("s1")
	assert.Nil(t, c.Get("s1"))

	c.Set(def)
	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestInMemoryDefinitionCache_TTL(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewInMemoryDefinitionCache(CacheConfig{TTL: time.Minute})
	c.now = func() time.Time { return now }

	c.Set(testDefinition())
	assert.NotNil(t, c.Get("s1"))

	now = now.Add(59 * time.Second)
	assert.NotNil(t, c.Get("s1"))

	now = now.Add(2 * time.Second)
	assert.Nil(t, c.Get("s1"))
}

func TestEngine_UsesCache(t *testing.T) {
	store := NewInMemoryStore()
	cache := NewInMemoryDefinitionCache(DefaultCacheConfig())
	en := NewEngineWithCache(store, cache)

	_, err := en.SaveSurvey(testDefinition())
	assert.NoError(t, err)
	assert.Equal(t, 0, cache.Len())

	_, err = en.Definition("s1")
	assert.NoError(t, err)
	assert.Equal(t, 1, cache.Len())

	assert.NoError(t, en.DeleteRule("s1", "r1"))
	assert.Equal(t, 0, cache.Len())
}
