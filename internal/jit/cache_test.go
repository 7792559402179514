package jit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompilationCacheEvictsLeastRecentlyUsed(t *testing.T) {
	m := NewMetrics(10)
	c := NewCompilationCache(2, m)

	c.Put(Artifact{Key: CacheKey{ID: "a", Tier: Bytecode}})
	c.Put(Artifact{Key: CacheKey{ID: "b", Tier: Bytecode}})

	// touch "a" so "b" becomes the least-recently-used entry.
	_, ok := c.Get(CacheKey{ID: "a", Tier: Bytecode})
	assert.True(t, ok)

	c.Put(Artifact{Key: CacheKey{ID: "c", Tier: Bytecode}})
	assert.Equal(t, 2, c.Len())

	_, stillThere := c.Get(CacheKey{ID: "b", Tier: Bytecode})
	assert.False(t, stillThere, "b should have been evicted as least-recently-used")

	_, aThere := c.Get(CacheKey{ID: "a", Tier: Bytecode})
	assert.True(t, aThere)
}

func TestCompilationCacheHitMissCounters(t *testing.T) {
	m := NewMetrics(10)
	c := NewCompilationCache(8, m)

	_, ok := c.Get(CacheKey{ID: "x", Tier: Bytecode})
	assert.False(t, ok)

	c.Put(Artifact{Key: CacheKey{ID: "x", Tier: Bytecode}})
	_, ok = c.Get(CacheKey{ID: "x", Tier: Bytecode})
	assert.True(t, ok)

	assert.Equal(t, uint64(1), m.counters.cacheHits.Load())
	assert.Equal(t, uint64(1), m.counters.cacheMisses.Load())
}

func TestCompilationCacheInvalidateRemovesAllTiersForID(t *testing.T) {
	c := NewCompilationCache(8, nil)
	c.Put(Artifact{Key: CacheKey{ID: "a", Tier: Bytecode}})
	c.Put(Artifact{Key: CacheKey{ID: "a", Tier: JitBasic}})
	c.Put(Artifact{Key: CacheKey{ID: "b", Tier: Bytecode}})

	c.Invalidate("a")
	assert.Equal(t, 1, c.Len())
	_, ok := c.Get(CacheKey{ID: "b", Tier: Bytecode})
	assert.True(t, ok)
}
