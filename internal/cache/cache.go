// Package cache memoizes parsed series models with a TTL and a soft entry
// bound. Eviction is lazy through the expirable LRU; concurrent loads of the
// same key collapse into one.
package cache

import (
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// Defaults match the engine's expectations: models stay warm for five
// minutes, at most 32 series in memory.
const (
	DefaultTTL        = 5 * time.Minute
	DefaultMaxEntries = 32
)

// Key identifies one cached series model.
type Key struct {
	Manufacturer string
	Series       string
}

func (k Key) String() string { return k.Manufacturer + "/" + k.Series }

// Cache is a TTL-bounded LRU. The zero value is not usable; call New.
type Cache[V any] struct {
	lru   *expirable.LRU[Key, V]
	group singleflight.Group

	hits   atomic.Uint64
	misses atomic.Uint64
}

// New builds a cache. Non-positive maxEntries or ttl fall back to the
// defaults.
func New[V any](maxEntries int, ttl time.Duration) *Cache[V] {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache[V]{
		lru: expirable.NewLRU[Key, V](maxEntries, nil, ttl),
	}
}

// Get returns the cached value for the key, if present and unexpired.
func (c *Cache[V]) Get(key Key) (V, bool) {
	v, ok := c.lru.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

// GetOrLoad returns the cached value or runs the loader. Concurrent callers
// for the same key share one load; an eviction racing a load causes at worst
// a second load, never a partial value.
func (c *Cache[V]) GetOrLoad(key Key, load func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		if v, ok := c.lru.Get(key); ok {
			return v, nil
		}
		v, err := load()
		if err != nil {
			return v, err
		}
		c.lru.Add(key, v)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

// Add inserts a value directly.
func (c *Cache[V]) Add(key Key, v V) {
	c.lru.Add(key, v)
}

// Remove drops one entry.
func (c *Cache[V]) Remove(key Key) {
	c.lru.Remove(key)
}

// Clear drops every entry.
func (c *Cache[V]) Clear() {
	c.lru.Purge()
}

// Len returns the current entry count, expired entries included until their
// lazy eviction.
func (c *Cache[V]) Len() int {
	return c.lru.Len()
}

// Stats returns hit and miss counters.
func (c *Cache[V]) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}
