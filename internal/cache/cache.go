// Package cache provides the keyed, TTL-bounded memoization used by
// cached lookup steps. At most one computation per key is in flight at
// a time; concurrent callers for the same key share that computation's
// outcome. Failed computations are never cached, and expired entries
// are evicted lazily on next access.
package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

const defaultMaxEntries = 1024

type entry struct {
	value   any
	expires time.Time
}

// Cache is safe for concurrent use. Entries live for the TTL given at
// lookup time, bounded overall by an LRU capacity.
type Cache struct {
	group   singleflight.Group
	entries *lru.Cache[string, entry]
	now     func() time.Time
}

// New creates a cache holding at most maxEntries values. Non-positive
// capacities select a default.
func New(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	entries, err := lru.New[string, entry](maxEntries)
	if err != nil {
		// lru.New only fails for non-positive sizes, excluded above.
		panic(err)
	}
	return &Cache{entries: entries, now: time.Now}
}

// GetOrCompute returns the cached value for key, or runs compute and
// caches its result for ttl. Concurrent callers for the same key during
// an in-flight computation receive that computation's result, success
// or failure. The first caller's context is the one compute observes.
func (c *Cache) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func(ctx context.Context) (any, error)) (any, error) {
	if v, ok := c.get(key); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// A waiter that lost the race to an already-finished flight
		// lands here after the value was stored.
		if v, ok := c.get(key); ok {
			return v, nil
		}
		v, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.entries.Add(key, entry{value: v, expires: c.now().Add(ttl)})
		return v, nil
	})
	return v, err
}

// get returns a live entry, removing it if expired.
func (c *Cache) get(key string) (any, bool) {
	e, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	if c.now().After(e.expires) {
		c.entries.Remove(key)
		return nil, false
	}
	return e.value, true
}

// Len reports the number of stored entries, counting expired entries
// not yet evicted.
func (c *Cache) Len() int { return c.entries.Len() }
