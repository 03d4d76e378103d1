// Package cache provides time-bounded memoization of validation results.
// Each validation concern (identity, product detail, price, stock) owns its
// own cache instance with its own freshness window.
package cache

import (
	"context"
	"log"
	"sync"
	"time"
)

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// TTLCache memoizes fetched values with an insertion timestamp. Reads check
// the entry age against the caller's maxAge, and a background sweeper prunes
// stale entries so the map does not grow without bound. Fetch failures are
// never cached.
type TTLCache[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]entry[V]
	now     func() time.Time
}

func New[K comparable, V any]() *TTLCache[K, V] {
	return &TTLCache[K, V]{
		entries: make(map[K]entry[V]),
		now:     time.Now,
	}
}

// Get returns the cached value if present and younger than maxAge.
func (c *TTLCache[K, V]) Get(key K, maxAge time.Duration) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.storedAt) >= maxAge {
		var zero V
		return zero, false
	}
	return e.value, true
}

func (c *TTLCache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{value: value, storedAt: c.now()}
}

// GetOrFetch returns a fresh cached value or invokes fetch, stores the
// result and returns it. Concurrent callers missing on the same key may both
// invoke fetch; validation calls are idempotent reads so that is tolerated.
func (c *TTLCache[K, V]) GetOrFetch(ctx context.Context, key K, maxAge time.Duration, fetch func(context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(key, maxAge); ok {
		return v, nil
	}

	v, err := fetch(ctx)
	if err != nil {
		var zero V
		return zero, err
	}

	c.Put(key, v)
	return v, nil
}

func (c *TTLCache[K, V]) Invalidate(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *TTLCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[K]entry[V])
}

// Sweep removes entries older than maxAge and returns how many were pruned.
func (c *TTLCache[K, V]) Sweep(maxAge time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	pruned := 0
	cutoff := c.now().Add(-maxAge)
	for k, e := range c.entries {
		if e.storedAt.Before(cutoff) {
			delete(c.entries, k)
			pruned++
		}
	}
	return pruned
}

func (c *TTLCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// StartSweeper runs a background sweep at the concern's freshness window
// until ctx is cancelled.
func (c *TTLCache[K, V]) StartSweeper(ctx context.Context, name string, window time.Duration) {
	go func() {
		ticker := time.NewTicker(window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := c.Sweep(window); n > 0 {
					log.Printf("swept %d stale entries from %s cache", n, name)
				}
			}
		}
	}()
}
