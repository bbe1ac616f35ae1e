// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/quartz"

	"github.com/tomtom215/tideline/internal/logging"
)

// DefaultCleanupInterval is how often RunWithContext purges expired entries.
const DefaultCleanupInterval = 5 * time.Minute

type entry struct {
	value   interface{}
	putAt   time.Time
	expires time.Time
}

// expired reports whether the entry is past its deadline. An entry read
// exactly at its deadline is still fresh.
func (e entry) expired(now time.Time) bool {
	return now.After(e.expires)
}

// Stats is a point-in-time copy of the cache counters.
type Stats struct {
	Hits        int64
	Misses      int64
	Evictions   int64
	TotalKeys   int64
	LastCleanup time.Time
}

// Cache is a TTL map for live views and resolved image URLs.
//
// Expiry is fixed when a value is put; Get never extends it. Expired entries
// are dropped by the Get that finds them and in bulk by RunWithContext.
type Cache struct {
	ttl             time.Duration
	cleanupInterval time.Duration
	clock           quartz.Clock

	mu      sync.RWMutex
	entries map[string]entry

	hits, misses, evictions atomic.Int64
	lastCleanup             atomic.Int64 // unix nanos
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock sets the clock used for expiry.
func WithClock(clock quartz.Clock) Option {
	return func(c *Cache) { c.clock = clock }
}

// WithCleanupInterval sets the purge interval of RunWithContext.
func WithCleanupInterval(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.cleanupInterval = d
		}
	}
}

// New returns an empty cache whose entries live for ttl. It starts no
// goroutine; run RunWithContext under the supervisor to purge entries that
// are never read again.
//
//	views := cache.New(5 * time.Minute)
//	views.Set(cache.LiveViewKey(id), view)
func New(ttl time.Duration, opts ...Option) *Cache {
	c := &Cache{
		ttl:             ttl,
		cleanupInterval: DefaultCleanupInterval,
		clock:           quartz.NewReal(),
		entries:         make(map[string]entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.lastCleanup.Store(c.clock.Now().UnixNano())
	return c
}

// TTL returns the default time-to-live.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Get returns the value under key if it has not expired.
func (c *Cache) Get(key string) (interface{}, bool) {
	now := c.clock.Now()

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	switch {
	case !ok:
		c.misses.Add(1)
		return nil, false
	case e.expired(now):
		c.mu.Lock()
		// A Set between the two locks wins over the stale entry.
		if cur, still := c.entries[key]; still && cur.putAt.Equal(e.putAt) {
			delete(c.entries, key)
			c.evictions.Add(1)
		}
		c.mu.Unlock()
		c.misses.Add(1)
		return nil, false
	default:
		c.hits.Add(1)
		return e.value, true
	}
}

// Set puts value under key with the default TTL.
func (c *Cache) Set(key string, value interface{}) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL puts value under key with its own TTL.
func (c *Cache) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	now := c.clock.Now()
	c.mu.Lock()
	c.entries[key] = entry{value: value, putAt: now, expires: now.Add(ttl)}
	c.mu.Unlock()
}

// Delete invalidates key. Deleting a missing key is a no-op.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	if _, ok := c.entries[key]; ok {
		delete(c.entries, key)
		c.evictions.Add(1)
	}
	c.mu.Unlock()
}

// Clear invalidates every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	n := len(c.entries)
	c.entries = make(map[string]entry)
	c.mu.Unlock()
	c.evictions.Add(int64(n))
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// GetStats returns the current counters.
func (c *Cache) GetStats() Stats {
	return Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Evictions:   c.evictions.Load(),
		TotalKeys:   int64(c.Len()),
		LastCleanup: time.Unix(0, c.lastCleanup.Load()).In(c.clock.Now().Location()),
	}
}

// HitRate returns hits as a percentage of lookups, 0 before any lookup.
func (c *Cache) HitRate() float64 {
	hits, misses := c.hits.Load(), c.misses.Load()
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses) * 100
}

// RunWithContext purges expired entries every cleanup interval until ctx is
// cancelled.
func (c *Cache) RunWithContext(ctx context.Context) error {
	tkr := c.clock.TickerFunc(ctx, c.cleanupInterval, func() error {
		if n := c.Cleanup(); n > 0 {
			logging.Debug().Str("component", "cache").Int("evicted", n).Msg("Expired cache entries purged")
		}
		return nil
	}, "cache", "cleanup")

	err := tkr.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Cleanup removes every expired entry and returns how many it removed.
func (c *Cache) Cleanup() int {
	now := c.clock.Now()
	removed := 0

	c.mu.Lock()
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
			removed++
		}
	}
	c.mu.Unlock()

	c.evictions.Add(int64(removed))
	c.lastCleanup.Store(now.UnixNano())
	return removed
}
