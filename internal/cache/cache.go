// Zipscore - Real-Estate Investment and Commercial District Analytics
// Copyright 2026 Zipscore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zipscore/zipscore

package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/singleflight"

	"github.com/zipscore/zipscore/internal/metrics"
)

// Entry represents a cached item with expiration.
type Entry struct {
	Data      interface{}
	ExpiresAt time.Time
}

// Cache provides a thread-safe in-memory cache with TTL support and
// per-key single-flight recomputation.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
	flight  singleflight.Group
	stats   Stats

	cleanupInterval time.Duration
}

// Stats tracks cache performance counters.
type Stats struct {
	mu            sync.RWMutex
	Hits          int64
	Misses        int64
	SharedFlights int64
	Evictions     int64
	TotalKeys     int64
	LastCleanup   time.Time
}

// New creates a cache. The cleanup interval controls how often expired
// entries are swept by Serve; it does not affect Get-side expiry checks,
// which are always exact.
//
// The cache starts no goroutines of its own: run the returned cache's
// Serve method under the supervisor to enable periodic sweeping.
func New(cleanupInterval time.Duration) *Cache {
	if cleanupInterval <= 0 {
		cleanupInterval = 5 * time.Minute
	}
	return &Cache{
		entries:         make(map[string]Entry),
		cleanupInterval: cleanupInterval,
		stats:           Stats{LastCleanup: time.Now()},
	}
}

// Get retrieves a value by key. Expired entries are removed and counted as
// misses. The second return is false when the key is absent or expired.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	entry, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists {
		c.recordMiss(key)
		return nil, false
	}

	if time.Now().After(entry.ExpiresAt) {
		c.mu.Lock()
		// Re-check under the write lock: a concurrent compute may have
		// replaced the entry with a fresh one.
		if cur, ok := c.entries[key]; ok && time.Now().After(cur.ExpiresAt) {
			delete(c.entries, key)
			c.recordEviction(1)
		}
		c.mu.Unlock()
		c.recordMiss(key)
		return nil, false
	}

	c.recordHit(key)
	return entry.Data, true
}

// Set stores a value with the given TTL, overwriting any existing entry.
func (c *Cache) Set(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = Entry{Data: value, ExpiresAt: time.Now().Add(ttl)}
	total := int64(len(c.entries))
	c.mu.Unlock()

	c.stats.mu.Lock()
	c.stats.TotalKeys = total
	c.stats.mu.Unlock()
	metrics.CacheEntries.Set(float64(total))
}

// GetOrCompute returns the cached value for key, or computes it.
//
// On a hit with an unexpired entry the stored value is returned and the
// second result is true. On a miss or expiry, exactly one caller per key
// executes fn; concurrent callers for the same key await that result
// rather than issuing duplicate upstream work.
//
// fn runs on a context derived from the initiating caller's but detached
// from its cancellation, so a waiter that aborts does not cancel the
// computation for the others. The aborting waiter gets ctx.Err().
//
// Errors from fn are returned to every waiter and are never cached.
func (c *Cache) GetOrCompute(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) (interface{}, error)) (interface{}, bool, error) {
	if value, ok := c.Get(key); ok {
		return value, true, nil
	}

	ch := c.flight.DoChan(key, func() (interface{}, error) {
		// Another flight may have stored a fresh value between our miss
		// and this execution slot.
		c.mu.RLock()
		entry, exists := c.entries[key]
		c.mu.RUnlock()
		if exists && time.Now().Before(entry.ExpiresAt) {
			return entry.Data, nil
		}

		value, err := fn(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.Set(key, value, ttl)
		return value, nil
	})

	select {
	case <-ctx.Done():
		// Stop waiting; the in-flight computation continues for others.
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		if res.Shared {
			c.recordSharedFlight(key)
		}
		return res.Val, false, nil
	}
}

// Invalidate removes a specific cache entry. Safe to call for keys that do
// not exist.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	_, existed := c.entries[key]
	delete(c.entries, key)
	c.mu.Unlock()

	if existed {
		c.recordEviction(1)
	}
}

// InvalidatePrefix removes every entry whose key starts with prefix.
// Returns the number of entries removed. Used to bust a whole namespace
// after an upstream data refresh.
func (c *Cache) InvalidatePrefix(prefix string) int {
	c.mu.Lock()
	removed := 0
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
			removed++
		}
	}
	c.mu.Unlock()

	if removed > 0 {
		c.recordEviction(int64(removed))
	}
	return removed
}

// Clear removes all entries in a single operation.
func (c *Cache) Clear() {
	c.mu.Lock()
	evictions := int64(len(c.entries))
	c.entries = make(map[string]Entry)
	c.mu.Unlock()

	c.recordEviction(evictions)
	c.stats.mu.Lock()
	c.stats.TotalKeys = 0
	c.stats.mu.Unlock()
	metrics.CacheEntries.Set(0)
}

// Len returns the current number of entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// GetStats returns a snapshot of cache performance counters.
func (c *Cache) GetStats() Stats {
	c.stats.mu.RLock()
	defer c.stats.mu.RUnlock()

	return Stats{
		Hits:          c.stats.Hits,
		Misses:        c.stats.Misses,
		SharedFlights: c.stats.SharedFlights,
		Evictions:     c.stats.Evictions,
		TotalKeys:     c.stats.TotalKeys,
		LastCleanup:   c.stats.LastCleanup,
	}
}

// HitRate returns the cache hit rate as a percentage.
func (c *Cache) HitRate() float64 {
	stats := c.GetStats()
	total := stats.Hits + stats.Misses
	if total == 0 {
		return 0.0
	}
	return float64(stats.Hits) / float64(total) * 100.0
}

// Serve implements suture.Service: it sweeps expired entries on the
// configured interval until the context is canceled.
func (c *Cache) Serve(ctx context.Context) error {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.cleanup()
		}
	}
}

// cleanup removes all expired entries.
func (c *Cache) cleanup() {
	now := time.Now()
	c.mu.Lock()
	evictions := int64(0)
	for key, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, key)
			evictions++
		}
	}
	total := int64(len(c.entries))
	c.mu.Unlock()

	c.stats.mu.Lock()
	c.stats.Evictions += evictions
	c.stats.TotalKeys = total
	c.stats.LastCleanup = now
	c.stats.mu.Unlock()
	metrics.CacheEntries.Set(float64(total))
}

func (c *Cache) recordHit(key string) {
	c.stats.mu.Lock()
	c.stats.Hits++
	c.stats.mu.Unlock()
	metrics.CacheHits.WithLabelValues(Namespace(key)).Inc()
}

func (c *Cache) recordMiss(key string) {
	c.stats.mu.Lock()
	c.stats.Misses++
	c.stats.mu.Unlock()
	metrics.CacheMisses.WithLabelValues(Namespace(key)).Inc()
}

func (c *Cache) recordSharedFlight(key string) {
	c.stats.mu.Lock()
	c.stats.SharedFlights++
	c.stats.mu.Unlock()
	metrics.CacheSharedFlights.WithLabelValues(Namespace(key)).Inc()
}

func (c *Cache) recordEviction(n int64) {
	c.stats.mu.Lock()
	c.stats.Evictions += n
	c.stats.mu.Unlock()
	metrics.CacheEvictions.Add(float64(n))
}

// Namespace extracts the key namespace: everything before the first ':',
// or the whole key when it has no separator.
func Namespace(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}

// Key builds a namespaced cache key from an operation name and parameters.
// Parameters are serialized to JSON and hashed for a compact stable key.
func Key(operation string, params interface{}) string {
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Sprintf("%s:%v", operation, params)
	}
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%s:%x", operation, hash[:16])
}
