// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package cache provides the detail and poster caches: a bounded in-memory
// store with TTL and an optional Redis-backed store sharing one interface.
package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ManuGH/vodagg/internal/metrics"
)

// Cache stores opaque byte values with expiration.
type Cache interface {
	// Get retrieves a value. The bool is false when absent or expired.
	Get(ctx context.Context, key string) ([]byte, bool)
	// Set stores a value with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	// Delete removes a value.
	Delete(ctx context.Context, key string)
	// Stats returns cache statistics.
	Stats() CacheStats
}

// CacheStats holds cache performance counters.
type CacheStats struct {
	Hits        int64
	Misses      int64
	Sets        int64
	Evictions   int64
	CurrentSize int
}

type entry struct {
	value      []byte
	expiration time.Time
}

func (e *entry) expiredAt(now time.Time) bool {
	return now.After(e.expiration)
}

// MemoryCache is a size-bounded in-memory Cache. When full, the entry
// closest to expiry is evicted to make room.
type MemoryCache struct {
	mu       sync.Mutex
	entries  map[string]*entry
	maxSize  int
	stats    CacheStats
	now      func() time.Time
	stopOnce sync.Once
	stop     chan struct{}
}

// NewMemoryCache creates an in-memory cache holding at most maxSize entries
// (unbounded when maxSize <= 0). A positive cleanupInterval starts a janitor
// goroutine that must be released with Stop.
func NewMemoryCache(maxSize int, cleanupInterval time.Duration) *MemoryCache {
	c := &MemoryCache{
		entries: make(map[string]*entry),
		maxSize: maxSize,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go c.janitor(cleanupInterval)
	}
	return c
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || e.expiredAt(c.now()) {
		c.stats.Misses++
		return nil, false
	}
	c.stats.Hits++
	return e.value, true
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.entries[key]; !exists && c.maxSize > 0 && len(c.entries) >= c.maxSize {
		c.evictLocked(now)
	}
	c.entries[key] = &entry{value: value, expiration: now.Add(ttl)}
	c.stats.Sets++
}

func (c *MemoryCache) Delete(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *MemoryCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats := c.stats
	stats.CurrentSize = len(c.entries)
	return stats
}

// evictLocked drops expired entries, or the soonest-expiring one if none are.
func (c *MemoryCache) evictLocked(now time.Time) {
	if n := c.deleteExpiredLocked(now); n > 0 {
		return
	}
	var victim string
	var soonest time.Time
	for k, e := range c.entries {
		if victim == "" || e.expiration.Before(soonest) {
			victim, soonest = k, e.expiration
		}
	}
	if victim != "" {
		delete(c.entries, victim)
		c.stats.Evictions++
	}
}

func (c *MemoryCache) deleteExpiredLocked(now time.Time) int {
	count := 0
	for k, e := range c.entries {
		if e.expiredAt(now) {
			delete(c.entries, k)
			count++
		}
	}
	c.stats.Evictions += int64(count)
	return count
}

func (c *MemoryCache) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			c.deleteExpiredLocked(c.now())
			c.mu.Unlock()
		case <-c.stop:
			return
		}
	}
}

// Stop releases the janitor goroutine. Safe to call more than once.
func (c *MemoryCache) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// GetJSON decodes a cached JSON value into T, recording a hit or miss under name.
func GetJSON[T any](ctx context.Context, c Cache, name, key string) (T, bool) {
	var zero T
	raw, ok := c.Get(ctx, key)
	if !ok {
		metrics.IncCacheLookup(name, false)
		return zero, false
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		metrics.IncCacheLookup(name, false)
		return zero, false
	}
	metrics.IncCacheLookup(name, true)
	return v, true
}

// SetJSON encodes v as JSON and stores it.
func SetJSON[T any](ctx context.Context, c Cache, key string, v T, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.Set(ctx, key, raw, ttl)
	return nil
}
