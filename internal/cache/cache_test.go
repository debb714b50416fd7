// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0, 0)

	c.Set(ctx, "key1", []byte("value1"), 5*time.Minute)

	val, ok := c.Get(ctx, "key1")
	require.True(t, ok)
	assert.Equal(t, []byte("value1"), val)

	_, ok = c.Get(ctx, "nonexistent")
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.CurrentSize)
}

func TestMemoryCache_Expiration(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0, 0)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Set(ctx, "shortlived", []byte("v"), time.Second)
	_, ok := c.Get(ctx, "shortlived")
	require.True(t, ok)

	now = now.Add(2 * time.Second)
	_, ok = c.Get(ctx, "shortlived")
	assert.False(t, ok)
}

func TestMemoryCache_SizeBound(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(2, 0)

	c.Set(ctx, "a", []byte("1"), time.Minute)
	c.Set(ctx, "b", []byte("2"), time.Hour)
	c.Set(ctx, "c", []byte("3"), time.Hour)

	assert.Equal(t, 2, c.Stats().CurrentSize)
	_, ok := c.Get(ctx, "a")
	assert.False(t, ok, "soonest-expiring entry is evicted")
	_, ok = c.Get(ctx, "c")
	assert.True(t, ok)
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestMemoryCache_OverwriteDoesNotEvict(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(1, 0)

	c.Set(ctx, "a", []byte("1"), time.Minute)
	c.Set(ctx, "a", []byte("2"), time.Minute)

	val, ok := c.Get(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, []byte("2"), val)
	assert.Zero(t, c.Stats().Evictions)
}

func TestMemoryCache_JanitorStops(t *testing.T) {
	c := NewMemoryCache(0, 10*time.Millisecond)
	c.Set(context.Background(), "k", []byte("v"), time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	c.Stop()
	c.Stop()
	assert.Equal(t, 0, c.Stats().CurrentSize)
}

func TestJSONHelpers(t *testing.T) {
	type item struct {
		Name string `json:"name"`
		Year string `json:"year"`
	}
	ctx := context.Background()
	c := NewMemoryCache(0, 0)

	require.NoError(t, SetJSON(ctx, c, "detail:x", item{Name: "Inception", Year: "2010"}, time.Minute))
	got, ok := GetJSON[item](ctx, c, "detail", "detail:x")
	require.True(t, ok)
	assert.Equal(t, item{Name: "Inception", Year: "2010"}, got)

	c.Set(ctx, "broken", []byte("{"), time.Minute)
	_, ok = GetJSON[item](ctx, c, "detail", "broken")
	assert.False(t, ok)
}
