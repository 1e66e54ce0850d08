package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemory(t *testing.T) *MemoryCache {
	c, err := NewMemoryCache(context.Background(), time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestMemoryCacheGetSet(t *testing.T) {
	ctx := context.Background()
	c := newMemory(t)

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestMemoryCacheTTL(t *testing.T) {
	ctx := context.Background()
	c := newMemory(t)

	now := time.Now()
	c.now = func() time.Time { return now }
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Second))

	c.now = func() time.Time { return now.Add(2 * time.Second) }
	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemoryCacheInvalidatePattern(t *testing.T) {
	ctx := context.Background()
	c := newMemory(t)

	for _, k := range []string{"stats:campaign:1", "stats:campaign:1:v2", "stats:campaign:2", "stats:platform"} {
		require.NoError(t, c.Set(ctx, k, []byte("x"), time.Minute))
	}

	require.NoError(t, c.InvalidatePattern(ctx, "stats:campaign:1*"))

	_, err := c.Get(ctx, "stats:campaign:1")
	assert.ErrorIs(t, err, ErrMiss)
	_, err = c.Get(ctx, "stats:campaign:1:v2")
	assert.ErrorIs(t, err, ErrMiss)

	_, err = c.Get(ctx, "stats:campaign:2")
	assert.NoError(t, err)
	_, err = c.Get(ctx, "stats:platform")
	assert.NoError(t, err)

	assert.Error(t, c.InvalidatePattern(ctx, "["))
}
