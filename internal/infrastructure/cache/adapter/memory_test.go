package adapter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/evmac/messaging-service/internal/infrastructure/cache/port"
)

func TestMemoryCacheSetGet(t *testing.T) {
	c := NewMemoryCache(4)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", "v1", 0))
	v, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	require.Equal(t, "v1", v)

	_, err = c.Get(ctx, "absent")
	require.ErrorIs(t, err, port.ErrMiss)
}

func TestMemoryCacheTTLExpiry(t *testing.T) {
	c := NewMemoryCache(4)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", "v1", 10*time.Millisecond))
	time.Sleep(20 * time.Millisecond)

	_, err := c.Get(ctx, "k1")
	require.ErrorIs(t, err, port.ErrMiss)
}

func TestMemoryCacheLRUEviction(t *testing.T) {
	c := NewMemoryCache(2)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", "1", 0))
	require.NoError(t, c.Set(ctx, "b", "2", 0))

	// Touch "a" so "b" becomes least recently used.
	_, err := c.Get(ctx, "a")
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, "c", "3", 0))

	_, err = c.Get(ctx, "b")
	require.ErrorIs(t, err, port.ErrMiss)
	v, err := c.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, "1", v)
}

func TestMemoryCacheOverwrite(t *testing.T) {
	c := NewMemoryCache(2)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "old", 0))
	require.NoError(t, c.Set(ctx, "k", "new", 0))

	v, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "new", v)
}

func TestMemoryCacheDel(t *testing.T) {
	c := NewMemoryCache(4)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", "1", 0))
	require.NoError(t, c.Set(ctx, "b", "2", 0))

	removed, err := c.Del(ctx, "a", "b", "missing")
	require.NoError(t, err)
	require.Equal(t, int64(2), removed)

	_, err = c.Get(ctx, "a")
	require.ErrorIs(t, err, port.ErrMiss)
}
