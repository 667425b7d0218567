package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	nowFunc = func() time.Time { return now }
	defer func() { nowFunc = time.Now }()

	c := NewMemory(2, time.Hour)

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	val := []byte("healthy")
	require.NoError(t, c.Set(ctx, "health", val, time.Minute))
	val[0] = 'H' // stored copy is not aliased

	got, ok, err := c.Get(ctx, "health")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "healthy", string(got))

	// per-entry ttl
	now = now.Add(time.Minute)
	_, ok, _ = c.Get(ctx, "health")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())

	// size bound evicts the least recently used
	require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), 0))
	_, _, _ = c.Get(ctx, "a")
	require.NoError(t, c.Set(ctx, "c", []byte("3"), 0))
	_, ok, _ = c.Get(ctx, "b")
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, "a")
	assert.True(t, ok)

	require.NoError(t, c.Delete(ctx, "a", "c", "nope"))
	assert.Equal(t, 0, c.Len())
}

func TestRedis_NilClient(t *testing.T) {
	ctx := context.Background()
	c := NewRedis(nil, "masomo:", time.Minute)

	assert.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	_, ok, err := c.Get(ctx, "k")
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, c.Delete(ctx, "k"))
}
