package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRUCache(t *testing.T) {
	c := NewLRUCache(2, time.Minute)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), time.Minute))
	require.NoError(t, c.Set(ctx, "c", []byte("3"), time.Minute))

	_, ok, _ = c.Get(ctx, "a")
	assert.False(t, ok, "oldest entry should be evicted")
	val, ok, _ := c.Get(ctx, "c")
	assert.True(t, ok)
	assert.Equal(t, []byte("3"), val)
	assert.Equal(t, 2, c.Len())
}

func TestLRUCache_DeletePrefix(t *testing.T) {
	c := NewLRUCache(10, time.Minute)
	ctx := context.Background()

	for _, key := range []string{"feed:a:limit=20", "feed:a:limit=5", "feed:ab:limit=20"} {
		require.NoError(t, c.Set(ctx, key, []byte("page"), time.Minute))
	}
	require.NoError(t, c.DeletePrefix(ctx, "feed:a:"))

	_, ok, _ := c.Get(ctx, "feed:a:limit=20")
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, "feed:ab:limit=20")
	assert.True(t, ok)
	assert.Equal(t, 1, c.Len())
}

func TestLRUCache_Expires(t *testing.T) {
	c := NewLRUCache(10, 20*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	assert.Eventually(t, func() bool {
		_, ok, _ := c.Get(ctx, "k")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	c := NewRedisCache(client, "test:"+uuid.NewString()+":")
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	val, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), val)

	require.NoError(t, c.Set(ctx, "feed:a:x", []byte("1"), time.Minute))
	require.NoError(t, c.Set(ctx, "feed:b:x", []byte("2"), time.Minute))
	require.NoError(t, c.DeletePrefix(ctx, "feed:a:"))
	_, ok, err = c.Get(ctx, "feed:a:x")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = c.Get(ctx, "feed:b:x")
	require.NoError(t, err)
	assert.True(t, ok)
}
