package redis

import (
	"context"
	"testing"
	"time"

	"itemservice/internal/domain/item"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, ttl time.Duration) (*ItemCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewItemCache(client, ttl), mr
}

func TestItemCache_RoundTrip(t *testing.T) {
	cache, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	_, err := cache.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrCacheMiss)

	want := &item.Item{ID: "a", Name: "Pen", Status: item.StatusNew, Email: "a@a.com"}
	require.NoError(t, cache.Set(ctx, want))
	assert.True(t, mr.Exists("item:a"))

	got, err := cache.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, want.Name, got.Name)
	assert.Equal(t, want.Status, got.Status)

	require.NoError(t, cache.Delete(ctx, "a"))
	_, err = cache.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestItemCache_Expires(t *testing.T) {
	cache, mr := newTestCache(t, time.Second)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, &item.Item{ID: "b"}))
	mr.FastForward(2 * time.Second)

	_, err := cache.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestNewClient_PingFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := NewClient(ctx, Config{Addr: addr})
	assert.Error(t, err)
}
