package tokenstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupRedisStoreTest creates a miniredis instance and returns the store and cleanup function
func setupRedisStoreTest(t *testing.T) (*RedisStore, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Type = BackendRedis
	cfg.RedisURL = "redis://" + mr.Addr()

	store, err := NewRedisStore(context.Background(), cfg)
	if err != nil {
		mr.Close()
		t.Fatalf("Failed to create Redis store: %v", err)
	}

	cleanup := func() {
		store.Close()
		mr.Close()
	}
	return store, mr, cleanup
}

func TestRedisStore_RoundTrip(t *testing.T) {
	store, mr, cleanup := setupRedisStoreTest(t)
	defer cleanup()
	ctx := context.Background()

	assert.Equal(t, BackendRedis, store.Backend())

	_, err := store.Load(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save(ctx, "redis-token"))
	got, err := mr.Get(DefaultKey)
	require.NoError(t, err)
	assert.Equal(t, "redis-token", got)
	assert.Zero(t, mr.TTL(DefaultKey), "token key must not expire")

	token, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "redis-token", token)

	require.NoError(t, store.Delete(ctx))
	require.NoError(t, store.Delete(ctx))
	assert.False(t, mr.Exists(DefaultKey))
}

func TestRedisStore_OnlyOneKey(t *testing.T) {
	store, mr, cleanup := setupRedisStoreTest(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "a"))
	require.NoError(t, store.Save(ctx, "b"))
	assert.Equal(t, []string{DefaultKey}, mr.Keys())
}

func TestRedisStore_ConnectionErrors(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	store := NewRedisStoreFromClient(client, "")

	mr.Close()
	_, err = store.Load(context.Background())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestNewRedisStore_InvalidURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RedisURL = "invalid://url"

	_, err := NewRedisStore(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNewRedisStoreFromClient_DefaultKey(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewRedisStoreFromClient(client, "")
	require.NoError(t, store.Save(context.Background(), "x"))
	assert.True(t, mr.Exists(DefaultKey))
	assert.Same(t, client, store.Client())
}
