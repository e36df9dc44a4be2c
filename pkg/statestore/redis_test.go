package statestore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisStoreFromClient(client, "test:"), mr
}

func TestRedisStore(t *testing.T) {
	store, _ := setupRedisStore(t)
	exerciseStore(t, store)
}

func TestRedisStore_TTL(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetState(ctx, "audit:1", map[string]string{"a": "b"}, Metadata{Persistent: true, TTL: time.Hour}))

	assert.True(t, mr.Exists("test:audit:1"))
	assert.Equal(t, time.Hour, mr.TTL("test:audit:1"))

	mr.FastForward(2 * time.Hour)

	var out map[string]string
	assert.ErrorIs(t, store.GetState(ctx, "audit:1", &out), ErrNotFound)
}

func TestRedisStore_Ping(t *testing.T) {
	store, mr := setupRedisStore(t)
	require.NoError(t, store.Ping(context.Background()))

	mr.Close()
	assert.Error(t, store.Ping(context.Background()))
}

func TestNewRedisStore(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	store, err := NewRedisStore(context.Background(), RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.SetState(context.Background(), "k", 1, Metadata{}))
	assert.True(t, mr.Exists("sentinel:k"))

	_, err = NewRedisStore(context.Background(), RedisConfig{})
	assert.Error(t, err)
}
