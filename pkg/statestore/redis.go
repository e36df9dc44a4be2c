package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the Redis state store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// KeyPrefix namespaces every key written by the store.
	// Default: "sentinel:"
	KeyPrefix string
}

// RedisStore keeps state in Redis. TTLs map onto Redis key expiry.
type RedisStore struct {
	client *redis.Client
	prefix string
	owned  bool
	logger *slog.Logger
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, newError("redis", "connect", "", err)
	}

	s := NewRedisStoreFromClient(client, cfg.KeyPrefix)
	s.owned = true
	s.logger.Info("Redis state store initialized", "addr", cfg.Addr, "db", cfg.DB)
	return s, nil
}

// NewRedisStoreFromClient wraps an existing client. The caller keeps
// ownership of the client.
func NewRedisStoreFromClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "sentinel:"
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		logger: slog.Default().With("component", "statestore.redis"),
	}
}

func (s *RedisStore) key(k string) string {
	return s.prefix + k
}

// SetState implements Store. Persistent is ignored; durability is a
// property of the Redis deployment.
func (s *RedisStore) SetState(ctx context.Context, key string, value any, meta Metadata) error {
	data, err := json.Marshal(value)
	if err != nil {
		return newError("redis", "encode", key, err)
	}
	if err := s.client.Set(ctx, s.key(key), data, meta.TTL).Err(); err != nil {
		return newError("redis", "set", key, err)
	}
	return nil
}

// GetState implements Store.
func (s *RedisStore) GetState(ctx context.Context, key string, dest any) error {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return newError("redis", "get", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return newError("redis", "decode", key, err)
	}
	return nil
}

// DeleteState implements Store.
func (s *RedisStore) DeleteState(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return newError("redis", "delete", key, err)
	}
	return nil
}

// Keys implements Store using SCAN so large keyspaces do not block Redis.
func (s *RedisStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys := make([]string, 0)
	iter := s.client.Scan(ctx, 0, s.key(prefix)+"*", 500).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), s.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, newError("redis", "keys", prefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Ping implements Pinger.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close implements Store. A client passed to NewRedisStoreFromClient is
// left open.
func (s *RedisStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}
