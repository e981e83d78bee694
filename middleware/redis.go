package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/redis/go-redis/v9"
)

// RedisConfig configures a RedisStore. Defaults can be loaded via envdecode.
type RedisConfig struct {
	// Addr like "localhost:6379". ENV: RESTPROXY_CACHE_REDIS_ADDR
	Addr string `env:"RESTPROXY_CACHE_REDIS_ADDR,default=localhost:6379"`
	// KeyPrefix for all keys. ENV: RESTPROXY_CACHE_KEY_PREFIX
	KeyPrefix string `env:"RESTPROXY_CACHE_KEY_PREFIX,default=restproxy:cache:"`
}

// RedisStore is a Store shared through Redis. Responses are stored as JSON.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// NewRedisStoreFromEnv connects using RedisConfig read from the environment.
func NewRedisStoreFromEnv(ctx context.Context) (*RedisStore, error) {
	var cfg RedisConfig
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("middleware: load redis config: %w", err)
	}
	cl := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	if err := cl.Ping(ctx).Err(); err != nil {
		_ = cl.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisStore(cl, cfg.KeyPrefix), nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (*CachedResponse, bool, error) {
	b, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var resp CachedResponse
	if err := json.Unmarshal(b, &resp); err != nil {
		return nil, false, fmt.Errorf("decode cached response: %w", err)
	}
	return &resp, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, resp *CachedResponse, ttl time.Duration) error {
	b, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.prefix+key, b, ttl).Err()
}

// Close closes the underlying client.
func (s *RedisStore) Close() error { return s.client.Close() }
