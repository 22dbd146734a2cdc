package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// redisKeyPrefix namespaces gateway cache entries within a shared Redis.
const redisKeyPrefix = "infergw:response:"

// RedisStore persists cache entries in Redis, for deployments where several
// gateway processes should share one cache. Entries are stored without a
// server-side TTL so that expiry semantics stay identical to the SQLite
// backend: validity is computed at read time, stale values are overwritten
// by the next write.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client *redis.Client) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &RedisStore{client: client}, nil
}

// Name identifies the backend in logs and metrics.
func (s *RedisStore) Name() string { return "redis" }

// Get returns the entry for a fingerprint, expired or not.
func (s *RedisStore) Get(ctx context.Context, fingerprint string) (*Entry, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+fingerprint).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	return &entry, nil
}

// Put upserts the entry under the fingerprint, last writer wins.
func (s *RedisStore) Put(ctx context.Context, fingerprint string, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := s.client.Set(ctx, redisKeyPrefix+fingerprint, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// Ping reports whether Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
