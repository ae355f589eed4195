package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisBackend = "redis"

// RedisStore stores entries as JSON values in Redis.
type RedisStore struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewRedisStore creates a store on an existing client. A zero ttl stores
// keys without expiry and leaves eviction to the Redis maxmemory policy.
func NewRedisStore(redisClient *redis.Client, ttl time.Duration) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{
		redis: redisClient,
		ttl:   ttl,
	}
}

// NewRedisStoreFromURL parses url, connects and pings.
func NewRedisStoreFromURL(url string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStore(client, ttl), nil
}

// Get retrieves an entry by key.
// Returns ErrCacheMiss if the key doesn't exist or the entry is expired.
func (s *RedisStore) Get(ctx context.Context, key CacheKey) (*Entry, error) {
	data, err := s.redis.Get(ctx, key.StorageKey()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			CacheMisses.WithLabelValues(redisBackend).Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues(redisBackend, "get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues(redisBackend, "get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	if entry.IsExpired() {
		CacheMisses.WithLabelValues(redisBackend).Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues(redisBackend).Inc()
	return &entry, nil
}

// Put stores an entry. The key TTL is the entry's remaining lifetime if it
// has one, otherwise the store default.
func (s *RedisStore) Put(ctx context.Context, key CacheKey, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	ttl := s.ttl
	if !entry.Expires.IsZero() {
		ttl = entry.TTL()
		if ttl <= 0 {
			// Already expired, don't cache
			return nil
		}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues(redisBackend, "put").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := s.redis.Set(ctx, key.StorageKey(), data, ttl).Err(); err != nil {
		CacheErrors.WithLabelValues(redisBackend, "put").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	CacheEntryBytes.WithLabelValues(redisBackend).Observe(float64(len(data)))
	return nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.redis.Close()
}
