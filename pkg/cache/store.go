package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Store is the key/value contract the stylesheet fetcher depends on.
// Implementations must be safe for concurrent use. Get returns ErrCacheMiss
// for absent or expired keys; any other error is a cache-layer fault.
type Store interface {
	Get(ctx context.Context, key CacheKey) (*Entry, error)
	Put(ctx context.Context, key CacheKey, entry *Entry) error
}

// Backend is a Store with lifecycle hooks for the server.
type Backend interface {
	Store

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the backend.
	Close() error
}

// Backend names accepted by Config.Backend.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Config selects and configures a backend.
type Config struct {
	// Backend is one of BackendMemory, BackendRedis, BackendSQLite
	Backend string

	// RedisURL is the Redis connection URL (e.g. "redis://localhost:6379/0")
	RedisURL string

	// SQLitePath is the database file; empty means a shared in-memory db
	SQLitePath string

	// TTL bounds entry lifetime; 0 leaves expiry to the backend
	TTL time.Duration
}

// New opens the configured backend.
func New(cfg Config) (Backend, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemoryStore(cfg.TTL), nil
	case BackendRedis:
		return NewRedisStoreFromURL(cfg.RedisURL, cfg.TTL)
	case BackendSQLite:
		return NewSQLiteStore(cfg.SQLitePath, cfg.TTL)
	default:
		return nil, fmt.Errorf("unsupported cache backend: %q", cfg.Backend)
	}
}
