package cache

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const memoryBackend = "memory"

// MemoryStore keeps entries in process memory. Entries are lost on restart
// and are not shared between instances.
type MemoryStore struct {
	items *gocache.Cache
}

// NewMemoryStore creates an in-memory store. A zero ttl keeps entries until
// the process exits.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	expiration := gocache.NoExpiration
	cleanup := time.Duration(0)
	if ttl > 0 {
		expiration = ttl
		cleanup = ttl
	}
	return &MemoryStore{
		items: gocache.New(expiration, cleanup),
	}
}

// Get retrieves an entry by key.
func (s *MemoryStore) Get(_ context.Context, key CacheKey) (*Entry, error) {
	v, ok := s.items.Get(key.StorageKey())
	if !ok {
		CacheMisses.WithLabelValues(memoryBackend).Inc()
		return nil, ErrCacheMiss
	}

	entry, ok := v.(*Entry)
	if !ok {
		CacheErrors.WithLabelValues(memoryBackend, "get").Inc()
		return nil, fmt.Errorf("%w: unexpected type %T", ErrInvalidEntry, v)
	}

	if entry.IsExpired() {
		s.items.Delete(key.StorageKey())
		CacheMisses.WithLabelValues(memoryBackend).Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues(memoryBackend).Inc()
	copied := *entry
	return &copied, nil
}

// Put stores a copy of entry.
func (s *MemoryStore) Put(_ context.Context, key CacheKey, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	expiration := gocache.DefaultExpiration
	if !entry.Expires.IsZero() {
		expiration = entry.TTL()
		if expiration <= 0 {
			return nil
		}
	}

	copied := *entry
	s.items.Set(key.StorageKey(), &copied, expiration)
	CacheEntryBytes.WithLabelValues(memoryBackend).Observe(float64(len(entry.Body)))
	return nil
}

// Len returns the number of stored entries, including expired ones not yet
// collected.
func (s *MemoryStore) Len() int {
	return s.items.ItemCount()
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

// Close drops all entries.
func (s *MemoryStore) Close() error {
	s.items.Flush()
	return nil
}
