// Package cache stores rewritten font stylesheets keyed by normalized URL and
// browser fingerprint.
//
// The Store interface has two operations, Get and Put. Eviction,
// TTL and persistence belong to the backend. Three backends are provided:
//
//   - RedisStore: shared across proxy instances (go-redis)
//   - MemoryStore: in-process with expiration and janitor (go-cache)
//   - SQLiteStore: single-node persistence across restarts (go-sqlite)
//
// # Basic Usage
//
//	store, err := cache.New(cache.Config{
//		Backend:  cache.BackendRedis,
//		RedisURL: "redis://localhost:6379/0",
//	})
//
//	key := cache.NewCacheKey(normalizedURL, fp)
//
//	entry, err := store.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from origin, then store.Put(ctx, key, entry)
//	}
//
// Any error other than ErrCacheMiss is a cache-layer fault. Callers are
// expected to bypass the cache rather than fail the request.
//
// # Metrics
//
//   - fontshield_cache_hits_total{backend}
//   - fontshield_cache_misses_total{backend}
//   - fontshield_cache_errors_total{backend,operation}
//   - fontshield_cache_entry_bytes{backend}
package cache
