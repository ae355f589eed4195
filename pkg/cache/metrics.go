package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by backend
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fontshield_cache_hits_total",
			Help: "Total number of font stylesheet cache hits",
		},
		[]string{"backend"}, // "redis", "memory", "sqlite"
	)

	// CacheMisses tracks cache misses by backend
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fontshield_cache_misses_total",
			Help: "Total number of font stylesheet cache misses",
		},
		[]string{"backend"},
	)

	// CacheEntryBytes observes the size of stored entries
	CacheEntryBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fontshield_cache_entry_bytes",
			Help:    "Size of stored font stylesheet entries in bytes",
			Buckets: prometheus.ExponentialBuckets(256, 2, 10),
		},
		[]string{"backend"},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fontshield_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"backend", "operation"}, // "get", "put"
	)
)
