package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by backend (sqlite, redis).
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "infergw_cache_hits_total",
			Help: "Total number of response cache hits",
		},
		[]string{"backend"},
	)

	// CacheMisses tracks cache misses, including reads of expired entries.
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "infergw_cache_misses_total",
			Help: "Total number of response cache misses",
		},
	)

	// CacheWrites tracks successful cache writes.
	CacheWrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "infergw_cache_writes_total",
			Help: "Total number of responses written to the cache",
		},
	)

	// CacheErrors tracks storage failures that degraded to a miss or no-op.
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "infergw_cache_errors_total",
			Help: "Total number of cache storage errors",
		},
		[]string{"operation"}, // "get", "put"
	)
)
