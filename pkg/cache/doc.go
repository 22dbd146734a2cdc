// Package cache provides the content-addressed response cache with expiry.
//
// Responses are keyed by a SHA-256 fingerprint of the exact outbound prompt
// text. Validity is computed at read time against the configured TTL; stale
// rows may persist in storage indefinitely but are never returned, and are
// silently overwritten on the next write to the same fingerprint.
//
// The cache is a performance optimization, never a correctness dependency:
// every storage failure degrades to a miss (on read) or a no-op (on write),
// and a nil Store leaves the gateway running cache-less.
//
// # Basic Usage
//
//	store, err := cache.NewSQLiteStore("chat_cache.db")
//	if err != nil {
//		// degrade: cache.New(nil, ttl) still works, always missing
//	}
//
//	c := cache.New(store, time.Hour)
//
//	if resp, ok := c.Lookup(ctx, promptText); ok {
//		return resp
//	}
//	// ... call the inference endpoint ...
//	c.Store(ctx, promptText, resp)
//
// # Backends
//
// Two Store implementations are provided: SQLiteStore (default, a single
// local file) and RedisStore (shared between processes). Both expose the
// same read-time-expiry semantics; neither relies on server-side eviction.
//
// # Metrics
//
// The package exports Prometheus metrics:
//
//   - infergw_cache_hits_total{backend} - Cache hits
//   - infergw_cache_misses_total - Cache misses (including expired entries)
//   - infergw_cache_errors_total{operation} - Storage failures by operation
package cache
