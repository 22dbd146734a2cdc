package cache

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/resilia-labs/inference-gateway/pkg/logging"
)

// Cache is the content-addressed response cache. It fingerprints prompt
// text, delegates persistence to a Store, and applies the TTL at read time.
//
// A nil Store is valid: the cache then always misses and drops writes, which
// keeps the gateway functional when the backing store could not be opened.
type Cache struct {
	store  Store
	ttl    time.Duration
	logger zerolog.Logger

	// now is the clock used for expiry checks and write timestamps.
	// Overridable in tests.
	now func() time.Time
}

// New creates a response cache over the given store. Pass a nil store to
// run in degraded, always-miss mode.
func New(store Store, ttl time.Duration) *Cache {
	return &Cache{
		store:  store,
		ttl:    ttl,
		logger: logging.NewLogger("response-cache"),
		now:    time.Now,
	}
}

// Lookup returns the cached response for a prompt, if a live entry exists.
// Absence and every storage failure both report a plain miss; the caller
// never has to distinguish them.
func (c *Cache) Lookup(ctx context.Context, promptText string) (string, bool) {
	if c.store == nil {
		CacheMisses.Inc()
		return "", false
	}

	fp := Fingerprint(promptText)

	entry, err := c.store.Get(ctx, fp)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			CacheErrors.WithLabelValues("get").Inc()
			c.logger.Warn().Err(err).Str("fingerprint", fp).Msg("Cache get failed, treating as miss")
		}
		CacheMisses.Inc()
		return "", false
	}

	if entry.ExpiredAt(c.now(), c.ttl) {
		// Stale rows stay in storage; the next write overwrites them.
		CacheMisses.Inc()
		c.logger.Debug().Str("fingerprint", fp).Msg("Cache entry expired")
		return "", false
	}

	CacheHits.WithLabelValues(c.store.Name()).Inc()
	c.logger.Debug().Str("fingerprint", fp).Msg("Cache hit")
	return entry.Response, true
}

// Store writes a response under the prompt's fingerprint, overwriting any
// previous entry. Failures are logged and swallowed; callers never block on
// cache durability.
func (c *Cache) Store(ctx context.Context, promptText, response string) {
	if c.store == nil {
		return
	}

	fp := Fingerprint(promptText)

	err := c.store.Put(ctx, fp, Entry{Response: response, StoredAt: c.now()})
	if err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		c.logger.Warn().Err(err).Str("fingerprint", fp).Msg("Cache put failed, response not cached")
		return
	}

	CacheWrites.Inc()
	c.logger.Debug().Str("fingerprint", fp).Dur("ttl", c.ttl).Msg("Cached response")
}

// TTL returns the configured entry lifetime.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Ping reports whether the backing store is reachable. A nil store is
// reported as unavailable without being an error for callers that only
// probe readiness.
func (c *Cache) Ping(ctx context.Context) error {
	if c.store == nil {
		return errors.New("cache store not configured")
	}
	return c.store.Ping(ctx)
}

// Close releases the backing store.
func (c *Cache) Close() error {
	if c.store == nil {
		return nil
	}
	return c.store.Close()
}
