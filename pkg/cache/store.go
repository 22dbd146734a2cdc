package cache

import (
	"context"
	"errors"
)

var (
	// ErrCacheMiss indicates the requested fingerprint was not found.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the stored entry is corrupted.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Store is the persistence backend for cached responses. Implementations
// must support point lookup by fingerprint and last-writer-wins upsert; no
// further atomicity is required. Expiry is the manager's concern, never the
// store's.
type Store interface {
	// Name identifies the backend in logs and metrics.
	Name() string

	// Get returns the entry for a fingerprint, or ErrCacheMiss.
	Get(ctx context.Context, fingerprint string) (*Entry, error)

	// Put upserts an entry under a fingerprint, overwriting any prior row.
	Put(ctx context.Context, fingerprint string, entry Entry) error

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
