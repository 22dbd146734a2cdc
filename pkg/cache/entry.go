package cache

import "time"

// Entry is one cached response row.
type Entry struct {
	// Response is the normalized text returned by a prior successful call.
	Response string `json:"response"`

	// StoredAt is when the entry was written. Second granularity is
	// sufficient; the SQLite backend persists it as a unix timestamp.
	StoredAt time.Time `json:"stored_at"`
}

// ExpiredAt reports whether the entry is stale at the given instant for the
// given TTL. Expiry is computed at read time; stores never evict.
func (e *Entry) ExpiredAt(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.StoredAt) >= ttl
}
