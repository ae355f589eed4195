package cache

import (
	"time"
)

// Entry is a cached, already rewritten font stylesheet.
type Entry struct {
	// Body is the rewritten CSS text
	Body string `json:"body"`

	// Headers are the outbound request headers the body was fetched with
	Headers map[string]string `json:"headers"`

	// CachedAt is when the entry was created
	CachedAt time.Time `json:"cached_at"`

	// Expires is when the entry becomes stale. Zero means no expiry.
	Expires time.Time `json:"expires,omitempty"`
}

// IsExpired returns true if the entry has a deadline and it has passed.
func (e *Entry) IsExpired() bool {
	if e.Expires.IsZero() {
		return false
	}
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if the entry has no deadline or is already expired.
func (e *Entry) TTL() time.Duration {
	if e.Expires.IsZero() {
		return 0
	}
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
