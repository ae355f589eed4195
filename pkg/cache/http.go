package cache

import (
	"net/http"
	"time"
)

// NewEntry builds an entry from a rewritten body and the request headers it
// was fetched with. Multi-valued headers keep their first value.
func NewEntry(body string, headers http.Header, ttl time.Duration) *Entry {
	now := time.Now()
	entry := &Entry{
		Body:     body,
		Headers:  flattenHeaders(headers),
		CachedAt: now,
	}
	if ttl > 0 {
		entry.Expires = now.Add(ttl)
	}
	return entry
}

func flattenHeaders(headers http.Header) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	m := make(map[string]string, len(headers))
	for k := range headers {
		m[http.CanonicalHeaderKey(k)] = headers.Get(k)
	}
	return m
}
