package cache

import (
	"github.com/Sternrassler/fontshield/pkg/fingerprint"
)

// keyPrefix namespaces fontshield entries inside a shared backend.
const keyPrefix = "fontcss:"

// CacheKey identifies one cached stylesheet variant.
type CacheKey struct {
	// URL is the normalized stylesheet URL
	URL string

	// Tag is the browser fingerprint tag, empty for unrecognized browsers
	Tag string
}

// NewCacheKey builds the key for a normalized URL and a requester fingerprint.
// The Unknown fingerprint yields a bare URL key shared by all unrecognized
// browsers.
func NewCacheKey(normalizedURL string, fp fingerprint.Fingerprint) CacheKey {
	return CacheKey{
		URL: normalizedURL,
		Tag: fp.Tag(),
	}
}

// String returns the lookup key: the URL with the tag appended as a
// query-like suffix.
//
// Example:
//
//	https://fonts.googleapis.com/css?family=Roboto&Chrome123Windows
func (k CacheKey) String() string {
	if k.Tag == "" {
		return k.URL
	}
	return k.URL + "&" + k.Tag
}

// StorageKey is String() namespaced for the backing store.
func (k CacheKey) StorageKey() string {
	return keyPrefix + k.String()
}
