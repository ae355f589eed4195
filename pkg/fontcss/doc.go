// Package fontcss fetches Google Fonts stylesheets on behalf of a browser,
// caches them per browser fingerprint, and rewrites font-binary URLs so they
// are served through the local proxy prefix.
//
// # Fetch protocol
//
//	href -> NormalizeURL -> fingerprint.Parse -> cache.NewCacheKey -> Store.Get
//	  hit:   return stored body
//	  miss:  origin GET -> 200? RewriteFontURLs -> Store.Put -> return
//	                      else: no content
//	  fault: origin GET -> RewriteFontURLs -> return (no cache interaction)
//	  put fault after a miss: return the fetched body as a bypass
//
// A cache-layer fault never fails a fetch; it degrades to OutcomeBypass.
// An origin transport failure is returned as an error, and callers rewriting
// HTML are expected to leave the element untouched.
//
// Concurrent misses for the same key within one process share a single origin
// request. Separate processes may still race; the last write wins.
package fontcss
