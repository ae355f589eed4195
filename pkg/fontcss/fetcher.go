package fontcss

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/Sternrassler/fontshield/pkg/cache"
	"github.com/Sternrassler/fontshield/pkg/fingerprint"
	"github.com/Sternrassler/fontshield/pkg/logging"
)

// DefaultFallbackUserAgent is sent upstream for unrecognized browsers. It is
// deliberately old so Google Fonts answers with the most compatible CSS
// instead of a modern-browser-only variant.
const DefaultFallbackUserAgent = "Mozilla/4.0 (compatible; MSIE 8.0; Windows NT 6.0; Trident/4.0)"

// maxStylesheetBytes caps how much of an origin stylesheet is read.
const maxStylesheetBytes = 4 << 20

// Outcome says which branch produced a Result.
type Outcome string

const (
	OutcomeHit    Outcome = "hit"
	OutcomeMiss   Outcome = "miss"
	OutcomeBypass Outcome = "bypass"
)

// Result is the outcome of a stylesheet fetch. Found is false when the origin
// answered with anything but 200; the element should then be left alone.
type Result struct {
	CSS     string
	Found   bool
	Outcome Outcome
}

// RequestInfo is what the fetcher needs from the inbound browser request.
type RequestInfo struct {
	// URL is the full URL of the page being rewritten, sent as Referer
	URL string

	// UserAgent is the browser's User-Agent header
	UserAgent string
}

// Origin performs outbound GETs. *origin.Client satisfies it.
type Origin interface {
	Get(ctx context.Context, rawURL string, header http.Header) (*http.Response, error)
}

// Config holds fetcher settings.
type Config struct {
	// FetchTimeout bounds one origin fetch including the body read
	FetchTimeout time.Duration

	// FallbackUserAgent is sent when the browser is not recognized
	FallbackUserAgent string
}

// DefaultConfig returns the default fetcher configuration.
func DefaultConfig() Config {
	return Config{
		FetchTimeout:      10 * time.Second,
		FallbackUserAgent: DefaultFallbackUserAgent,
	}
}

// Fetcher implements the cached fetch-and-rewrite protocol.
type Fetcher struct {
	store  cache.Store
	origin Origin
	config Config
	group  singleflight.Group
	logger zerolog.Logger
}

// NewFetcher creates a fetcher. store and origin are required.
func NewFetcher(store cache.Store, origin Origin, cfg Config) *Fetcher {
	if store == nil || origin == nil {
		panic("fontcss: store and origin are required")
	}
	defaults := DefaultConfig()
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaults.FetchTimeout
	}
	if cfg.FallbackUserAgent == "" {
		cfg.FallbackUserAgent = defaults.FallbackUserAgent
	}
	return &Fetcher{
		store:  store,
		origin: origin,
		config: cfg,
		logger: logging.NewLogger(logging.ComponentFontCSS),
	}
}

// sharedFetch is what one in-flight origin fetch hands to every waiter.
type sharedFetch struct {
	css      string
	found    bool
	cacheErr error
}

// Fetch returns the rewritten stylesheet for href as requested by info.
// A non-nil error means the origin could not be reached at all.
func (f *Fetcher) Fetch(ctx context.Context, href string, info RequestInfo) (Result, error) {
	target := resolveURL(NormalizeURL(href))
	fp, _ := fingerprint.Parse(info.UserAgent)
	header := f.outboundHeader(info, fp)
	key := cache.NewCacheKey(target, fp)

	logger := f.logger.With().Str("url", target).Str("tag", key.Tag).Logger()

	entry, err := f.store.Get(ctx, key)
	switch {
	case err == nil:
		logger.Debug().Msg("Stylesheet cache hit")
		fetchTotal.WithLabelValues(string(OutcomeHit)).Inc()
		return Result{CSS: entry.Body, Found: true, Outcome: OutcomeHit}, nil
	case errors.Is(err, cache.ErrCacheMiss):
		logger.Debug().Msg("Stylesheet cache miss")
	default:
		logger.Warn().Err(err).Msg("Cache get failed, bypassing cache")
		return f.bypass(ctx, target, header, logger)
	}

	v, err, shared := f.group.Do(key.StorageKey(), func() (interface{}, error) {
		// Detached so one waiter's cancellation doesn't fail the others.
		fetchCtx := context.WithoutCancel(ctx)

		css, found, err := f.fetchOrigin(fetchCtx, target, header, logger)
		if err != nil || !found {
			return sharedFetch{}, err
		}

		res := sharedFetch{css: css, found: true}
		if err := f.store.Put(fetchCtx, key, cache.NewEntry(css, header, 0)); err != nil {
			res.cacheErr = err
		}
		return res, nil
	})
	if shared {
		fetchSharedTotal.Inc()
	}
	if err != nil {
		fetchTotal.WithLabelValues("error").Inc()
		return Result{Outcome: OutcomeMiss}, err
	}

	res := v.(sharedFetch)
	if !res.found {
		fetchTotal.WithLabelValues("no_content").Inc()
		return Result{Outcome: OutcomeMiss}, nil
	}
	if res.cacheErr != nil {
		// The body was fetched without the cache's help; a fresh fetch
		// would produce the same bytes, so serve them uncached.
		logger.Warn().Err(res.cacheErr).Msg("Cache put failed, serving uncached")
		fetchTotal.WithLabelValues(string(OutcomeBypass)).Inc()
		return Result{CSS: res.css, Found: true, Outcome: OutcomeBypass}, nil
	}

	fetchTotal.WithLabelValues(string(OutcomeMiss)).Inc()
	return Result{CSS: res.css, Found: true, Outcome: OutcomeMiss}, nil
}

// bypass is the degraded branch taken when the cache layer faults.
func (f *Fetcher) bypass(ctx context.Context, target string, header http.Header, logger zerolog.Logger) (Result, error) {
	css, found, err := f.fetchOrigin(ctx, target, header, logger)
	if err != nil {
		fetchTotal.WithLabelValues("error").Inc()
		return Result{Outcome: OutcomeBypass}, err
	}
	if !found {
		fetchTotal.WithLabelValues("no_content").Inc()
		return Result{Outcome: OutcomeBypass}, nil
	}
	fetchTotal.WithLabelValues(string(OutcomeBypass)).Inc()
	return Result{CSS: css, Found: true, Outcome: OutcomeBypass}, nil
}

// fetchOrigin GETs target and rewrites the body. found is false for any
// status other than 200.
func (f *Fetcher) fetchOrigin(ctx context.Context, target string, header http.Header, logger zerolog.Logger) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, f.config.FetchTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		originFetchDuration.Observe(time.Since(start).Seconds())
	}()

	resp, err := f.origin.Get(ctx, target, header)
	if err != nil {
		return "", false, fmt.Errorf("fetch stylesheet: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Warn().Int("status_code", resp.StatusCode).Msg("Stylesheet origin returned non-200 status")
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return "", false, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStylesheetBytes+1))
	if err != nil {
		return "", false, fmt.Errorf("read stylesheet body: %w", err)
	}
	if len(body) > maxStylesheetBytes {
		// A truncated stylesheet must never be inlined or cached.
		logger.Warn().Int("limit_bytes", maxStylesheetBytes).Msg("Stylesheet exceeds size limit")
		return "", false, nil
	}

	return RewriteFontURLs(string(body)), true, nil
}

// outboundHeader returns exactly the headers sent upstream: the page URL as
// Referer, and the browser's own User-Agent if it was recognized.
func (f *Fetcher) outboundHeader(info RequestInfo, fp fingerprint.Fingerprint) http.Header {
	header := make(http.Header, 2)
	header.Set("Referer", info.URL)
	if fp.Tag() != "" {
		header.Set("User-Agent", info.UserAgent)
	} else {
		header.Set("User-Agent", f.config.FallbackUserAgent)
	}
	return header
}
