// Package metrics documents the Prometheus metrics exported by fontshield.
// All metrics are defined in their respective packages (cache, origin,
// fontcss, rewriter, assetproxy, proxy) via promauto, so importing a package
// registers its metrics with the default registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by fontshield.
var Registry = prometheus.DefaultRegisterer

// Gatherer is what the /metrics route serves.
var Gatherer = prometheus.DefaultGatherer

// Prefix starts every fontshield metric name.
const Prefix = "fontshield_"

// Names lists every metric family fontshield exports.
var Names = []string{
	"fontshield_cache_hits_total",
	"fontshield_cache_misses_total",
	"fontshield_cache_errors_total",
	"fontshield_cache_entry_bytes",
	"fontshield_origin_requests_total",
	"fontshield_origin_request_duration_seconds",
	"fontshield_origin_retries_total",
	"fontshield_origin_retry_exhausted_total",
	"fontshield_fetch_total",
	"fontshield_fetch_shared_total",
	"fontshield_origin_fetch_duration_seconds",
	"fontshield_rewrite_documents_total",
	"fontshield_rewrite_elements_total",
	"fontshield_rewrite_transform_duration_seconds",
	"fontshield_asset_requests_total",
	"fontshield_asset_bytes_total",
	"fontshield_html_responses_total",
	"fontshield_http_request_duration_seconds",
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - fontshield_cache_hits_total{backend} (Counter): Stylesheet cache hits
//   - fontshield_cache_misses_total{backend} (Counter): Stylesheet cache misses
//   - fontshield_cache_errors_total{backend, operation} (Counter): Backend faults
//   - fontshield_cache_entry_bytes{backend} (Histogram): Size of stored stylesheets
//
// Origin Metrics (pkg/origin):
//   - fontshield_origin_requests_total{host, status} (Counter): Outbound requests
//   - fontshield_origin_request_duration_seconds{host} (Histogram): Outbound latency
//   - fontshield_origin_retries_total{error_class} (Counter): Retry attempts
//   - fontshield_origin_retry_exhausted_total{error_class} (Counter): Exhausted retries
//
// Fetch Metrics (pkg/fontcss):
//   - fontshield_fetch_total{outcome} (Counter): hit, miss, bypass, no_content, error
//   - fontshield_fetch_shared_total (Counter): Fetches joined to an in-flight one
//   - fontshield_origin_fetch_duration_seconds (Histogram): Stylesheet fetch latency
//
// Rewrite Metrics (pkg/rewriter, pkg/proxy):
//   - fontshield_rewrite_documents_total{result} (Counter): Documents rewritten
//   - fontshield_rewrite_elements_total{result} (Counter): replaced, unchanged, failed
//   - fontshield_rewrite_transform_duration_seconds (Histogram): Per-element latency
//   - fontshield_html_responses_total{result} (Counter): HTML response handling
//
// Asset Metrics (pkg/assetproxy):
//   - fontshield_asset_requests_total{status} (Counter): Relayed font requests
//   - fontshield_asset_bytes_total (Counter): Relayed font bytes
//
// Example Prometheus Queries:
//
//   # Stylesheet Cache Hit Rate
//   sum(rate(fontshield_fetch_total{outcome="hit"}[5m])) /
//   sum(rate(fontshield_fetch_total{outcome=~"hit|miss|bypass"}[5m]))
//
//   # Cache Degradation
//   rate(fontshield_fetch_total{outcome="bypass"}[5m]) > 0
//
//   # Isolated Transform Failures
//   rate(fontshield_rewrite_elements_total{result="failed"}[5m])
//
//   # P95 Stylesheet Fetch Latency
//   histogram_quantile(0.95, rate(fontshield_origin_fetch_duration_seconds_bucket[5m]))
