// Package assetproxy relays font binaries from the font host so pages
// rewritten by fontshield load fonts from their own origin.
package assetproxy

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/fontshield/pkg/fontcss"
	"github.com/Sternrassler/fontshield/pkg/logging"
)

// DefaultUpstream is where font binaries are fetched from.
const DefaultUpstream = "https://" + fontcss.FontBinaryHost

var (
	assetRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fontshield_asset_requests_total",
		Help: "Font binary requests relayed upstream by status",
	}, []string{"status"})

	assetBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fontshield_asset_bytes_total",
		Help: "Font binary bytes relayed to clients",
	})
)

// hopHeaders are connection-scoped and never forwarded.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// credentialHeaders belong to the rewritten site and never reach the font
// host.
var credentialHeaders = []string{
	"Cookie",
	"Authorization",
}

// Upstream performs the relayed GET. *origin.Client satisfies it.
type Upstream interface {
	Get(ctx context.Context, rawURL string, header http.Header) (*http.Response, error)
}

// Handler relays requests under fontcss.ProxyPrefix to the font host.
type Handler struct {
	upstream Upstream
	base     string
	logger   zerolog.Logger
}

// New creates a handler fetching from base, or DefaultUpstream when base is
// empty.
func New(upstream Upstream, base string) *Handler {
	if upstream == nil {
		panic("assetproxy: upstream is required")
	}
	if base == "" {
		base = DefaultUpstream
	}
	return &Handler{
		upstream: upstream,
		base:     strings.TrimSuffix(base, "/"),
		logger:   logging.NewLogger(logging.ComponentAssetProxy),
	}
}

// UpstreamURL maps a local request path and query to the upstream URL.
// ok is false for paths outside fontcss.ProxyPrefix.
func (h *Handler) UpstreamURL(path, rawQuery string) (string, bool) {
	rest, ok := strings.CutPrefix(path, fontcss.ProxyPrefix)
	if !ok {
		return "", false
	}
	target := h.base + "/" + rest
	if rawQuery != "" {
		target += "?" + rawQuery
	}
	return target, true
}

// ServeHTTP relays the request and streams the upstream response back
// without modification.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	target, ok := h.UpstreamURL(r.URL.EscapedPath(), r.URL.RawQuery)
	if !ok {
		http.NotFound(w, r)
		return
	}

	logger := h.logger.With().Str("url", target).Logger()

	resp, err := h.upstream.Get(r.Context(), target, forwardHeader(r.Header))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug().Msg("Client went away before upstream answered")
			return
		}
		logger.Warn().Err(err).Msg("Font upstream unreachable")
		assetRequestsTotal.WithLabelValues("502").Inc()
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	assetRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
	logger.Debug().Int("status_code", resp.StatusCode).Msg("Relaying font asset")

	dst := w.Header()
	for k, vv := range resp.Header {
		dst[k] = append([]string(nil), vv...)
	}
	removeHopHeaders(dst)
	w.WriteHeader(resp.StatusCode)

	n, err := io.Copy(w, resp.Body)
	assetBytesTotal.Add(float64(n))
	if err != nil {
		logger.Debug().Err(err).Int64("bytes", n).Msg("Font asset copy interrupted")
	}
}

func forwardHeader(in http.Header) http.Header {
	out := in.Clone()
	removeHopHeaders(out)
	// The inbound Host belongs to the rewritten site.
	out.Del("Host")
	for _, name := range credentialHeaders {
		out.Del(name)
	}
	return out
}

func removeHopHeaders(h http.Header) {
	// Headers named in Connection are hop-by-hop too.
	for _, v := range h.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				h.Del(name)
			}
		}
	}
	for _, name := range hopHeaders {
		h.Del(name)
	}
}
