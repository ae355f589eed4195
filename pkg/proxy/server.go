// Package proxy wires the fontshield HTTP surface: it reverse-proxies a
// site, inlines its font stylesheets on the way through, and relays the
// font binaries those stylesheets reference.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/fontshield/pkg/fontcss"
	"github.com/Sternrassler/fontshield/pkg/logging"
	"github.com/Sternrassler/fontshield/pkg/metrics"
	"github.com/Sternrassler/fontshield/pkg/rewriter"
)

// Pinger reports whether a dependency is reachable. cache.Backend
// satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds server settings.
type Config struct {
	// Origin is the base URL of the proxied site
	Origin string

	// PreserveHost forwards the inbound Host header instead of the origin's
	PreserveHost bool

	// MetricsPath serves Prometheus metrics; empty disables the route
	MetricsPath string

	// ReadyTimeout bounds the readiness ping
	ReadyTimeout time.Duration

	// Rewrite configures the per-response HTML rewriter
	Rewrite rewriter.Config
}

// Server is the fontshield HTTP handler.
type Server struct {
	router  chi.Router
	origin  *url.URL
	fetcher rewriter.Fetcher
	ready   Pinger
	config  Config
	logger  zerolog.Logger
}

// New builds the server. assets serves the font binary prefix; ready is
// pinged by /readyz and may be nil.
func New(cfg Config, fetcher rewriter.Fetcher, assets http.Handler, ready Pinger) (*Server, error) {
	if fetcher == nil || assets == nil {
		return nil, errors.New("proxy: fetcher and asset handler are required")
	}
	target, err := url.Parse(cfg.Origin)
	if err != nil {
		return nil, fmt.Errorf("parse origin: %w", err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("origin must be an absolute URL, got %q", cfg.Origin)
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 2 * time.Second
	}

	s := &Server{
		origin:  target,
		fetcher: fetcher,
		ready:   ready,
		config:  cfg,
		logger:  logging.NewLogger(logging.ComponentProxy),
	}

	site := &httputil.ReverseProxy{
		Rewrite:        s.rewriteRequest,
		ModifyResponse: s.modifyResponse,
		ErrorHandler:   s.proxyError,
		FlushInterval:  -1,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.accessLog)

	r.Get(fontcss.ProxyPrefix+"*", assets.ServeHTTP)
	r.Get("/healthz", healthHandler)
	r.Get("/readyz", s.readyHandler)
	if cfg.MetricsPath != "" {
		r.Handle(cfg.MetricsPath, promhttp.HandlerFor(metrics.Gatherer, promhttp.HandlerOpts{}))
	}
	r.Handle("/*", s.siteHandler(site))

	s.router = r
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), s.config.ReadyTimeout)
		defer cancel()
		if err := s.ready.Ping(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("Readiness check failed")
			http.Error(w, "cache unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// siteHandler captures the browser's view of the request before proxying.
func (s *Server) siteHandler(site http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info := RequestInfoFrom(r)
		site.ServeHTTP(w, r.WithContext(withRequestInfo(r.Context(), info)))
	}
}

func (s *Server) rewriteRequest(pr *httputil.ProxyRequest) {
	pr.SetURL(s.origin)
	pr.SetXForwarded()
	if s.config.PreserveHost {
		pr.Out.Host = pr.In.Host
	}

	// Only ask for encodings the rewriter can decode.
	if ae := pr.In.Header.Get("Accept-Encoding"); ae != "" {
		if filtered := filterAcceptEncoding(ae); filtered != "" {
			pr.Out.Header.Set("Accept-Encoding", filtered)
		} else {
			pr.Out.Header.Del("Accept-Encoding")
		}
	}
}

// modifyResponse streams HTML bodies through the font rewriter. It never
// fails the response: anything it cannot handle passes through.
func (s *Server) modifyResponse(resp *http.Response) error {
	if !isRewritable(resp) {
		return nil
	}

	logger := s.logger.With().Str("url", resp.Request.URL.String()).Logger()

	encoding := resp.Header.Get("Content-Encoding")
	if !rewriter.CanDecode(encoding) {
		htmlResponsesTotal.WithLabelValues("unsupported_encoding").Inc()
		logger.Debug().Str("content_encoding", encoding).Msg("Skipping rewrite for unsupported encoding")
		return nil
	}

	body, err := rewriter.Decode(resp.Body, encoding)
	if err != nil {
		// The body was unreadable as declared; keep the status, drop the body.
		htmlResponsesTotal.WithLabelValues("decode_error").Inc()
		logger.Warn().Err(err).Msg("Could not decode HTML body")
		resp.Body = http.NoBody
		dropBodyHeaders(resp)
		return nil
	}

	info, ok := requestInfoFromContext(resp.Request.Context())
	if !ok {
		info = RequestInfoFrom(resp.Request)
	}

	rw := rewriter.NewFontLinkRewriter(s.fetcher, info, s.config.Rewrite)
	pr, pw := io.Pipe()
	go func() {
		err := rw.Rewrite(resp.Request.Context(), pw, body)
		body.Close()
		pw.CloseWithError(err)
	}()

	resp.Body = pr
	dropBodyHeaders(resp)
	htmlResponsesTotal.WithLabelValues("rewritten").Inc()
	return nil
}

func (s *Server) proxyError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("Origin request failed")
	w.WriteHeader(http.StatusBadGateway)
}

// accessLog records one debug line and a duration sample per request.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "site"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" && pattern != "/*" {
				route = pattern
			}
		}
		requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())

		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status_code", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("Request served")
	})
}

// isRewritable reports whether resp carries an HTML body.
func isRewritable(resp *http.Response) bool {
	if resp.Request != nil && resp.Request.Method == http.MethodHead {
		return false
	}
	if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotModified {
		return false
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	return err == nil && mediaType == "text/html"
}

// dropBodyHeaders removes headers describing the original body bytes.
func dropBodyHeaders(resp *http.Response) {
	resp.Header.Del("Content-Length")
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-MD5")
	resp.ContentLength = -1
	resp.Uncompressed = true
	if etag := resp.Header.Get("ETag"); etag != "" && !strings.HasPrefix(etag, "W/") {
		resp.Header.Set("ETag", "W/"+etag)
	}
}

// filterAcceptEncoding keeps the codings the rewriter can decode.
func filterAcceptEncoding(header string) string {
	var kept []string
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		coding, _, _ := strings.Cut(part, ";")
		coding = strings.TrimSpace(coding)
		if coding == "" || coding == "*" || !rewriter.CanDecode(coding) {
			continue
		}
		kept = append(kept, part)
	}
	return strings.Join(kept, ", ")
}
