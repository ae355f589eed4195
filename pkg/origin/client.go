// Package origin provides the outbound HTTP client used to reach Google Fonts.
// It bounds every request with a timeout and retries transport failures and
// 5xx responses with jittered exponential backoff.
package origin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/fontshield/pkg/logging"
)

// Prometheus metrics for origin requests.
var (
	originRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fontshield_origin_requests_total",
		Help: "Total origin requests by host and status",
	}, []string{"host", "status"})

	originRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fontshield_origin_request_duration_seconds",
		Help:    "Origin request duration in seconds by host",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"host"})

	originRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fontshield_origin_retries_total",
		Help: "Total number of origin retry attempts by error class",
	}, []string{"error_class"})

	originRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fontshield_origin_retry_exhausted_total",
		Help: "Total number of times origin retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// Config holds the client configuration.
type Config struct {
	// Timeout bounds a single attempt, including reading headers
	Timeout time.Duration

	// Retry controls backoff between attempts
	Retry RetryConfig
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		Timeout: 10 * time.Second,
		Retry:   DefaultRetryConfig(),
	}
}

// Client performs bounded, retried requests to an origin.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates a new origin client.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Client{
		httpClient: &http.Client{
			// deadlines are per attempt, via the request context
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		config: cfg,
		logger: logging.NewLogger(logging.ComponentOrigin),
	}
}

// Do performs req with retries. Transport failures that survive all attempts
// are returned as errors. A 5xx that survives all attempts is returned as the
// final response so the caller can inspect the status. The caller must close
// the response body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	host := req.URL.Host

	start := time.Now()
	defer func() {
		originRequestDuration.WithLabelValues(host).Observe(time.Since(start).Seconds())
	}()

	retry := c.config.Retry
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		// body cannot be replayed
		retry.MaxAttempts = 1
	}

	var resp *http.Response
	err := retryWithBackoff(ctx, retry, func(attempt int, last bool) (ErrorClass, error) {
		attemptReq, cancel, err := c.prepareAttempt(req, attempt)
		if err != nil {
			return "", err
		}

		r, err := c.httpClient.Do(attemptReq)
		if err != nil {
			cancel()
			class := classify(0, err)
			originRequestsTotal.WithLabelValues(host, "network_error").Inc()
			c.logger.Warn().Err(err).
				Str("url", req.URL.String()).
				Int("attempt", attempt).
				Msg("Origin request failed")
			return class, &OriginError{Class: class, Message: "transport failure", Err: err}
		}
		r.Body = &cancelOnClose{ReadCloser: r.Body, cancel: cancel}

		originRequestsTotal.WithLabelValues(host, strconv.Itoa(r.StatusCode)).Inc()

		class := classify(r.StatusCode, nil)
		if class == ErrorClassServer && !last {
			r.Body.Close()
			return class, &OriginError{StatusCode: r.StatusCode, Class: class, Message: r.Status}
		}

		resp = r
		return "", nil
	})
	if err != nil {
		return nil, err
	}

	return resp, nil
}

// prepareAttempt clones req with a per-attempt deadline.
func (c *Client) prepareAttempt(req *http.Request, attempt int) (*http.Request, context.CancelFunc, error) {
	ctx, cancel := context.WithTimeout(req.Context(), c.config.Timeout)
	attemptReq := req.Clone(ctx)
	if attempt > 1 && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			cancel()
			return nil, nil, fmt.Errorf("rewind request body: %w", err)
		}
		attemptReq.Body = body
	}
	return attemptReq, cancel, nil
}

// Get performs a GET request to rawURL with the given headers.
func (c *Client) Get(ctx context.Context, rawURL string, header http.Header) (*http.Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vv := range header {
		req.Header[k] = append([]string(nil), vv...)
	}

	return c.Do(req)
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// cancelOnClose releases the attempt context once the body is consumed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
