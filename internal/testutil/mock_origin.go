// Package testutil provides testing utilities for fontshield.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"time"
)

// SampleStylesheet is a Google Fonts style response referencing the font host.
const SampleStylesheet = `/* latin */
@font-face {
  font-family: 'Roboto';
  font-style: normal;
  font-weight: 400;
  src: url(https://fonts.gstatic.com/s/roboto/v30/KFOmCnqEu92Fr1Mu4mxK.woff2) format('woff2');
  unicode-range: U+0000-00FF;
}
`

// SampleFont is the body served for font binary paths.
const SampleFont = "wOF2\x00\x01\x00\x00fake-font"

// MockResponse defines the behavior for a mock origin response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockOrigin is one httptest server standing in for the site origin, the
// stylesheet host and the font host. Requests for /css and /css2 count as
// stylesheet fetches, /s/ paths serve font binaries, and everything else is
// looked up among the configured pages.
type MockOrigin struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount         int
	StylesheetCount      int
	LastRequestHeader    http.Header
	LastStylesheetHeader http.Header
}

// NewMockOrigin creates a new mock origin server.
func NewMockOrigin() *MockOrigin {
	mock := &MockOrigin{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		if isStylesheetPath(r.URL.Path) {
			mock.StylesheetCount++
			mock.LastStylesheetHeader = r.Header.Clone()
		}
		mock.mu.Unlock()

		// Exact path+query handlers win over path handlers
		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.RequestURI()]
		if !exists {
			handler, exists = mock.handlers[r.URL.Path]
		}
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockOrigin) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockOrigin) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockOrigin) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.StylesheetCount = 0
	m.LastRequestHeader = nil
	m.LastStylesheetHeader = nil
}

// SetHandler sets a custom handler for a path, or for a path with query.
func (m *MockOrigin) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockOrigin) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetPage serves html at path.
func (m *MockOrigin) SetPage(path, html string) {
	m.SetResponse(path, NewHTMLResponse(html))
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockOrigin) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetStylesheetCount returns the number of stylesheet requests.
func (m *MockOrigin) GetStylesheetCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.StylesheetCount
}

// GetLastStylesheetHeader returns the headers of the last stylesheet request.
func (m *MockOrigin) GetLastStylesheetHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastStylesheetHeader.Clone()
}

// Transport returns a RoundTripper sending every request to the mock,
// whatever its host. Use it to point absolute font-host URLs at the mock.
func (m *MockOrigin) Transport() http.RoundTripper {
	target, _ := url.Parse(m.server.URL)
	return &redirectTransport{target: target, base: m.server.Client().Transport}
}

// Client returns an http.Client using Transport.
func (m *MockOrigin) Client() *http.Client {
	return &http.Client{Transport: m.Transport()}
}

type redirectTransport struct {
	target *url.URL
	base   http.RoundTripper
}

func (t *redirectTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.URL.Scheme = t.target.Scheme
	out.URL.Host = t.target.Host
	out.Host = t.target.Host
	return t.base.RoundTrip(out)
}

func isStylesheetPath(path string) bool {
	return path == "/css" || path == "/css2"
}

// defaultHandler serves the sample stylesheet and font, 404 otherwise.
func (m *MockOrigin) defaultHandler(w http.ResponseWriter, r *http.Request) {
	switch {
	case isStylesheetPath(r.URL.Path):
		w.Header().Set("Content-Type", "text/css; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(SampleStylesheet))
	case strings.HasPrefix(r.URL.Path, "/s/"):
		w.Header().Set("Content-Type", "font/woff2")
		w.Header().Set("Cache-Control", "public, max-age=31536000")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(SampleFont))
	default:
		http.NotFound(w, r)
	}
}

// NewHTMLResponse creates a 200 OK HTML page response.
func NewHTMLResponse(html string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       html,
		Headers: map[string]string{
			"Content-Type": "text/html; charset=utf-8",
		},
	}
}

// NewStylesheetResponse creates a 200 OK stylesheet response.
func NewStylesheetResponse(css string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       css,
		Headers: map[string]string{
			"Content-Type": "text/css; charset=utf-8",
		},
	}
}

// NewNotFoundResponse creates a 404 Not Found response.
func NewNotFoundResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       "Not Found",
		Headers: map[string]string{
			"Content-Type": "text/plain; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       "Internal Server Error",
	}
}

// FontPage returns a minimal page linking the given stylesheet href.
func FontPage(href string) string {
	return `<!DOCTYPE html><html><head><title>t</title>` +
		`<link rel="stylesheet" id="fonts-css" href="` + href + `">` +
		`</head><body><p>Hello</p></body></html>`
}
