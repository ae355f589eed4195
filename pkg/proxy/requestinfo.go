package proxy

import (
	"context"
	"net/http"
	"strings"

	"github.com/Sternrassler/fontshield/pkg/fontcss"
)

type requestInfoKey struct{}

// RequestInfoFrom builds the fetcher's view of an inbound request: the
// User-Agent and the full URL as the browser saw it.
func RequestInfoFrom(r *http.Request) fontcss.RequestInfo {
	return fontcss.RequestInfo{
		URL:       requestScheme(r) + "://" + r.Host + r.URL.RequestURI(),
		UserAgent: r.Header.Get("User-Agent"),
	}
}

// requestScheme prefers X-Forwarded-Proto, set by TLS terminators in front
// of the proxy.
func requestScheme(r *http.Request) string {
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		proto, _, _ = strings.Cut(proto, ",")
		return strings.ToLower(strings.TrimSpace(proto))
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

func withRequestInfo(ctx context.Context, info fontcss.RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

func requestInfoFromContext(ctx context.Context) (fontcss.RequestInfo, bool) {
	info, ok := ctx.Value(requestInfoKey{}).(fontcss.RequestInfo)
	return info, ok
}
