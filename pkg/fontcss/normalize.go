package fontcss

import (
	"net/url"
	"regexp"
	"strings"
)

const (
	// StylesheetHost serves the font stylesheets that get inlined.
	StylesheetHost = "fonts.googleapis.com"

	// FontBinaryHost serves the font files referenced by the stylesheets.
	FontBinaryHost = "fonts.gstatic.com"

	// ProxyPrefix is the local path font-binary URLs are rewritten to.
	ProxyPrefix = "/" + FontBinaryHost + "/"

	// stylesheetMarker identifies a stylesheet href worth inlining.
	stylesheetMarker = "//" + StylesheetHost
)

var (
	whitespace   = regexp.MustCompile(`\s`)
	fontBinaryRe = regexp.MustCompile(`(?i)(https?:)?//fonts\.gstatic\.com/`)
)

// NormalizeURL canonicalizes a stylesheet href as found in markup. It is pure
// and idempotent.
func NormalizeURL(raw string) string {
	// A single pass can expose a new match (e.g. "&amp;#038;" or a "[]}"
	// followed by whitespace), so run to a fixed point. Every pass except the
	// one adding the scheme shrinks the string.
	u := raw
	for {
		next := normalizeOnce(u)
		if next == u {
			return u
		}
		u = next
	}
}

func normalizeOnce(u string) string {
	if strings.HasPrefix(u, "/") {
		u = "https:" + u
	}

	// WordPress and friends emit several ampersand encodings; without
	// decoding them parameters like display=swap are lost.
	u = strings.ReplaceAll(u, "&#038;", "&")
	u = strings.ReplaceAll(u, "&amp;", "&")

	u = strings.TrimSuffix(u, "[]}")

	return whitespace.ReplaceAllString(u, "")
}

// IsStylesheetURL reports whether href points at the font stylesheet host.
func IsStylesheetURL(href string) bool {
	return href != "" && strings.Contains(href, stylesheetMarker)
}

// resolveURL fills in the stylesheet host for host-less https URLs, which is
// what a root-relative href becomes after NormalizeURL.
func resolveURL(normalized string) string {
	u, err := url.Parse(normalized)
	if err != nil || u.Host != "" || u.Scheme != "https" || u.Opaque != "" {
		return normalized
	}
	u.Host = StylesheetHost
	return u.String()
}

// RewriteFontURLs routes every absolute or protocol-relative font-binary URL
// in css through ProxyPrefix. It is idempotent.
func RewriteFontURLs(css string) string {
	return fontBinaryRe.ReplaceAllLiteralString(css, ProxyPrefix)
}
