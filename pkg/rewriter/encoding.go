package rewriter

import (
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// CanDecode reports whether a body with the given Content-Encoding can be
// decoded for rewriting.
func CanDecode(contentEncoding string) bool {
	switch normalizeEncoding(contentEncoding) {
	case "", "identity", "gzip", "x-gzip", "br", "deflate":
		return true
	default:
		return false
	}
}

// Decode wraps body in a decompressor for contentEncoding. Closing the
// result closes body.
func Decode(body io.ReadCloser, contentEncoding string) (io.ReadCloser, error) {
	switch enc := normalizeEncoding(contentEncoding); enc {
	case "", "identity":
		return body, nil
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(body)
		if err != nil {
			body.Close()
			return nil, fmt.Errorf("open gzip body: %w", err)
		}
		return &decodedBody{Reader: zr, decoder: zr, body: body}, nil
	case "br":
		return &decodedBody{Reader: brotli.NewReader(body), body: body}, nil
	case "deflate":
		zr, err := zlib.NewReader(body)
		if err != nil {
			body.Close()
			return nil, fmt.Errorf("open deflate body: %w", err)
		}
		return &decodedBody{Reader: zr, decoder: zr, body: body}, nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", enc)
	}
}

func normalizeEncoding(contentEncoding string) string {
	return strings.ToLower(strings.TrimSpace(contentEncoding))
}

// decodedBody closes both the decoder and the underlying body.
type decodedBody struct {
	io.Reader
	decoder io.Closer
	body    io.Closer
}

func (d *decodedBody) Close() error {
	if d.decoder != nil {
		d.decoder.Close()
	}
	return d.body.Close()
}
