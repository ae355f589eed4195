package rewriter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/html"

	"github.com/Sternrassler/fontshield/pkg/logging"
)

// Element is a matched start or self-closing tag.
type Element struct {
	// Tag is the lower-cased tag name
	Tag string

	// Attrs holds attribute values keyed by lower-cased name. The first
	// occurrence of a repeated attribute wins.
	Attrs map[string]string

	// Raw is the tag exactly as it appeared in the source
	Raw string
}

// Attr returns the named attribute or "".
func (e Element) Attr(name string) string {
	return e.Attrs[name]
}

// MatchFunc selects the elements handed to a TransformFunc.
type MatchFunc func(el Element) bool

// TransformFunc computes the replacement for el. With ok false the element
// is emitted unchanged.
type TransformFunc func(ctx context.Context, el Element) (replacement string, ok bool, err error)

// Config holds rewriter settings.
type Config struct {
	// MaxConcurrency bounds the transforms running for one document
	MaxConcurrency int

	// QueueSize bounds the segments held while waiting on a transform;
	// the tokenizer blocks when it is full
	QueueSize int

	// FlushThreshold is how many bytes of unmatched content are gathered
	// into one segment before it is queued
	FlushThreshold int
}

// DefaultConfig returns the default rewriter configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 8,
		QueueSize:      256,
		FlushThreshold: 4 << 10,
	}
}

// Rewriter replaces every start or self-closing tag named tag that match
// selects with the result of transform.
type Rewriter struct {
	tag       string
	match     MatchFunc
	transform TransformFunc
	config    Config
	logger    zerolog.Logger
}

// New creates a rewriter. A nil match selects every tag of the given name.
func New(tag string, match MatchFunc, transform TransformFunc, cfg Config) *Rewriter {
	if transform == nil {
		panic("rewriter: transform is required")
	}
	defaults := DefaultConfig()
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = defaults.MaxConcurrency
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaults.QueueSize
	}
	if cfg.FlushThreshold <= 0 {
		cfg.FlushThreshold = defaults.FlushThreshold
	}
	if match == nil {
		match = func(Element) bool { return true }
	}
	return &Rewriter{
		tag:       tag,
		match:     match,
		transform: transform,
		config:    cfg,
		logger:    logging.NewLogger(logging.ComponentRewriter),
	}
}

// segment is one contiguous piece of output. Static segments are created
// resolved; element segments resolve when their transform finishes.
type segment struct {
	out  []byte
	done chan struct{}
}

func resolved(b []byte) *segment {
	s := &segment{out: b, done: make(chan struct{})}
	close(s.done)
	return s
}

// job is a matched element waiting for a worker.
type job struct {
	el  Element
	seg *segment
}

// Rewrite copies src to dst, replacing matched elements. It returns the
// first read or write error; transform failures are not errors.
func (r *Rewriter) Rewrite(ctx context.Context, dst io.Writer, src io.Reader) error {
	start := time.Now()

	order := make(chan *segment, r.config.QueueSize)
	jobs := make(chan job)

	// Start worker pool
	var workers sync.WaitGroup
	for i := 0; i < r.config.MaxConcurrency; i++ {
		workers.Add(1)
		go r.worker(ctx, jobs, &workers)
	}

	// The writer drains segments in order. After a write error it keeps
	// draining so the tokenizer and workers never block on it.
	writeErr := make(chan error, 1)
	go func() {
		var werr error
		for seg := range order {
			<-seg.done
			if werr != nil {
				continue
			}
			if _, err := dst.Write(seg.out); err != nil {
				werr = fmt.Errorf("write output: %w", err)
			}
		}
		writeErr <- werr
	}()

	readErr := r.tokenize(src, order, jobs)

	close(jobs)
	workers.Wait()
	close(order)
	werr := <-writeErr

	err := readErr
	if err == nil {
		err = werr
	}

	result := "ok"
	if err != nil {
		result = "error"
	}
	documentsTotal.WithLabelValues(result).Inc()
	r.logger.Debug().
		Dur("duration", time.Since(start)).
		Err(err).
		Msg("Document rewritten")

	return err
}

// tokenize splits src into segments and dispatches matched elements.
func (r *Rewriter) tokenize(src io.Reader, order chan<- *segment, jobs chan<- job) error {
	z := html.NewTokenizer(src)
	var pending bytes.Buffer

	flush := func() {
		if pending.Len() == 0 {
			return
		}
		order <- resolved(bytes.Clone(pending.Bytes()))
		pending.Reset()
	}

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			err := z.Err()
			if errors.Is(err, io.EOF) {
				// A tag cut off by EOF is still source text.
				pending.Write(z.Raw())
			}
			flush()
			if !errors.Is(err, io.EOF) {
				return fmt.Errorf("read input: %w", err)
			}
			return nil
		}

		raw := z.Raw()
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			pending.Write(raw)
			if pending.Len() >= r.config.FlushThreshold {
				flush()
			}
			continue
		}

		rawCopy := string(raw)
		name, hasAttr := z.TagName()
		if string(name) != r.tag {
			pending.WriteString(rawCopy)
			continue
		}

		el := Element{Tag: r.tag, Attrs: readAttrs(z, hasAttr), Raw: rawCopy}
		if !r.match(el) {
			pending.WriteString(rawCopy)
			continue
		}

		flush()
		seg := &segment{done: make(chan struct{})}
		order <- seg
		jobs <- job{el: el, seg: seg}
	}
}

func readAttrs(z *html.Tokenizer, more bool) map[string]string {
	attrs := make(map[string]string)
	for more {
		var key, val []byte
		key, val, more = z.TagAttr()
		k := string(key)
		if _, seen := attrs[k]; !seen {
			attrs[k] = string(val)
		}
	}
	return attrs
}

// worker resolves segments for matched elements.
func (r *Rewriter) worker(ctx context.Context, jobs <-chan job, wg *sync.WaitGroup) {
	defer wg.Done()

	for j := range jobs {
		j.seg.out = []byte(j.el.Raw)

		replacement, ok, err := r.safeTransform(ctx, j.el)
		switch {
		case err != nil:
			elementsTotal.WithLabelValues("failed").Inc()
			r.logger.Error().
				Err(err).
				Str("element", j.el.Raw).
				Msg("Transform failed, element left unchanged")
		case ok:
			elementsTotal.WithLabelValues("replaced").Inc()
			j.seg.out = []byte(replacement)
		default:
			elementsTotal.WithLabelValues("unchanged").Inc()
		}

		close(j.seg.done)
	}
}

// safeTransform runs the transform, turning a panic into an error.
func (r *Rewriter) safeTransform(ctx context.Context, el Element) (replacement string, ok bool, err error) {
	start := time.Now()
	defer func() {
		transformDuration.Observe(time.Since(start).Seconds())
		if p := recover(); p != nil {
			r.logger.Debug().Bytes("stack", debug.Stack()).Msg("Transform panic stack")
			replacement, ok, err = "", false, fmt.Errorf("transform panic: %v", p)
		}
	}()

	return r.transform(ctx, el)
}
