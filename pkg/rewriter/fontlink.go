package rewriter

import (
	"context"
	"html"
	"strings"

	"github.com/Sternrassler/fontshield/pkg/fontcss"
)

// Fetcher resolves a stylesheet href for a browser request.
// *fontcss.Fetcher satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, href string, info fontcss.RequestInfo) (fontcss.Result, error)
}

// LinkTag is the tag FontLinkTransform operates on.
const LinkTag = "link"

// stylesheetHref returns href, falling back to data-href for lazy loaders.
func stylesheetHref(el Element) string {
	if href := el.Attr("href"); href != "" {
		return href
	}
	return el.Attr("data-href")
}

// IsFontLink reports whether el is a font stylesheet link worth inlining.
func IsFontLink(el Element) bool {
	return el.Tag == LinkTag &&
		el.Attr("rel") == "stylesheet" &&
		fontcss.IsStylesheetURL(stylesheetHref(el))
}

// FontLinkTransform replaces font stylesheet links with an inline <style>
// carrying the fetched CSS. Links that don't qualify, or whose stylesheet
// is unavailable, are left alone.
func FontLinkTransform(f Fetcher, info fontcss.RequestInfo) TransformFunc {
	return func(ctx context.Context, el Element) (string, bool, error) {
		if !IsFontLink(el) {
			return "", false, nil
		}

		res, err := f.Fetch(ctx, stylesheetHref(el), info)
		if err != nil {
			return "", false, err
		}
		if !res.Found || res.CSS == "" {
			return "", false, nil
		}

		media := el.Attr("media")
		if media == "" {
			media = "all"
		}
		return styleTag(el.Attr("id"), media, el.Attr("onload"), res.CSS), true, nil
	}
}

// NewFontLinkRewriter returns a rewriter inlining font stylesheets for the
// browser request described by info.
func NewFontLinkRewriter(f Fetcher, info fontcss.RequestInfo, cfg Config) *Rewriter {
	return New(LinkTag, IsFontLink, FontLinkTransform(f, info), cfg)
}

// styleTag builds the replacement element. Attribute values come decoded
// from the tokenizer and are re-escaped; css goes in raw.
func styleTag(id, media, onload, css string) string {
	var b strings.Builder
	b.Grow(len(css) + 64)
	b.WriteString(`<style id="`)
	b.WriteString(html.EscapeString(id))
	b.WriteString(`" media="`)
	b.WriteString(html.EscapeString(media))
	if onload != "" {
		b.WriteString(`" onload="`)
		b.WriteString(html.EscapeString(onload))
	}
	b.WriteString(`">`)
	b.WriteString(css)
	b.WriteString(`</style>`)
	return b.String()
}
