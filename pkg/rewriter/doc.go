// Package rewriter streams HTML through a tokenizer and replaces selected
// elements with the output of asynchronous transforms.
//
// Matching elements are transformed in parallel by a bounded worker pool,
// while the document is emitted strictly in source order: a segment is
// written once every segment before it has resolved. Content that precedes
// the first pending element keeps streaming.
//
// A transform that errors or panics leaves its element untouched; it never
// fails the document.
package rewriter
