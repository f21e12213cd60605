// Package redact is a best-effort PII redaction hook (spec.md §4.N's
// "out of scope" PII detection engine, supplemented per SPEC_FULL.md): a
// regex-based recorder.Writer that scrubs common PII shapes out of
// recorder.Event text fields before handing the batch to the next
// writer in the chain.
package redact

import (
	"regexp"

	"github.com/lunaroute/lunaroute/internal/recorder"
)

// Pattern names one PII shape this package scrubs.
type Pattern struct {
	Name string
	re   *regexp.Regexp
}

var defaultPatterns = []Pattern{
	{Name: "email", re: regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)},
	{Name: "phone", re: regexp.MustCompile(`\+?\d{1,3}[-.\s]?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`)},
	{Name: "ssn", re: regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{Name: "credit_card", re: regexp.MustCompile(`\b(?:\d[ -]?){13,16}\b`)},
	{Name: "ipv4", re: regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)},
}

// DefaultPatterns returns a copy of the built-in PII patterns.
func DefaultPatterns() []Pattern {
	out := make([]Pattern, len(defaultPatterns))
	copy(out, defaultPatterns)
	return out
}

// Writer wraps an inner recorder.Writer, scrubbing PII out of every
// event's text fields before forwarding the batch.
type Writer struct {
	inner    recorder.Writer
	patterns []Pattern
}

// Wrap returns a Writer that redacts with patterns (DefaultPatterns() if
// nil) before delegating to inner.
func Wrap(inner recorder.Writer, patterns []Pattern) *Writer {
	if patterns == nil {
		patterns = DefaultPatterns()
	}
	return &Writer{inner: inner, patterns: patterns}
}

// WriteEvents redacts a copy of each event's text-bearing fields, then
// delegates to the wrapped writer.
func (w *Writer) WriteEvents(events []recorder.Event) error {
	scrubbed := make([]recorder.Event, len(events))
	for i, e := range events {
		scrubbed[i] = w.scrub(e)
	}
	return w.inner.WriteEvents(scrubbed)
}

// Close closes the wrapped writer.
func (w *Writer) Close() error {
	return w.inner.Close()
}

func (w *Writer) scrub(e recorder.Event) recorder.Event {
	e.Error = w.Redact(e.Error)
	if len(e.Metadata) > 0 {
		meta := make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			meta[k] = w.Redact(v)
		}
		e.Metadata = meta
	}
	return e
}

// Redact replaces every match of every configured pattern in s with
// "[REDACTED:<name>]".
func (w *Writer) Redact(s string) string {
	for _, p := range w.patterns {
		s = p.re.ReplaceAllString(s, "[REDACTED:"+p.Name+"]")
	}
	return s
}

var _ recorder.Writer = (*Writer)(nil)
