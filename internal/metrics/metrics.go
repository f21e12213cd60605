// Package metrics is a minimal in-memory Prometheus-text-format sink
// (spec.md §6's `/metrics` endpoint). No complete pack repo imports
// prometheus/client_golang — see DESIGN.md's Open Question entry — so
// this stays on the standard library rather than faking a dependency.
// It satisfies health.Notifier directly and consumes recorder.Event
// through its own Writer method, so the same sink can sit on both the
// health-transition channel and the Recording Hook's writer list.
package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lunaroute/lunaroute/internal/health"
	"github.com/lunaroute/lunaroute/internal/recorder"
)

// Sink accumulates counters and histograms in memory and renders them as
// Prometheus text format 0.0.4 on demand.
type Sink struct {
	mu sync.Mutex

	requestsTotal     map[labelKey]int64
	requestErrors     map[labelKey]int64
	fallbacksTotal    map[labelKey]int64
	statusTransitions map[labelKey]int64
	latencyBuckets    map[labelKey]*histogram
}

type labelKey struct {
	provider string
	model    string
}

// New constructs an empty Sink.
func New() *Sink {
	return &Sink{
		requestsTotal:     make(map[labelKey]int64),
		requestErrors:     make(map[labelKey]int64),
		fallbacksTotal:    make(map[labelKey]int64),
		statusTransitions: make(map[labelKey]int64),
		latencyBuckets:    make(map[labelKey]*histogram),
	}
}

// NotifyStatusChange implements health.Notifier.
func (s *Sink) NotifyStatusChange(change health.StatusChange) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusTransitions[labelKey{provider: change.Provider}]++
}

// WriteEvents implements recorder.Writer, letting a Sink sit directly in
// a recorder.BufferedHook's writer list.
func (s *Sink) WriteEvents(events []recorder.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range events {
		key := labelKey{provider: e.Provider, model: e.Model}
		switch e.Kind {
		case recorder.EventRequestEnd:
			s.requestsTotal[key]++
			if e.Error != "" {
				s.requestErrors[key]++
			}
			if e.Latency > 0 {
				s.latencyFor(key).observe(e.Latency)
			}
		case recorder.EventFallback:
			s.fallbacksTotal[key]++
		}
	}
	return nil
}

// Close implements recorder.Writer; the sink holds no external resource.
func (s *Sink) Close() error { return nil }

func (s *Sink) latencyFor(key labelKey) *histogram {
	h, ok := s.latencyBuckets[key]
	if !ok {
		h = newHistogram()
		s.latencyBuckets[key] = h
	}
	return h
}

// histogram is a small fixed-bucket latency histogram, enough to render
// Prometheus `_bucket`/`_sum`/`_count` lines without a client library.
type histogram struct {
	bucketBoundsMs []float64
	counts         []int64
	sum            float64
	count          int64
}

func newHistogram() *histogram {
	bounds := []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000}
	return &histogram{bucketBoundsMs: bounds, counts: make([]int64, len(bounds))}
}

func (h *histogram) observe(d time.Duration) {
	ms := float64(d.Milliseconds())
	h.sum += ms
	h.count++
	for i, bound := range h.bucketBoundsMs {
		if ms <= bound {
			h.counts[i]++
		}
	}
}

// Render produces the full `/metrics` body in Prometheus text format
// (`text/plain; version=0.0.4`, per spec.md §6).
func (s *Sink) Render() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	b.WriteString("# HELP lunaroute_requests_total Total requests handled per provider/model.\n")
	b.WriteString("# TYPE lunaroute_requests_total counter\n")
	writeCounter(&b, "lunaroute_requests_total", s.requestsTotal)

	b.WriteString("# HELP lunaroute_request_errors_total Total failed requests per provider/model.\n")
	b.WriteString("# TYPE lunaroute_request_errors_total counter\n")
	writeCounter(&b, "lunaroute_request_errors_total", s.requestErrors)

	b.WriteString("# HELP lunaroute_fallbacks_total Total fallback attempts per provider/model.\n")
	b.WriteString("# TYPE lunaroute_fallbacks_total counter\n")
	writeCounter(&b, "lunaroute_fallbacks_total", s.fallbacksTotal)

	b.WriteString("# HELP lunaroute_health_transitions_total Provider health status transitions.\n")
	b.WriteString("# TYPE lunaroute_health_transitions_total counter\n")
	writeCounter(&b, "lunaroute_health_transitions_total", s.statusTransitions)

	b.WriteString("# HELP lunaroute_request_latency_ms Request latency in milliseconds.\n")
	b.WriteString("# TYPE lunaroute_request_latency_ms histogram\n")
	for _, key := range sortedKeys(s.latencyBuckets) {
		h := s.latencyBuckets[key]
		labels := formatLabels(key)
		for i, bound := range h.bucketBoundsMs {
			fmt.Fprintf(&b, "lunaroute_request_latency_ms_bucket{%sle=\"%g\"} %d\n", labelsWithComma(labels), bound, h.counts[i])
		}
		fmt.Fprintf(&b, "lunaroute_request_latency_ms_bucket{%sle=\"+Inf\"} %d\n", labelsWithComma(labels), h.count)
		fmt.Fprintf(&b, "lunaroute_request_latency_ms_sum{%s} %g\n", labels, h.sum)
		fmt.Fprintf(&b, "lunaroute_request_latency_ms_count{%s} %d\n", labels, h.count)
	}

	return b.String()
}

func writeCounter(b *strings.Builder, name string, data map[labelKey]int64) {
	for _, key := range sortedKeys(data) {
		fmt.Fprintf(b, "%s{%s} %d\n", name, formatLabels(key), data[key])
	}
}

func formatLabels(key labelKey) string {
	var parts []string
	if key.provider != "" {
		parts = append(parts, fmt.Sprintf("provider=%q", key.provider))
	}
	if key.model != "" {
		parts = append(parts, fmt.Sprintf("model=%q", key.model))
	}
	return strings.Join(parts, ",")
}

func labelsWithComma(labels string) string {
	if labels == "" {
		return ""
	}
	return labels + ","
}

func sortedKeys[V any](m map[labelKey]V) []labelKey {
	keys := make([]labelKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].provider != keys[j].provider {
			return keys[i].provider < keys[j].provider
		}
		return keys[i].model < keys[j].model
	})
	return keys
}

var _ health.Notifier = (*Sink)(nil)
var _ recorder.Writer = (*Sink)(nil)
