// Package streammetrics implements the Streaming Metrics Tracker (spec.md
// §4.J): per-stream TTFT, chunk latency distribution, and accumulated
// text, all under hard memory bounds, plus an approximate observability
// token count via the teacher's tiktoken-go dependency (never used for
// billing — see DESIGN.md).
package streammetrics

import (
	"sort"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"github.com/lunaroute/lunaroute/internal/normalized"
)

// MaxLatencySamples bounds the per-chunk inter-arrival latency slice.
const MaxLatencySamples = 10000

// MaxAccumulatedText bounds the captured response text, in bytes.
const MaxAccumulatedText = 1 << 20 // 1 MB

// Tracker accumulates one stream's observations from the moment the
// upstream call is issued through finalization.
type Tracker struct {
	callStart   time.Time
	firstDelta  time.Time
	ttft        time.Duration
	gotFirst    bool
	lastChunk   time.Time
	chunkCount  int
	latencies   []time.Duration
	latencyOverflow int
	text        []byte
	textOverflow bool
	model       string
	finishReason normalized.FinishReason
	now         func() time.Time
}

// New starts a Tracker at the moment the upstream call is issued.
func New() *Tracker {
	return newAt(time.Now())
}

func newAt(start time.Time) *Tracker {
	return &Tracker{callStart: start, latencies: make([]time.Duration, 0, 64), now: time.Now}
}

// Observe records one decoded stream event against the tracker's clock.
func (t *Tracker) Observe(event normalized.StreamEvent) {
	now := t.now()

	switch event.Kind {
	case normalized.StreamStart:
		t.model = event.Model
	case normalized.StreamDelta, normalized.StreamToolCallDelta:
		t.recordChunk(now)
		if event.Kind == normalized.StreamDelta {
			t.appendText(event.Delta.Content)
		}
	case normalized.StreamEnd:
		t.finishReason = event.FinishReason
	}
}

func (t *Tracker) recordChunk(now time.Time) {
	if !t.gotFirst {
		t.gotFirst = true
		t.firstDelta = now
		t.ttft = now.Sub(t.callStart)
	} else {
		latency := now.Sub(t.lastChunk)
		if len(t.latencies) < MaxLatencySamples {
			t.latencies = append(t.latencies, latency)
		} else {
			t.latencyOverflow++
		}
	}
	t.lastChunk = now
	t.chunkCount++
}

func (t *Tracker) appendText(s string) {
	if t.textOverflow {
		return
	}
	remaining := MaxAccumulatedText - len(t.text)
	if remaining <= 0 {
		t.textOverflow = true
		return
	}
	if len(s) > remaining {
		t.text = append(t.text, s[:remaining]...)
		t.textOverflow = true
		return
	}
	t.text = append(t.text, s...)
}

// LatencyStats is the rank-based distribution over captured chunk
// inter-arrival latencies.
type LatencyStats struct {
	P50, P95, P99 time.Duration
	Min, Max      time.Duration
	Mean          time.Duration
	Count         int
}

func percentile(sorted []time.Duration, q float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * q)
	return sorted[idx]
}

func computeLatencyStats(latencies []time.Duration) LatencyStats {
	if len(latencies) == 0 {
		return LatencyStats{}
	}
	sorted := make([]time.Duration, len(latencies))
	copy(sorted, latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var total time.Duration
	for _, d := range sorted {
		total += d
	}

	return LatencyStats{
		P50:   percentile(sorted, 0.50),
		P95:   percentile(sorted, 0.95),
		P99:   percentile(sorted, 0.99),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		Mean:  total / time.Duration(len(sorted)),
		Count: len(sorted),
	}
}

// Summary is the finalized view of a completed stream.
type Summary struct {
	TTFT             time.Duration
	ChunkCount       int
	Latency          LatencyStats
	LatencyOverflow  int
	Text             string
	TextOverflow     bool
	Model            string
	FinishReason     normalized.FinishReason
	ApproxTokenCount int
}

// Finalize computes the summary over everything observed so far. It does
// not mutate the tracker and may be called once a terminal event has been
// observed.
func (t *Tracker) Finalize() Summary {
	return Summary{
		TTFT:             t.ttft,
		ChunkCount:       t.chunkCount,
		Latency:          computeLatencyStats(t.latencies),
		LatencyOverflow:  t.latencyOverflow,
		Text:             string(t.text),
		TextOverflow:     t.textOverflow,
		Model:            t.model,
		FinishReason:     t.finishReason,
		ApproxTokenCount: approxTokenCount(string(t.text)),
	}
}

// approxTokenCount gives an observability-only estimate via cl100k_base;
// never used for billing (providers' own usage events are authoritative).
func approxTokenCount(text string) int {
	if text == "" {
		return 0
	}
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return 0
	}
	return len(enc.Encode(text, nil, nil))
}
