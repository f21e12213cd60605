// Package recorder implements the Recording Hook (spec.md §4.N): a
// fire-and-forget side channel the core emits lifecycle events onto.
// Writers live outside the core and are wired in at startup.
package recorder

import (
	"log/slog"
	"sync/atomic"
	"time"
)

// EventKind labels what stage of a request's lifecycle an Event describes.
type EventKind string

const (
	EventRequestStart EventKind = "request_start"
	EventRequestEnd   EventKind = "request_end"
	EventFallback     EventKind = "fallback"
	EventStreamChunk  EventKind = "stream_chunk"
)

// Event is the opaque value passed to Hook.Record, carrying at least the
// fields spec.md §4.N requires of any recorded event.
type Event struct {
	Kind         EventKind
	SessionID    string
	RequestID    string
	Timestamp    time.Time
	Provider     string
	Model        string
	PromptTokens int
	CompletionTokens int
	TTFT         time.Duration
	Latency      time.Duration
	FinishReason string
	Error        string
	Metadata     map[string]string
}

// Hook is the side-channel the core enqueues events onto. Record must never
// block the caller; a full buffer drops the event.
type Hook interface {
	Record(event Event)
	Close() error
}

// Writer persists a batch of events. Writers run off the hook's own
// goroutine, never on the request path.
type Writer interface {
	WriteEvents(events []Event) error
	Close() error
}

// Config tunes the buffered hook.
type Config struct {
	// BufferSize bounds the number of events the hook can hold before
	// Record starts dropping. Default 1024 if zero.
	BufferSize int
	// BatchSize is the max number of events flushed to writers at once.
	// Default 32 if zero.
	BatchSize int
	// FlushInterval bounds how long an under-full batch waits before
	// flushing anyway. Default 1s if zero.
	FlushInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.BufferSize <= 0 {
		c.BufferSize = 1024
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 32
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = time.Second
	}
	return c
}

// BufferedHook is the one Hook implementation the core uses: a buffered
// channel drained by a single background goroutine that batches events to
// every configured writer.
type BufferedHook struct {
	events     chan Event
	writers    []Writer
	logger     *slog.Logger
	dropped    atomic.Int64
	done       chan struct{}
	closedOnce chan struct{}
}

// NewBufferedHook starts the background worker and returns a ready Hook.
// Call Close to drain and stop it.
func NewBufferedHook(writers []Writer, cfg Config, logger *slog.Logger) *BufferedHook {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	h := &BufferedHook{
		events:     make(chan Event, cfg.BufferSize),
		writers:    writers,
		logger:     logger,
		done:       make(chan struct{}),
		closedOnce: make(chan struct{}),
	}
	go h.run(cfg)
	return h
}

// Record enqueues event without blocking. If the buffer is full the event
// is dropped, the dropped-events counter incremented, and a warning logged.
func (h *BufferedHook) Record(event Event) {
	select {
	case h.events <- event:
	default:
		n := h.dropped.Add(1)
		h.logger.Warn("recorder buffer full, dropping event",
			"kind", event.Kind, "request_id", event.RequestID, "dropped_total", n)
	}
}

// Dropped returns the cumulative number of events dropped for a full buffer.
func (h *BufferedHook) Dropped() int64 {
	return h.dropped.Load()
}

// Close stops accepting new flush ticks, drains any buffered events through
// the writers, and closes each writer.
func (h *BufferedHook) Close() error {
	close(h.done)
	<-h.closedOnce
	var firstErr error
	for _, w := range h.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *BufferedHook) run(cfg Config) {
	defer close(h.closedOnce)

	buf := make([]Event, 0, cfg.BatchSize)
	ticker := time.NewTicker(cfg.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(buf) == 0 {
			return
		}
		h.flushTo(buf)
		buf = buf[:0]
	}

	for {
		select {
		case e := <-h.events:
			buf = append(buf, e)
			if len(buf) >= cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-h.done:
			for {
				select {
				case e := <-h.events:
					buf = append(buf, e)
				default:
					flush()
					return
				}
			}
		}
	}
}

func (h *BufferedHook) flushTo(batch []Event) {
	events := make([]Event, len(batch))
	copy(events, batch)
	for _, w := range h.writers {
		if err := w.WriteEvents(events); err != nil {
			h.logger.Error("recorder writer failed", "error", err)
		}
	}
}

// NoopHook discards every event. Used when recording is disabled.
type NoopHook struct{}

func (NoopHook) Record(Event) {}
func (NoopHook) Close() error { return nil }
