package recorder

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureWriter struct {
	mu     sync.Mutex
	events []Event
	closed bool
}

func (w *captureWriter) WriteEvents(events []Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = append(w.events, events...)
	return nil
}

func (w *captureWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *captureWriter) snapshot() []Event {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Event, len(w.events))
	copy(out, w.events)
	return out
}

func TestBufferedHook_RecordAndFlushOnClose(t *testing.T) {
	w := &captureWriter{}
	h := NewBufferedHook([]Writer{w}, Config{BufferSize: 16, BatchSize: 8, FlushInterval: time.Hour}, nil)

	h.Record(Event{Kind: EventRequestStart, RequestID: "req-1"})
	h.Record(Event{Kind: EventRequestEnd, RequestID: "req-1"})

	require.NoError(t, h.Close())
	assert.True(t, w.closed)
	assert.Len(t, w.snapshot(), 2)
}

func TestBufferedHook_FlushesOnBatchSize(t *testing.T) {
	w := &captureWriter{}
	h := NewBufferedHook([]Writer{w}, Config{BufferSize: 16, BatchSize: 2, FlushInterval: time.Hour}, nil)

	h.Record(Event{RequestID: "a"})
	h.Record(Event{RequestID: "b"})

	require.Eventually(t, func() bool { return len(w.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, h.Close())
}

func TestBufferedHook_FlushesOnInterval(t *testing.T) {
	w := &captureWriter{}
	h := NewBufferedHook([]Writer{w}, Config{BufferSize: 16, BatchSize: 100, FlushInterval: 10 * time.Millisecond}, nil)

	h.Record(Event{RequestID: "only"})

	require.Eventually(t, func() bool { return len(w.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, h.Close())
}

// blockingWriter stalls WriteEvents until release is closed, letting a test
// pin the hook's drain goroutine so the channel backs up deterministically.
type blockingWriter struct {
	release chan struct{}
}

func (w *blockingWriter) WriteEvents(events []Event) error {
	<-w.release
	return nil
}

func (w *blockingWriter) Close() error { return nil }

func TestBufferedHook_DropsWhenBufferFull(t *testing.T) {
	bw := &blockingWriter{release: make(chan struct{})}
	// BatchSize 1 means the very first Record triggers a flush that blocks
	// in the writer, pinning the drain goroutine; the next Record fills the
	// buffered channel (capacity 1), so every Record after that is dropped.
	h := NewBufferedHook([]Writer{bw}, Config{BufferSize: 1, BatchSize: 1, FlushInterval: time.Hour}, nil)

	h.Record(Event{RequestID: "first"})
	h.Record(Event{RequestID: "second"})
	h.Record(Event{RequestID: "third"})

	assert.GreaterOrEqual(t, h.Dropped(), int64(1))
	close(bw.release)
	require.NoError(t, h.Close())
}

func TestNoopHook_DiscardsEverything(t *testing.T) {
	var h Hook = NoopHook{}
	h.Record(Event{RequestID: "x"})
	assert.NoError(t, h.Close())
}
