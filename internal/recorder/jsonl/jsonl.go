// Package jsonl is a minimal recorder.Writer that appends one JSON object
// per line to a file, mirroring the line-delimited event log the teacher
// corpus uses for session history.
package jsonl

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/lunaroute/lunaroute/internal/recorder"
)

// Writer appends newline-delimited JSON encodings of recorder.Event to a
// single append-only file.
type Writer struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// Open creates (or appends to) the file at path and returns a ready Writer.
func Open(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("jsonl: open %s: %w", path, err)
	}
	return &Writer{file: f, enc: json.NewEncoder(f)}, nil
}

// WriteEvents appends each event as its own line.
func (w *Writer) WriteEvents(events []recorder.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, e := range events {
		if err := w.enc.Encode(e); err != nil {
			return fmt.Errorf("jsonl: encode event: %w", err)
		}
	}
	return nil
}

// Close flushes the underlying file to disk and closes it.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("jsonl: sync: %w", err)
	}
	return w.file.Close()
}

var _ recorder.Writer = (*Writer)(nil)
