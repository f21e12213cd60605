// Package sse provides a dialect-agnostic Server-Sent-Events reader and
// writer, shared by both translation adapters instead of each hand-rolling
// its own line scanner (spec.md §4.C streaming operations).
package sse

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Event is one parsed SSE frame.
type Event struct {
	Event string // optional "event:" field
	Data  string // joined "data:" lines, newline-separated
	ID    string
	Retry int
}

// Parser reads SSE frames from an underlying stream, one at a time.
type Parser struct {
	scanner *bufio.Scanner
}

// NewParser wraps r in an SSE frame reader.
func NewParser(r io.Reader) *Parser {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Parser{scanner: s}
}

// Next returns the next frame, or io.EOF when the stream ends cleanly.
// Comment lines (leading ':') are skipped transparently.
func (p *Parser) Next() (Event, error) {
	var event Event
	var dataLines []string
	sawAny := false

	for p.scanner.Scan() {
		line := p.scanner.Text()

		if line == "" {
			if sawAny {
				event.Data = strings.Join(dataLines, "\n")
				return event, nil
			}
			continue
		}

		if strings.HasPrefix(line, ":") {
			continue
		}
		sawAny = true

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "event":
			event.Event = value
		case "data":
			dataLines = append(dataLines, value)
		case "id":
			event.ID = value
		case "retry":
			if n, err := strconv.Atoi(value); err == nil {
				event.Retry = n
			}
		}
	}

	if err := p.scanner.Err(); err != nil {
		return Event{}, err
	}
	if sawAny {
		event.Data = strings.Join(dataLines, "\n")
		return event, nil
	}
	return Event{}, io.EOF
}

// FormatData writes the minimal "data: <payload>\n\n" frame used by the
// OpenAI dialect.
func FormatData(payload string) []byte {
	return []byte(fmt.Sprintf("data: %s\n\n", payload))
}

// FormatTyped writes an event-typed frame used by the Anthropic dialect:
// "event: <name>\ndata: <payload>\n\n".
func FormatTyped(eventType, payload string) []byte {
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", eventType, payload))
}

// Done is the OpenAI dialect's literal stream terminator.
const Done = "data: [DONE]\n\n"
