// Package sqlite is a minimal recorder.Writer storing events in a local
// SQLite database via mattn/go-sqlite3, the pack's SQL-session-store
// convention. It is a reference adapter, not a query/reporting layer.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lunaroute/lunaroute/internal/recorder"
)

const schema = `
CREATE TABLE IF NOT EXISTS recorded_events (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	kind              TEXT NOT NULL,
	session_id        TEXT,
	request_id        TEXT,
	ts                DATETIME NOT NULL,
	provider          TEXT,
	model             TEXT,
	prompt_tokens     INTEGER,
	completion_tokens INTEGER,
	ttft_ms           INTEGER,
	latency_ms        INTEGER,
	finish_reason     TEXT,
	error             TEXT
);`

// Writer persists events into a single SQLite table.
type Writer struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and
// ensures the recorded_events table exists.
func Open(path string) (*Writer, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: create schema: %w", err)
	}
	return &Writer{db: db}, nil
}

// WriteEvents inserts every event inside a single transaction.
func (w *Writer) WriteEvents(events []recorder.Event) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO recorded_events
		(kind, session_id, request_id, ts, provider, model, prompt_tokens, completion_tokens, ttft_ms, latency_ms, finish_reason, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		_, err := stmt.Exec(
			string(e.Kind), e.SessionID, e.RequestID, e.Timestamp,
			e.Provider, e.Model, e.PromptTokens, e.CompletionTokens,
			e.TTFT.Milliseconds(), e.Latency.Milliseconds(), e.FinishReason, e.Error,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite: insert event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit tx: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (w *Writer) Close() error {
	return w.db.Close()
}

var _ recorder.Writer = (*Writer)(nil)
