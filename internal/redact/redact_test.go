package redact

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lunaroute/lunaroute/internal/recorder"
)

type captureWriter struct {
	events []recorder.Event
	closed bool
}

func (w *captureWriter) WriteEvents(events []recorder.Event) error {
	w.events = append(w.events, events...)
	return nil
}

func (w *captureWriter) Close() error {
	w.closed = true
	return nil
}

func TestWriter_RedactsEmailInErrorField(t *testing.T) {
	inner := &captureWriter{}
	w := Wrap(inner, nil)

	require.NoError(t, w.WriteEvents([]recorder.Event{
		{RequestID: "req-1", Error: "upstream rejected request from user@example.com"},
	}))

	assert.Contains(t, inner.events[0].Error, "[REDACTED:email]")
	assert.NotContains(t, inner.events[0].Error, "user@example.com")
}

func TestWriter_RedactsMetadataValues(t *testing.T) {
	inner := &captureWriter{}
	w := Wrap(inner, nil)

	require.NoError(t, w.WriteEvents([]recorder.Event{
		{RequestID: "req-1", Metadata: map[string]string{"note": "ssn 123-45-6789 on file"}},
	}))

	assert.Contains(t, inner.events[0].Metadata["note"], "[REDACTED:ssn]")
}

func TestWriter_LeavesCleanTextUntouched(t *testing.T) {
	inner := &captureWriter{}
	w := Wrap(inner, nil)

	require.NoError(t, w.WriteEvents([]recorder.Event{{RequestID: "req-1", Error: "rate limited"}}))
	assert.Equal(t, "rate limited", inner.events[0].Error)
}

func TestWriter_CustomPatternsOverrideDefaults(t *testing.T) {
	inner := &captureWriter{}
	w := Wrap(inner, []Pattern{{Name: "secretword", re: regexp.MustCompile(`secret`)}})

	require.NoError(t, w.WriteEvents([]recorder.Event{{Error: "this is secret"}}))
	assert.Equal(t, "this is [REDACTED:secretword]", inner.events[0].Error)
}

func TestWriter_CloseDelegatesToInner(t *testing.T) {
	inner := &captureWriter{}
	w := Wrap(inner, nil)
	require.NoError(t, w.Close())
	assert.True(t, inner.closed)
}
