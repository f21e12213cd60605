package retryafter

import (
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(noopWriter{}, nil))
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestParse_IntegerSeconds(t *testing.T) {
	d, ok := Parse("30", discardLogger())
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, d)
}

func TestParse_NegativeIntegerRejected(t *testing.T) {
	_, ok := Parse("-5", discardLogger())
	assert.False(t, ok)
}

func TestParse_HTTPDateInFuture(t *testing.T) {
	future := time.Now().Add(2 * time.Hour)
	raw := future.UTC().Format(http.TimeFormat)
	d, ok := Parse(raw, discardLogger())
	require.True(t, ok)
	assert.InDelta(t, 2*time.Hour, d, float64(5*time.Second))
}

func TestParse_HTTPDateInPastYieldsZero(t *testing.T) {
	past := time.Now().Add(-2 * time.Hour)
	raw := past.UTC().Format(http.TimeFormat)
	d, ok := Parse(raw, discardLogger())
	require.True(t, ok)
	assert.Equal(t, time.Duration(0), d)
}

func TestParse_SafetyCap(t *testing.T) {
	d, ok := Parse("999999999", discardLogger())
	require.True(t, ok)
	assert.Equal(t, SafetyCap, d)
	assert.LessOrEqual(t, d, SafetyCap)
}

func TestParse_Unparseable(t *testing.T) {
	_, ok := Parse("not-a-date-or-number", discardLogger())
	assert.False(t, ok)
}

func TestParse_Empty(t *testing.T) {
	_, ok := Parse("", discardLogger())
	assert.False(t, ok)
}
