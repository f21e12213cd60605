package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	changes []StatusChange
}

func (n *recordingNotifier) NotifyStatusChange(c StatusChange) {
	n.changes = append(n.changes, c)
}

func TestMonitor_UnknownBeforeMinRequests(t *testing.T) {
	m := New(DefaultThresholds(), nil)
	m.Record("openai", Success)
	m.Record("openai", Success)
	assert.Equal(t, StatusUnknown, m.Query("openai").Status)
}

func TestMonitor_HealthyAboveThreshold(t *testing.T) {
	m := New(Thresholds{HealthyThreshold: 0.95, UnhealthyThreshold: 0.5, FailureWindow: time.Minute, MinRequests: 5}, nil)
	for i := 0; i < 20; i++ {
		m.Record("openai", Success)
	}
	metrics := m.Query("openai")
	assert.Equal(t, StatusHealthy, metrics.Status)
	assert.Equal(t, 1.0, metrics.SuccessRate)
}

func TestMonitor_UnhealthyAtOrBelowThreshold(t *testing.T) {
	m := New(Thresholds{HealthyThreshold: 0.95, UnhealthyThreshold: 0.5, FailureWindow: time.Minute, MinRequests: 5}, nil)
	for i := 0; i < 5; i++ {
		m.Record("openai", Failure)
	}
	for i := 0; i < 5; i++ {
		m.Record("openai", Success)
	}
	metrics := m.Query("openai")
	assert.Equal(t, 0.5, metrics.SuccessRate)
	assert.Equal(t, StatusUnhealthy, metrics.Status)
}

func TestMonitor_DegradedBetweenThresholds(t *testing.T) {
	m := New(Thresholds{HealthyThreshold: 0.95, UnhealthyThreshold: 0.5, FailureWindow: time.Minute, MinRequests: 5}, nil)
	for i := 0; i < 7; i++ {
		m.Record("openai", Success)
	}
	for i := 0; i < 3; i++ {
		m.Record("openai", Failure)
	}
	assert.Equal(t, StatusDegraded, m.Query("openai").Status)
}

func TestMonitor_WindowExpiry(t *testing.T) {
	m := New(Thresholds{HealthyThreshold: 0.95, UnhealthyThreshold: 0.5, FailureWindow: 10 * time.Millisecond, MinRequests: 1}, nil)
	m.Record("openai", Failure)
	require.Equal(t, StatusUnhealthy, m.Query("openai").Status)

	time.Sleep(20 * time.Millisecond)
	metrics := m.Query("openai")
	assert.Equal(t, 0, metrics.TotalCount)
	assert.Equal(t, StatusUnknown, metrics.Status)
}

func TestMonitor_NotifiesOnTransition(t *testing.T) {
	notifier := &recordingNotifier{}
	m := New(Thresholds{HealthyThreshold: 0.95, UnhealthyThreshold: 0.5, FailureWindow: time.Minute, MinRequests: 2}, notifier)

	m.Record("openai", Success) // still below MinRequests: Unknown -> Unknown, no change
	m.Record("openai", Success) // crosses MinRequests: Unknown -> Healthy

	require.Len(t, notifier.changes, 1)
	assert.Equal(t, StatusUnknown, notifier.changes[0].From)
	assert.Equal(t, StatusHealthy, notifier.changes[0].To)
}

func TestMonitor_Admissible(t *testing.T) {
	m := New(Thresholds{HealthyThreshold: 0.95, UnhealthyThreshold: 0.5, FailureWindow: time.Minute, MinRequests: 1}, nil)
	assert.True(t, m.Admissible("never-seen"))

	for i := 0; i < 5; i++ {
		m.Record("flaky", Failure)
	}
	assert.False(t, m.Admissible("flaky"))
}
