package breaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreaker_ClosedAllowsUntilThreshold(t *testing.T) {
	b := New(Config{FailureThreshold: 3, SuccessThreshold: 1, Timeout: time.Second})

	for i := 0; i < 2; i++ {
		require.Equal(t, Allow, b.Admit("p"))
		b.Record("p", false)
	}
	assert.Equal(t, Closed, b.State("p"))

	require.Equal(t, Allow, b.Admit("p"))
	b.Record("p", false) // third consecutive failure trips it
	assert.Equal(t, Open, b.State("p"))
}

func TestBreaker_SuccessResetsConsecutiveFailures(t *testing.T) {
	b := New(Config{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Second})

	b.Admit("p")
	b.Record("p", false)
	b.Admit("p")
	b.Record("p", true) // resets counter

	b.Admit("p")
	b.Record("p", false)
	assert.Equal(t, Closed, b.State("p"), "single failure after reset shouldn't trip a threshold of 2")
}

func TestBreaker_OpenDeniesUntilTimeout(t *testing.T) {
	b := New(Config{FailureThreshold: 1, SuccessThreshold: 1, Timeout: 50 * time.Millisecond})

	b.Admit("p")
	b.Record("p", false)
	require.Equal(t, Open, b.State("p"))

	assert.Equal(t, Deny, b.Admit("p"))

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, Allow, b.Admit("p"), "should admit a probe once timeout elapses")
	assert.Equal(t, HalfOpen, b.State("p"))
}

func TestBreaker_HalfOpenAllowsOnlyOneProbeAtATime(t *testing.T) {
	b := New(Config{FailureThreshold: 1, SuccessThreshold: 2, Timeout: 10 * time.Millisecond})

	b.Admit("p")
	b.Record("p", false)
	time.Sleep(15 * time.Millisecond)

	require.Equal(t, Allow, b.Admit("p"))
	assert.Equal(t, Deny, b.Admit("p"), "a second probe must be denied while one is in flight")
}

func TestBreaker_HalfOpenClosesAfterSuccessThreshold(t *testing.T) {
	b := New(Config{FailureThreshold: 1, SuccessThreshold: 2, Timeout: 10 * time.Millisecond})

	b.Admit("p")
	b.Record("p", false)
	time.Sleep(15 * time.Millisecond)

	b.Admit("p")
	b.Record("p", true)
	assert.Equal(t, HalfOpen, b.State("p"))

	b.Admit("p")
	b.Record("p", true)
	assert.Equal(t, Closed, b.State("p"))
}

func TestBreaker_HalfOpenReopensOnFailure(t *testing.T) {
	b := New(Config{FailureThreshold: 1, SuccessThreshold: 2, Timeout: 10 * time.Millisecond})

	b.Admit("p")
	b.Record("p", false)
	time.Sleep(15 * time.Millisecond)

	b.Admit("p")
	b.Record("p", false)
	assert.Equal(t, Open, b.State("p"))
}

func TestBreaker_IndependentPerProvider(t *testing.T) {
	b := New(Config{FailureThreshold: 1, SuccessThreshold: 1, Timeout: time.Second})

	b.Admit("a")
	b.Record("a", false)
	assert.Equal(t, Open, b.State("a"))
	assert.Equal(t, Closed, b.State("b"))
}
