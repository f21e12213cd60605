package lunaerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyStatus(t *testing.T) {
	cases := map[int]Kind{
		400: KindClientInput,
		404: KindClientInput,
		422: KindClientInput,
		401: KindAuth,
		403: KindAuth,
		429: KindRateLimit,
		408: KindTransient,
		500: KindTransient,
		503: KindTransient,
	}
	for status, want := range cases {
		assert.Equal(t, want, ClassifyStatus(status), "status %d", status)
	}
}

func TestKindOf_UnwrapsWrappedError(t *testing.T) {
	base := FromStatus("openai", 500, errors.New("boom"))
	wrapped := fmt.Errorf("send failed: %w", base)
	assert.Equal(t, KindTransient, KindOf(wrapped))
}

func TestKindOf_DefaultsToInternal(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
}

func TestRetryableAndFallback(t *testing.T) {
	assert.True(t, KindRateLimit.Retryable())
	assert.True(t, KindTransient.Retryable())
	assert.False(t, KindClientInput.Retryable())
	assert.False(t, KindAuth.Retryable())

	assert.True(t, KindAuth.FallbackCandidate())
	assert.True(t, KindCircuitOpen.FallbackCandidate())
	assert.False(t, KindClientInput.FallbackCandidate())
}
