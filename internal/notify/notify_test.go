package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lunaroute/lunaroute/internal/normalized"
)

func baseRequest() *normalized.Request {
	return &normalized.Request{
		Model:    "gpt-4o",
		Messages: []normalized.Message{{Role: normalized.RoleUser, Content: normalized.TextContent("hi")}},
	}
}

func TestInject_PrependsNotice(t *testing.T) {
	req := baseRequest()
	out := Inject(req, DefaultConfig(), "openai-primary", "openai-fallback", ReasonRateLimit)
	require.Len(t, out.Messages, 2)
	assert.Contains(t, out.Messages[0].Content.String(), "IMPORTANT:")
	assert.Contains(t, out.Messages[0].Content.String(), "high demand")
	assert.Equal(t, "hi", out.Messages[1].Content.String())
}

func TestInject_Idempotent(t *testing.T) {
	req := baseRequest()
	once := Inject(req, DefaultConfig(), "a", "b", ReasonRateLimit)
	twice := Inject(once, DefaultConfig(), "b", "c", ReasonServiceIssue)
	assert.Len(t, twice.Messages, 2, "second fallback should not duplicate the marker")
}

func TestInject_DisabledIsNoOp(t *testing.T) {
	req := baseRequest()
	cfg := DefaultConfig()
	cfg.Enabled = false
	out := Inject(req, cfg, "a", "b", ReasonRateLimit)
	assert.Same(t, req, out)
}

func TestInject_DoesNotMutateOriginal(t *testing.T) {
	req := baseRequest()
	_ = Inject(req, DefaultConfig(), "a", "b", ReasonRateLimit)
	assert.Len(t, req.Messages, 1, "original request must be untouched")
}

func TestInject_GenericPhrasesHideVendorIdentity(t *testing.T) {
	req := baseRequest()
	out := Inject(req, DefaultConfig(), "anthropic", "openai", ReasonCircuitOpen)
	text := out.Messages[0].Content.String()
	assert.NotContains(t, text, "anthropic")
	assert.NotContains(t, text, "openai")
	assert.Contains(t, text, "service maintenance")
}
