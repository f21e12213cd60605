// Package notify implements the Notification Injector (spec.md §4.H):
// idempotent insertion of a user-visible "provider switched" user-role
// message on fallback, with vendor-identity-safe generic reason phrases.
package notify

import (
	"strings"

	"github.com/lunaroute/lunaroute/internal/normalized"
	"github.com/lunaroute/lunaroute/internal/template"
)

// SwitchReason is the closed set of reasons a router advances to a
// fallback candidate (spec.md §4.G step d).
type SwitchReason string

const (
	ReasonRateLimit    SwitchReason = "rate_limit"
	ReasonServiceIssue SwitchReason = "service_issue"
	ReasonCircuitOpen  SwitchReason = "circuit_open"
)

// genericPhrase maps a SwitchReason to vendor-identity-safe wording
// (spec.md §4.H: "deliberately generic ... to avoid leaking vendor
// identity to end users").
var genericPhrase = map[SwitchReason]string{
	ReasonRateLimit:    "high demand",
	ReasonServiceIssue: "a temporary service issue",
	ReasonCircuitOpen:  "service maintenance",
}

// DefaultMarkerPrefix is the idempotency marker checked at the start of
// the first message before injecting another notice.
const DefaultMarkerPrefix = "IMPORTANT:"

// DefaultTemplate is the injected message body before variable expansion.
const DefaultTemplate = "${marker} the request was routed to a different model provider due to ${reason} with the original provider. Model: ${model}."

// Config controls injection behavior, sourced from
// `notification.{enabled, default_message}` (spec.md §6).
type Config struct {
	Enabled       bool
	MarkerPrefix  string
	MessageTemplate string
}

// DefaultConfig matches spec.md §4.H's stated default marker.
func DefaultConfig() Config {
	return Config{Enabled: true, MarkerPrefix: DefaultMarkerPrefix, MessageTemplate: DefaultTemplate}
}

// Inject prepends a synthesized user-role notice to req.Messages when
// cfg.Enabled and the first message does not already carry the marker
// prefix. It mutates a copy, leaving req untouched, and is a no-op when
// disabled or already injected (idempotent across cascading fallbacks).
func Inject(req *normalized.Request, cfg Config, originalProvider, newProvider string, reason SwitchReason) *normalized.Request {
	if !cfg.Enabled {
		return req
	}
	marker := cfg.MarkerPrefix
	if marker == "" {
		marker = DefaultMarkerPrefix
	}

	if len(req.Messages) > 0 && strings.HasPrefix(strings.TrimSpace(req.Messages[0].Content.String()), marker) {
		return req
	}

	tmpl := cfg.MessageTemplate
	if tmpl == "" {
		tmpl = DefaultTemplate
	}
	text := template.Expand(tmpl, template.Vars{
		"marker":            marker,
		"original_provider": originalProvider,
		"new_provider":      newProvider,
		"reason":            phraseFor(reason),
		"model":             req.Model,
	})

	notice := normalized.Message{Role: normalized.RoleUser, Content: normalized.TextContent(text)}

	out := *req
	out.Messages = append([]normalized.Message{notice}, req.Messages...)
	return &out
}

func phraseFor(reason SwitchReason) string {
	if p, ok := genericPhrase[reason]; ok {
		return p
	}
	return "a temporary service issue"
}
