// Package dialect defines the Adapter contract translating between a
// vendor wire format and the normalized model (spec.md §4.C), and the
// shared validation helpers both concrete dialects enforce at ingress.
package dialect

import (
	"github.com/lunaroute/lunaroute/internal/normalized"
)

// Name identifies a supported wire dialect.
type Name string

const (
	OpenAI    Name = "openai"
	Anthropic Name = "anthropic"
)

// Adapter is the symmetric translation pair for one wire dialect. Every
// method is pure and stateless except StreamDecoder/StreamEncoder, which
// carry per-stream bookkeeping (content-block indices, tool-call ids).
type Adapter interface {
	Name() Name

	// RequestFromWire parses and validates an inbound request body,
	// returning the dialect-specific ValidationError on failure.
	RequestFromWire(body []byte) (*normalized.Request, error)

	// RequestToWire renders a normalized request into this dialect's
	// wire JSON, for outbound calls to an upstream of this dialect.
	RequestToWire(req *normalized.Request) ([]byte, error)

	// ResponseFromWire parses an upstream's non-streaming response body.
	ResponseFromWire(body []byte) (*normalized.Response, error)

	// ResponseToWire renders a normalized response for a client that
	// requested this dialect.
	ResponseToWire(resp *normalized.Response) ([]byte, error)

	// NewStreamDecoder returns a fresh decoder translating this dialect's
	// SSE chunks into normalized stream events. One decoder per stream.
	NewStreamDecoder() StreamDecoder

	// NewStreamEncoder returns a fresh encoder translating normalized
	// stream events into this dialect's SSE chunks. One encoder per
	// stream.
	NewStreamEncoder() StreamEncoder
}

// StreamDecoder converts wire SSE frames into zero-or-more normalized
// stream events (spec.md §4.C operation 5).
type StreamDecoder interface {
	Decode(frame []byte) ([]normalized.StreamEvent, error)
}

// StreamEncoder converts normalized stream events into zero-or-more wire
// SSE frames (spec.md §4.C operation 6).
type StreamEncoder interface {
	Encode(event normalized.StreamEvent) ([][]byte, error)
}

// ValidationError reports an ingress-validation failure (spec.md §4.C).
// Kind distinguishes the 400-vs-422 HTTP mapping the ingress surface uses.
type ValidationError struct {
	Kind    ValidationKind
	Message string
}

// ValidationKind is the closed set of ingress validation failure modes.
type ValidationKind string

const (
	ValidationMalformedJSON  ValidationKind = "malformed_json"
	ValidationEmptyMessages  ValidationKind = "empty_messages"
	ValidationUnknownRole    ValidationKind = "unknown_role"
	ValidationDanglingTool   ValidationKind = "dangling_tool_result"
	ValidationTemperature    ValidationKind = "temperature_out_of_range"
	ValidationSystemRole     ValidationKind = "system_role_not_allowed"
	ValidationMissingField   ValidationKind = "missing_field"
)

func (e *ValidationError) Error() string {
	return "dialect: " + string(e.Kind) + ": " + e.Message
}

// HTTPStatus maps a ValidationKind to the ingress status code per spec §6:
// malformed JSON/missing fields are 400, semantic failures are 422.
func (e *ValidationError) HTTPStatus() int {
	switch e.Kind {
	case ValidationMalformedJSON, ValidationMissingField:
		return 400
	default:
		return 422
	}
}
