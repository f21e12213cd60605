package normalized

import (
	"errors"
	"fmt"
)

// ErrEmptyMessages is returned when a request's message sequence is empty.
var ErrEmptyMessages = errors.New("normalized: messages must not be empty")

// UnknownRoleError reports a message with a role outside {system, user,
// assistant, tool}.
type UnknownRoleError struct {
	Role  string
	Index int
}

func (e *UnknownRoleError) Error() string {
	return fmt.Sprintf("normalized: unknown role %q at message index %d", e.Role, e.Index)
}

// DanglingToolResultError reports a tool-result message whose tool-call-id
// does not reference a prior assistant tool call in the same conversation,
// or a tool-role message with no predecessor at all.
type DanglingToolResultError struct {
	Index      int
	ToolCallID string
}

func (e *DanglingToolResultError) Error() string {
	if e.ToolCallID == "" {
		return fmt.Sprintf("normalized: tool message at index %d has no prior tool call", e.Index)
	}
	return fmt.Sprintf("normalized: tool_call_id %q at message index %d references no prior assistant tool call", e.ToolCallID, e.Index)
}

// MissingMediaTypeError reports a base64 image part with no media type.
type MissingMediaTypeError struct {
	Index int
}

func (e *MissingMediaTypeError) Error() string {
	return fmt.Sprintf("normalized: base64 image part at message index %d is missing a media type", e.Index)
}
