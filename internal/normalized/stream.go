package normalized

// StreamEventKind discriminates the StreamEvent tagged union.
type StreamEventKind string

const (
	StreamStart          StreamEventKind = "start"
	StreamDelta          StreamEventKind = "delta"
	StreamToolCallDelta  StreamEventKind = "tool_call_delta"
	StreamUsage          StreamEventKind = "usage"
	StreamEnd            StreamEventKind = "end"
	StreamError          StreamEventKind = "error"
)

// DeltaContent is the incremental content carried by a Delta event. Either
// field may be empty/nil if that aspect did not change in this delta.
type DeltaContent struct {
	Role    *Role
	Content string
}

// FunctionDelta is the incremental function-call payload of a
// ToolCallDelta event.
type FunctionDelta struct {
	Name         string
	ArgsFragment string
}

// StreamEvent is one element of a normalized streaming response. Exactly
// one field group is populated, matching Kind.
type StreamEvent struct {
	Kind StreamEventKind

	// Start
	ID    string
	Model string

	// Delta
	ChoiceIndex int
	Delta       DeltaContent

	// ToolCallDelta
	CallIndex  int
	ToolCallID string
	Function   FunctionDelta

	// Usage
	Usage Usage

	// End
	FinishReason FinishReason

	// Error
	Message string
}

// StartEvent constructs a Start event.
func StartEvent(id, model string) StreamEvent {
	return StreamEvent{Kind: StreamStart, ID: id, Model: model}
}

// DeltaEvent constructs a text/role Delta event for a given choice.
func DeltaEvent(choiceIndex int, delta DeltaContent) StreamEvent {
	return StreamEvent{Kind: StreamDelta, ChoiceIndex: choiceIndex, Delta: delta}
}

// ToolCallDeltaEvent constructs a ToolCallDelta event.
func ToolCallDeltaEvent(choiceIndex, callIndex int, id string, fn FunctionDelta) StreamEvent {
	return StreamEvent{
		Kind:        StreamToolCallDelta,
		ChoiceIndex: choiceIndex,
		CallIndex:   callIndex,
		ToolCallID:  id,
		Function:    fn,
	}
}

// UsageEvent constructs a Usage event.
func UsageEvent(u Usage) StreamEvent {
	return StreamEvent{Kind: StreamUsage, Usage: u}
}

// EndEvent constructs the terminal End event.
func EndEvent(reason FinishReason) StreamEvent {
	return StreamEvent{Kind: StreamEnd, FinishReason: reason}
}

// ErrorEvent constructs the terminal Error event.
func ErrorEvent(message string) StreamEvent {
	return StreamEvent{Kind: StreamError, Message: message}
}

// StreamSequenceValidator accumulates events and checks the spec.md §3 / §8
// stream invariant: exactly one Start first, then any number of
// Delta/ToolCallDelta/Usage, terminated by exactly one End or Error.
type StreamSequenceValidator struct {
	started    bool
	terminated bool
}

// Observe feeds one event into the validator. It returns an error the
// moment the sequence is violated.
func (v *StreamSequenceValidator) Observe(e StreamEvent) error {
	if v.terminated {
		return errStreamAfterTerminal
	}
	switch e.Kind {
	case StreamStart:
		if v.started {
			return errDuplicateStart
		}
		v.started = true
	case StreamEnd, StreamError:
		if !v.started {
			return errTerminalBeforeStart
		}
		v.terminated = true
	default:
		if !v.started {
			return errEventBeforeStart
		}
	}
	return nil
}

// Valid reports whether the sequence observed so far ended cleanly.
func (v *StreamSequenceValidator) Valid() bool {
	return v.started && v.terminated
}

var (
	errStreamAfterTerminal = streamSeqError("event observed after stream terminated")
	errDuplicateStart      = streamSeqError("duplicate Start event")
	errTerminalBeforeStart = streamSeqError("terminal event observed before Start")
	errEventBeforeStart    = streamSeqError("event observed before Start")
)

type streamSeqError string

func (e streamSeqError) Error() string { return "normalized: " + string(e) }
