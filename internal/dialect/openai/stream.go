package openai

import (
	"encoding/json"

	"github.com/lunaroute/lunaroute/internal/normalized"
	"github.com/lunaroute/lunaroute/internal/sse"
)

// streamDecoder tracks whether the Start event has already been synthesized,
// mirroring the teacher's StreamState.MessageStartSent bookkeeping
// (internal/providers/registry.go) adapted to the normalized model.
type streamDecoder struct {
	startSent bool
}

func (a *Adapter) newStreamDecoder() *streamDecoder {
	return &streamDecoder{}
}

// Decode translates one raw SSE frame (as produced by sse.Parser) into
// zero-or-more normalized stream events. A frame is fed as its raw Data
// field; callers run frames through sse.NewParser first.
func (d *streamDecoder) Decode(frame []byte) ([]normalized.StreamEvent, error) {
	data := string(frame)
	if data == "[DONE]" {
		return []normalized.StreamEvent{normalized.EndEvent(normalized.FinishStop)}, nil
	}

	var chunk wireStreamChunk
	if err := json.Unmarshal(frame, &chunk); err != nil {
		return nil, err
	}

	var events []normalized.StreamEvent
	if !d.startSent {
		events = append(events, normalized.StartEvent(chunk.ID, chunk.Model))
		d.startSent = true
	}

	for _, c := range chunk.Choices {
		if c.Delta.Role != "" || c.Delta.Content != "" {
			var role *normalized.Role
			if c.Delta.Role != "" {
				r := normalized.Role(c.Delta.Role)
				role = &r
			}
			events = append(events, normalized.DeltaEvent(c.Index, normalized.DeltaContent{Role: role, Content: c.Delta.Content}))
		}
		for _, tc := range c.Delta.ToolCalls {
			events = append(events, normalized.ToolCallDeltaEvent(c.Index, tc.Index, tc.ID, normalized.FunctionDelta{
				Name:         tc.Function.Name,
				ArgsFragment: tc.Function.Arguments,
			}))
		}
		if c.FinishReason != nil {
			events = append(events, normalized.EndEvent(normalized.FinishReason(*c.FinishReason)))
		}
	}

	if chunk.Usage != nil {
		events = append(events, normalized.UsageEvent(normalized.NewUsage(chunk.Usage.PromptTokens, chunk.Usage.CompletionTokens)))
	}

	return events, nil
}

// streamEncoder renders normalized events back into OpenAI-shaped chunks.
type streamEncoder struct {
	id       string
	model    string
	roleSent bool
}

func (a *Adapter) newStreamEncoder() *streamEncoder {
	return &streamEncoder{}
}

func (e *streamEncoder) Encode(event normalized.StreamEvent) ([][]byte, error) {
	switch event.Kind {
	case normalized.StreamStart:
		e.id = event.ID
		e.model = event.Model
		// OpenAI clients expect a role-only first chunk ahead of any
		// content delta (spec.md scenario 5); Anthropic's message_start
		// carries no content of its own, so synthesize it here rather
		// than relying on the upstream dialect to have produced one.
		role := string(normalized.RoleAssistant)
		chunk := wireStreamChunk{
			ID:    e.id,
			Model: e.model,
			Choices: []wireStreamChoice{{
				Delta: wireStreamDelta{Role: role},
			}},
		}
		payload, err := json.Marshal(chunk)
		if err != nil {
			return nil, err
		}
		e.roleSent = true
		return [][]byte{sse.FormatData(string(payload))}, nil

	case normalized.StreamDelta:
		delta := wireStreamDelta{Content: event.Delta.Content}
		if event.Delta.Role != nil && !e.roleSent {
			delta.Role = string(*event.Delta.Role)
			e.roleSent = true
		}
		chunk := wireStreamChunk{
			ID:    e.id,
			Model: e.model,
			Choices: []wireStreamChoice{{
				Index: event.ChoiceIndex,
				Delta: delta,
			}},
		}
		payload, err := json.Marshal(chunk)
		if err != nil {
			return nil, err
		}
		return [][]byte{sse.FormatData(string(payload))}, nil

	case normalized.StreamToolCallDelta:
		chunk := wireStreamChunk{
			ID:    e.id,
			Model: e.model,
			Choices: []wireStreamChoice{{
				Index: event.ChoiceIndex,
				Delta: wireStreamDelta{
					ToolCalls: []wireStreamToolCall{{
						Index: event.CallIndex,
						ID:    event.ToolCallID,
						Type:  "function",
						Function: wireFunctionRef{
							Name:      event.Function.Name,
							Arguments: event.Function.ArgsFragment,
						},
					}},
				},
			}},
		}
		payload, err := json.Marshal(chunk)
		if err != nil {
			return nil, err
		}
		return [][]byte{sse.FormatData(string(payload))}, nil

	case normalized.StreamUsage:
		chunk := wireStreamChunk{
			ID:    e.id,
			Model: e.model,
			Usage: &wireUsage{
				PromptTokens:     event.Usage.PromptTokens,
				CompletionTokens: event.Usage.CompletionTokens,
				TotalTokens:      event.Usage.TotalTokens,
			},
		}
		payload, err := json.Marshal(chunk)
		if err != nil {
			return nil, err
		}
		return [][]byte{sse.FormatData(string(payload))}, nil

	case normalized.StreamEnd:
		reason := string(event.FinishReason)
		chunk := wireStreamChunk{
			ID:    e.id,
			Model: e.model,
			Choices: []wireStreamChoice{{
				FinishReason: &reason,
			}},
		}
		payload, err := json.Marshal(chunk)
		if err != nil {
			return nil, err
		}
		return [][]byte{sse.FormatData(string(payload)), []byte(sse.Done)}, nil

	case normalized.StreamError:
		chunk := map[string]any{"error": map[string]any{"message": event.Message, "type": "api_error"}}
		payload, err := json.Marshal(chunk)
		if err != nil {
			return nil, err
		}
		return [][]byte{sse.FormatData(string(payload))}, nil
	}

	return nil, nil
}
