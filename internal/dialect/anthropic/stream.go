package anthropic

import (
	"encoding/json"

	"github.com/lunaroute/lunaroute/internal/normalized"
	"github.com/lunaroute/lunaroute/internal/sse"
)

type blockState struct {
	kind       string // "text" or "tool_use"
	toolCallID string
	toolName   string
}

// streamDecoder tracks open content blocks by index, mirroring the
// teacher's StreamState/ContentBlockState bookkeeping
// (internal/providers/registry.go) generalized to the normalized model.
type streamDecoder struct {
	blocks map[int]*blockState
}

func (a *Adapter) newStreamDecoder() *streamDecoder {
	return &streamDecoder{blocks: make(map[int]*blockState)}
}

// Decode expects frame to be the SSE Data payload; Anthropic frames embed
// their event name in the JSON body's own "type" field, so no separate
// "event:" line needs to be threaded through.
func (d *streamDecoder) Decode(frame []byte) ([]normalized.StreamEvent, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(frame, &envelope); err != nil {
		return nil, err
	}

	switch envelope.Type {
	case "message_start":
		var w wireMessageStart
		if err := json.Unmarshal(frame, &w); err != nil {
			return nil, err
		}
		return []normalized.StreamEvent{normalized.StartEvent(w.Message.ID, w.Message.Model)}, nil

	case "content_block_start":
		var w wireContentBlockStart
		if err := json.Unmarshal(frame, &w); err != nil {
			return nil, err
		}
		d.blocks[w.Index] = &blockState{kind: w.ContentBlock.Type, toolCallID: w.ContentBlock.ID, toolName: w.ContentBlock.Name}
		if w.ContentBlock.Type == "tool_use" {
			return []normalized.StreamEvent{normalized.ToolCallDeltaEvent(0, w.Index, w.ContentBlock.ID, normalized.FunctionDelta{Name: w.ContentBlock.Name})}, nil
		}
		return nil, nil

	case "content_block_delta":
		var w wireContentBlockDelta
		if err := json.Unmarshal(frame, &w); err != nil {
			return nil, err
		}
		state := d.blocks[w.Index]
		switch w.Delta.Type {
		case "text_delta":
			return []normalized.StreamEvent{normalized.DeltaEvent(0, normalized.DeltaContent{Content: w.Delta.Text})}, nil
		case "input_json_delta":
			id, name := "", ""
			if state != nil {
				id, name = state.toolCallID, state.toolName
			}
			return []normalized.StreamEvent{normalized.ToolCallDeltaEvent(0, w.Index, id, normalized.FunctionDelta{Name: name, ArgsFragment: w.Delta.PartialJSON})}, nil
		}
		return nil, nil

	case "content_block_stop":
		var w wireContentBlockStop
		_ = json.Unmarshal(frame, &w)
		delete(d.blocks, w.Index)
		return nil, nil

	case "message_delta":
		var w wireMessageDelta
		if err := json.Unmarshal(frame, &w); err != nil {
			return nil, err
		}
		var events []normalized.StreamEvent
		events = append(events, normalized.UsageEvent(normalized.NewUsage(0, w.Usage.OutputTokens)))
		if w.Delta.StopReason != "" {
			events = append(events, normalized.EndEvent(finishFromWire(w.Delta.StopReason)))
		}
		return events, nil

	case "message_stop":
		return nil, nil

	case "error":
		var w struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.Unmarshal(frame, &w)
		return []normalized.StreamEvent{normalized.ErrorEvent(w.Error.Message)}, nil
	}

	return nil, nil
}

// streamEncoder renders normalized events back into Anthropic's
// event-typed SSE sequence.
type streamEncoder struct {
	id          string
	model       string
	blockOpen   bool
	toolOpen    bool
	usage       normalized.Usage
}

func (a *Adapter) newStreamEncoder() *streamEncoder {
	return &streamEncoder{}
}

func (e *streamEncoder) Encode(event normalized.StreamEvent) ([][]byte, error) {
	switch event.Kind {
	case normalized.StreamStart:
		e.id = event.ID
		e.model = event.Model
		w := wireMessageStart{Type: "message_start"}
		w.Message.ID = e.id
		w.Message.Model = e.model
		w.Message.Role = string(normalized.RoleAssistant)
		payload, err := json.Marshal(w)
		if err != nil {
			return nil, err
		}
		frames := [][]byte{sse.FormatTyped("message_start", string(payload))}
		if !e.blockOpen {
			start := wireContentBlockStart{Type: "content_block_start", Index: 0, ContentBlock: wireContentBlock{Type: "text", Text: ""}}
			startPayload, _ := json.Marshal(start)
			frames = append(frames, sse.FormatTyped("content_block_start", string(startPayload)))
			e.blockOpen = true
		}
		return frames, nil

	case normalized.StreamDelta:
		w := wireContentBlockDelta{Type: "content_block_delta", Index: event.ChoiceIndex, Delta: wireDelta{Type: "text_delta", Text: event.Delta.Content}}
		payload, err := json.Marshal(w)
		if err != nil {
			return nil, err
		}
		return [][]byte{sse.FormatTyped("content_block_delta", string(payload))}, nil

	case normalized.StreamToolCallDelta:
		var frames [][]byte
		if !e.toolOpen {
			start := wireContentBlockStart{
				Type:         "content_block_start",
				Index:        event.CallIndex,
				ContentBlock: wireContentBlock{Type: "tool_use", ID: event.ToolCallID, Name: event.Function.Name},
			}
			startPayload, err := json.Marshal(start)
			if err != nil {
				return nil, err
			}
			frames = append(frames, sse.FormatTyped("content_block_start", string(startPayload)))
			e.toolOpen = true
		}
		w := wireContentBlockDelta{Type: "content_block_delta", Index: event.CallIndex, Delta: wireDelta{Type: "input_json_delta", PartialJSON: event.Function.ArgsFragment}}
		payload, err := json.Marshal(w)
		if err != nil {
			return nil, err
		}
		frames = append(frames, sse.FormatTyped("content_block_delta", string(payload)))
		return frames, nil

	case normalized.StreamUsage:
		e.usage = event.Usage
		return nil, nil

	case normalized.StreamEnd:
		var frames [][]byte
		stop := wireContentBlockStop{Type: "content_block_stop", Index: 0}
		stopPayload, _ := json.Marshal(stop)
		frames = append(frames, sse.FormatTyped("content_block_stop", string(stopPayload)))

		delta := wireMessageDelta{Type: "message_delta"}
		delta.Delta.StopReason = finishToWireReason(event.FinishReason)
		delta.Usage = wireUsage{OutputTokens: e.usage.CompletionTokens}
		deltaPayload, err := json.Marshal(delta)
		if err != nil {
			return nil, err
		}
		frames = append(frames, sse.FormatTyped("message_delta", string(deltaPayload)))

		stopMsg := wireMessageStop{Type: "message_stop"}
		stopPayload2, _ := json.Marshal(stopMsg)
		frames = append(frames, sse.FormatTyped("message_stop", string(stopPayload2)))
		return frames, nil

	case normalized.StreamError:
		payload, err := json.Marshal(map[string]any{"type": "error", "error": map[string]string{"message": event.Message}})
		if err != nil {
			return nil, err
		}
		return [][]byte{sse.FormatTyped("error", string(payload))}, nil
	}

	return nil, nil
}
