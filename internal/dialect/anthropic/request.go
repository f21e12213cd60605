package anthropic

import (
	"encoding/json"
	"fmt"

	"github.com/lunaroute/lunaroute/internal/dialect"
	"github.com/lunaroute/lunaroute/internal/normalized"
)

// MinTemperature and MaxTemperature bound the Anthropic dialect's range
// (spec.md §3: "temperature ∈ [0, 1] (Anthropic)").
const (
	MinTemperature = 0.0
	MaxTemperature = 1.0
)

func (a *Adapter) requestFromWire(body []byte) (*normalized.Request, error) {
	var w wireRequest
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, &dialect.ValidationError{Kind: dialect.ValidationMalformedJSON, Message: err.Error()}
	}
	if w.Model == "" {
		return nil, &dialect.ValidationError{Kind: dialect.ValidationMissingField, Message: "model is required"}
	}
	if len(w.Messages) == 0 {
		return nil, &dialect.ValidationError{Kind: dialect.ValidationEmptyMessages, Message: "messages must not be empty"}
	}
	if w.Temperature != nil && (*w.Temperature < MinTemperature || *w.Temperature > MaxTemperature) {
		return nil, &dialect.ValidationError{
			Kind:    dialect.ValidationTemperature,
			Message: fmt.Sprintf("temperature %v out of range [%v, %v]", *w.Temperature, MinTemperature, MaxTemperature),
		}
	}

	maxTokens := w.MaxTokens
	req := &normalized.Request{
		Model:           w.Model,
		Stream:          w.Stream,
		System:          w.System,
		MaxOutputTokens: &maxTokens,
		Temperature:     w.Temperature,
		TopP:            w.TopP,
		TopK:            w.TopK,
		StopSequences:   w.StopSequences,
	}
	if w.MaxTokens == 0 {
		req.MaxOutputTokens = nil
	}

	toolCallIDs := make(map[string]bool)
	for i, wm := range w.Messages {
		role := normalized.Role(wm.Role)
		switch role {
		case normalized.RoleSystem:
			// The Anthropic dialect lifts system into a top-level field;
			// a system-role message on the wire is rejected at ingress.
			return nil, &dialect.ValidationError{Kind: dialect.ValidationSystemRole, Message: fmt.Sprintf("system role not allowed in messages array at index %d", i)}
		case normalized.RoleUser, normalized.RoleAssistant:
		default:
			return nil, &dialect.ValidationError{Kind: dialect.ValidationUnknownRole, Message: fmt.Sprintf("unknown role %q at index %d", wm.Role, i)}
		}

		msg, err := decodeMessage(role, wm.Content, toolCallIDs, i)
		if err != nil {
			return nil, err
		}
		for _, tc := range msg.ToolCalls {
			toolCallIDs[tc.ID] = true
		}
		req.Messages = append(req.Messages, msg)
	}

	for _, t := range w.Tools {
		req.Tools = append(req.Tools, normalized.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.InputSchema,
		})
	}

	if len(w.ToolChoice) > 0 {
		var tc normalized.ToolChoice
		if err := json.Unmarshal(w.ToolChoice, &tc); err == nil {
			req.ToolChoice = &tc
		}
	}

	return req, nil
}

// decodeMessage parses a wire message whose content is either a bare
// string or an array of typed content blocks.
func decodeMessage(role normalized.Role, raw json.RawMessage, toolCallIDs map[string]bool, index int) (normalized.Message, error) {
	msg := normalized.Message{Role: role}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		msg.Content = normalized.TextContent(asString)
		return msg, nil
	}

	var blocks []wireContentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return msg, &dialect.ValidationError{Kind: dialect.ValidationMalformedJSON, Message: err.Error()}
	}

	var parts []normalized.ContentPart
	for _, b := range blocks {
		switch b.Type {
		case "text":
			parts = append(parts, normalized.ContentPart{Kind: normalized.ContentPartText, Text: b.Text})
		case "tool_use":
			var args map[string]any
			_ = json.Unmarshal(b.Input, &args)
			msg.ToolCalls = append(msg.ToolCalls, normalized.ToolCall{
				ID:           b.ID,
				Name:         b.Name,
				Arguments:    args,
				RawArguments: string(b.Input),
			})
		case "tool_result":
			if !toolCallIDs[b.ToolUseID] {
				return msg, &dialect.ValidationError{
					Kind:    dialect.ValidationDanglingTool,
					Message: fmt.Sprintf("tool_use_id %q at index %d references no prior assistant tool call", b.ToolUseID, index),
				}
			}
			msg.ToolResults = append(msg.ToolResults, normalized.ToolResult{
				ToolCallID: b.ToolUseID,
				Content:    b.Content,
				IsError:    b.IsError,
			})
		}
	}
	if len(parts) == 1 && parts[0].Kind == normalized.ContentPartText {
		msg.Content = normalized.TextContent(parts[0].Text)
	} else if len(parts) > 0 {
		msg.Content = normalized.PartsContent(parts...)
	}

	// A user message carrying only tool_result blocks is this dialect's
	// way of expressing the normalized model's RoleTool turn.
	if role == normalized.RoleUser && len(msg.ToolResults) > 0 && len(parts) == 0 {
		msg.Role = normalized.RoleTool
	}

	return msg, nil
}

func (a *Adapter) requestToWire(req *normalized.Request) ([]byte, error) {
	w := wireRequest{
		Model:         req.Model,
		System:        req.System,
		Stream:        req.Stream,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		TopK:          req.TopK,
		StopSequences: req.StopSequences,
	}
	if req.MaxOutputTokens != nil {
		w.MaxTokens = *req.MaxOutputTokens
	}

	for _, m := range req.Messages {
		blocks := encodeContentBlocks(m)
		content, err := json.Marshal(blocks)
		if err != nil {
			return nil, err
		}
		// Anthropic has no "tool" role: tool results travel inside a user
		// message as tool_result blocks (spec.md §4.C).
		role := m.Role
		if role == normalized.RoleTool {
			role = normalized.RoleUser
		}
		w.Messages = append(w.Messages, wireMessage{Role: string(role), Content: content})
	}

	for _, t := range req.Tools {
		w.Tools = append(w.Tools, wireTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.Parameters,
		})
	}

	if req.ToolChoice != nil {
		choice, err := json.Marshal(*req.ToolChoice)
		if err == nil {
			w.ToolChoice = choice
		}
	}

	return json.Marshal(w)
}

func encodeContentBlocks(m normalized.Message) []wireContentBlock {
	var blocks []wireContentBlock

	if m.Content.IsParts {
		for _, p := range m.Content.Parts {
			if p.Kind == normalized.ContentPartText {
				blocks = append(blocks, wireContentBlock{Type: "text", Text: p.Text})
			}
		}
	} else if m.Content.Text != "" {
		blocks = append(blocks, wireContentBlock{Type: "text", Text: m.Content.Text})
	}

	for _, tc := range m.ToolCalls {
		input := json.RawMessage(tc.RawArguments)
		if len(input) == 0 {
			input, _ = json.Marshal(tc.Arguments)
		}
		blocks = append(blocks, wireContentBlock{Type: "tool_use", ID: tc.ID, Name: tc.Name, Input: input})
	}

	for _, tr := range m.ToolResults {
		blocks = append(blocks, wireContentBlock{Type: "tool_result", ToolUseID: tr.ToolCallID, Content: tr.Content, IsError: tr.IsError})
	}

	return blocks
}
