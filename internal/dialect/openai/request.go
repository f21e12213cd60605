package openai

import (
	"encoding/json"
	"fmt"

	"github.com/lunaroute/lunaroute/internal/dialect"
	"github.com/lunaroute/lunaroute/internal/normalized"
)

// MinTemperature and MaxTemperature bound the OpenAI dialect's range
// (spec.md §3: "temperature ∈ [0, 2] (OpenAI)").
const (
	MinTemperature = 0.0
	MaxTemperature = 2.0
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

	req := &normalized.Request{
		Model:         w.Model,
		Stream:        w.Stream,
		MaxOutputTokens: w.MaxTokens,
		Temperature:   w.Temperature,
		TopP:          w.TopP,
		StopSequences: w.Stop,
	}

	toolCallIDs := make(map[string]bool)
	for i, wm := range w.Messages {
		role := normalized.Role(wm.Role)
		switch role {
		case normalized.RoleSystem, normalized.RoleUser, normalized.RoleAssistant, normalized.RoleTool:
		default:
			return nil, &dialect.ValidationError{Kind: dialect.ValidationUnknownRole, Message: fmt.Sprintf("unknown role %q at index %d", wm.Role, i)}
		}

		if role == normalized.RoleSystem {
			var text string
			_ = json.Unmarshal(wm.Content, &text)
			req.System = text
			continue
		}

		msg := normalized.Message{Role: role, Name: wm.Name}
		if len(wm.Content) > 0 {
			if err := json.Unmarshal(wm.Content, &msg.Content); err != nil {
				return nil, &dialect.ValidationError{Kind: dialect.ValidationMalformedJSON, Message: err.Error()}
			}
		}

		if role == normalized.RoleTool {
			if !toolCallIDs[wm.ToolCallID] {
				return nil, &dialect.ValidationError{
					Kind:    dialect.ValidationDanglingTool,
					Message: fmt.Sprintf("tool_call_id %q at index %d references no prior assistant tool call", wm.ToolCallID, i),
				}
			}
			msg.ToolResults = []normalized.ToolResult{{ToolCallID: wm.ToolCallID, Content: msg.Content.String()}}
		}

		for _, tc := range wm.ToolCalls {
			var args map[string]any
			_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
			msg.ToolCalls = append(msg.ToolCalls, normalized.ToolCall{
				ID:           tc.ID,
				Name:         tc.Function.Name,
				Arguments:    args,
				RawArguments: tc.Function.Arguments,
			})
			toolCallIDs[tc.ID] = true
		}

		req.Messages = append(req.Messages, msg)
	}

	for _, t := range w.Tools {
		req.Tools = append(req.Tools, normalized.ToolDefinition{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			Parameters:  t.Function.Parameters,
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

func (a *Adapter) requestToWire(req *normalized.Request) ([]byte, error) {
	w := wireRequest{
		Model:       req.Model,
		Stream:      req.Stream,
		MaxTokens:   req.MaxOutputTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.StopSequences,
	}

	if req.System != "" {
		content, _ := json.Marshal(req.System)
		w.Messages = append(w.Messages, wireMessage{Role: string(normalized.RoleSystem), Content: content})
	}

	for _, m := range req.Messages {
		wm := wireMessage{Role: string(m.Role), Name: m.Name}
		content, _ := json.Marshal(m.Content)
		wm.Content = content

		for _, tc := range m.ToolCalls {
			args := tc.RawArguments
			if args == "" {
				raw, _ := json.Marshal(tc.Arguments)
				args = string(raw)
			}
			wm.ToolCalls = append(wm.ToolCalls, wireToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: wireFunctionRef{
					Name:      tc.Name,
					Arguments: args,
				},
			})
		}

		if m.Role == normalized.RoleTool && len(m.ToolResults) > 0 {
			wm.ToolCallID = m.ToolResults[0].ToolCallID
		}

		w.Messages = append(w.Messages, wm)
	}

	for _, t := range req.Tools {
		w.Tools = append(w.Tools, wireToolDefinition{
			Type: "function",
			Function: wireFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
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
