package openai

import (
	"encoding/json"
	"time"

	"github.com/lunaroute/lunaroute/internal/normalized"
)

func (a *Adapter) responseFromWire(body []byte) (*normalized.Response, error) {
	var w wireResponse
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, err
	}

	resp := &normalized.Response{
		ID:      w.ID,
		Model:   w.Model,
		Created: time.Unix(w.Created, 0).UTC(),
	}
	if w.Usage != nil {
		resp.Usage = normalized.NewUsage(w.Usage.PromptTokens, w.Usage.CompletionTokens)
	}

	for _, c := range w.Choices {
		var msg normalized.Message
		msg.Role = normalized.Role(c.Message.Role)
		if len(c.Message.Content) > 0 {
			_ = json.Unmarshal(c.Message.Content, &msg.Content)
		}
		for _, tc := range c.Message.ToolCalls {
			var args map[string]any
			_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
			msg.ToolCalls = append(msg.ToolCalls, normalized.ToolCall{
				ID:           tc.ID,
				Name:         tc.Function.Name,
				Arguments:    args,
				RawArguments: tc.Function.Arguments,
			})
		}

		resp.Choices = append(resp.Choices, normalized.Choice{
			Index:        c.Index,
			Message:      msg,
			FinishReason: normalized.FinishReason(c.FinishReason),
		})
	}

	return resp, nil
}

func (a *Adapter) responseToWire(resp *normalized.Response) ([]byte, error) {
	w := wireResponse{
		ID:      resp.ID,
		Model:   resp.Model,
		Created: resp.Created.Unix(),
		Usage: &wireUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}

	for _, c := range resp.Choices {
		content, _ := json.Marshal(c.Message.Content)
		wm := wireMessage{Role: string(c.Message.Role), Content: content}
		for _, tc := range c.Message.ToolCalls {
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

		w.Choices = append(w.Choices, wireChoice{
			Index:        c.Index,
			Message:      wm,
			FinishReason: string(c.FinishReason),
		})
	}

	return json.Marshal(w)
}
