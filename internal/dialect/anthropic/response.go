package anthropic

import (
	"encoding/json"

	"github.com/lunaroute/lunaroute/internal/normalized"
)

func (a *Adapter) responseFromWire(body []byte) (*normalized.Response, error) {
	var w wireResponse
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, err
	}

	msg := normalized.Message{Role: normalized.RoleAssistant}
	var parts []normalized.ContentPart
	for _, b := range w.Content {
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
		}
	}
	if len(parts) == 1 {
		msg.Content = normalized.TextContent(parts[0].Text)
	} else if len(parts) > 0 {
		msg.Content = normalized.PartsContent(parts...)
	}

	return &normalized.Response{
		ID:    w.ID,
		Model: w.Model,
		Choices: []normalized.Choice{{
			Index:        0,
			Message:      msg,
			FinishReason: finishFromWire(w.StopReason),
		}},
		Usage: normalized.NewUsage(w.Usage.InputTokens, w.Usage.OutputTokens),
	}, nil
}

func (a *Adapter) responseToWire(resp *normalized.Response) ([]byte, error) {
	w := wireResponse{
		ID:    resp.ID,
		Model: resp.Model,
		Role:  string(normalized.RoleAssistant),
		Usage: wireUsage{InputTokens: resp.Usage.PromptTokens, OutputTokens: resp.Usage.CompletionTokens},
	}

	if len(resp.Choices) > 0 {
		c := resp.Choices[0]
		w.Content = encodeContentBlocks(c.Message)
		w.StopReason = finishToWireReason(c.FinishReason)
	}

	return json.Marshal(w)
}
