// Package anthropic implements the dialect.Adapter for the Anthropic
// messages wire format: a top-level system field, typed content blocks,
// and event-typed SSE streaming.
package anthropic

import "encoding/json"

type wireContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`         // tool_use
	Name      string          `json:"name,omitempty"`       // tool_use
	Input     json.RawMessage `json:"input,omitempty"`      // tool_use
	ToolUseID string          `json:"tool_use_id,omitempty"` // tool_result
	Content   string          `json:"content,omitempty"`    // tool_result
	IsError   bool            `json:"is_error,omitempty"`   // tool_result
}

type wireMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type wireTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
}

type wireRequest struct {
	Model         string          `json:"model"`
	System        string          `json:"system,omitempty"`
	Messages      []wireMessage   `json:"messages"`
	Stream        bool            `json:"stream,omitempty"`
	MaxTokens     int             `json:"max_tokens,omitempty"`
	Temperature   *float64        `json:"temperature,omitempty"`
	TopP          *float64        `json:"top_p,omitempty"`
	TopK          *int            `json:"top_k,omitempty"`
	StopSequences []string        `json:"stop_sequences,omitempty"`
	Tools         []wireTool      `json:"tools,omitempty"`
	ToolChoice    json.RawMessage `json:"tool_choice,omitempty"`
}

type wireUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type wireResponse struct {
	ID         string              `json:"id"`
	Model      string              `json:"model"`
	Role       string              `json:"role"`
	Content    []wireContentBlock  `json:"content"`
	StopReason string              `json:"stop_reason"`
	Usage      wireUsage           `json:"usage"`
}

// streaming event payloads

type wireMessageStart struct {
	Type    string `json:"type"`
	Message struct {
		ID    string    `json:"id"`
		Model string    `json:"model"`
		Role  string    `json:"role"`
		Usage wireUsage `json:"usage"`
	} `json:"message"`
}

type wireContentBlockStart struct {
	Type         string            `json:"type"`
	Index        int               `json:"index"`
	ContentBlock wireContentBlock  `json:"content_block"`
}

type wireContentBlockDelta struct {
	Type  string    `json:"type"`
	Index int       `json:"index"`
	Delta wireDelta `json:"delta"`
}

type wireDelta struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
}

type wireContentBlockStop struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
}

type wireMessageDelta struct {
	Type  string `json:"type"`
	Delta struct {
		StopReason string `json:"stop_reason"`
	} `json:"delta"`
	Usage wireUsage `json:"usage"`
}

type wireMessageStop struct {
	Type string `json:"type"`
}
