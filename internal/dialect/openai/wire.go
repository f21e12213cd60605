// Package openai implements the dialect.Adapter for the OpenAI
// chat-completions wire format: a flat messages list, tool_calls embedded
// in the assistant message, and plain data:-line SSE framing terminated
// by a literal "data: [DONE]" line.
package openai

import "encoding/json"

type wireMessage struct {
	Role       string           `json:"role"`
	Content    json.RawMessage  `json:"content,omitempty"`
	Name       string           `json:"name,omitempty"`
	ToolCalls  []wireToolCall   `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type wireToolCall struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Function wireFunctionRef `json:"function"`
}

type wireFunctionRef struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type wireToolDefinition struct {
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

type wireFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type wireRequest struct {
	Model           string               `json:"model"`
	Messages        []wireMessage        `json:"messages"`
	Stream          bool                 `json:"stream,omitempty"`
	MaxTokens       *int                 `json:"max_tokens,omitempty"`
	Temperature     *float64             `json:"temperature,omitempty"`
	TopP            *float64             `json:"top_p,omitempty"`
	Stop            []string             `json:"stop,omitempty"`
	Tools           []wireToolDefinition `json:"tools,omitempty"`
	ToolChoice      json.RawMessage      `json:"tool_choice,omitempty"`
}

type wireResponse struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Created int64          `json:"created"`
	Choices []wireChoice   `json:"choices"`
	Usage   *wireUsage     `json:"usage,omitempty"`
}

type wireChoice struct {
	Index        int         `json:"index"`
	Message      wireMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type wireUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// streaming chunk shapes

type wireStreamChunk struct {
	ID      string             `json:"id"`
	Model   string             `json:"model"`
	Choices []wireStreamChoice `json:"choices"`
	Usage   *wireUsage         `json:"usage,omitempty"`
}

type wireStreamChoice struct {
	Index        int              `json:"index"`
	Delta        wireStreamDelta  `json:"delta"`
	FinishReason *string          `json:"finish_reason"`
}

type wireStreamDelta struct {
	Role      string              `json:"role,omitempty"`
	Content   string              `json:"content,omitempty"`
	ToolCalls []wireStreamToolCall `json:"tool_calls,omitempty"`
}

type wireStreamToolCall struct {
	Index    int             `json:"index"`
	ID       string          `json:"id,omitempty"`
	Type     string          `json:"type,omitempty"`
	Function wireFunctionRef `json:"function"`
}
