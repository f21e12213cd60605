package anthropic

import "github.com/lunaroute/lunaroute/internal/normalized"

// Finish reason mapping per spec.md §4.C: OpenAI stop/length/tool_calls/
// content_filter <-> Anthropic end_turn/max_tokens/tool_use/stop_sequence.
var finishToNormalized = map[string]normalized.FinishReason{
	"end_turn":      normalized.FinishStop,
	"max_tokens":    normalized.FinishLength,
	"tool_use":      normalized.FinishToolCalls,
	"stop_sequence": normalized.FinishContentFilter,
}

var finishToWire = map[normalized.FinishReason]string{
	normalized.FinishStop:          "end_turn",
	normalized.FinishLength:        "max_tokens",
	normalized.FinishToolCalls:     "tool_use",
	normalized.FinishContentFilter: "stop_sequence",
}

func finishFromWire(reason string) normalized.FinishReason {
	if r, ok := finishToNormalized[reason]; ok {
		return r
	}
	return normalized.FinishStop
}

func finishToWireReason(reason normalized.FinishReason) string {
	if r, ok := finishToWire[reason]; ok {
		return r
	}
	return "end_turn"
}
