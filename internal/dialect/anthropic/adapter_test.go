package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lunaroute/lunaroute/internal/dialect"
	"github.com/lunaroute/lunaroute/internal/normalized"
)

func TestRequestFromWire_SystemTopLevel(t *testing.T) {
	a := New()
	body := []byte(`{"model":"claude-3","system":"be nice","messages":[{"role":"user","content":"hi"}],"max_tokens":100}`)
	req, err := a.RequestFromWire(body)
	require.NoError(t, err)
	assert.Equal(t, "be nice", req.System)
	assert.Equal(t, 100, *req.MaxOutputTokens)
}

func TestRequestFromWire_SystemRoleMessageRejected(t *testing.T) {
	a := New()
	body := []byte(`{"model":"claude-3","messages":[{"role":"system","content":"nope"}],"max_tokens":10}`)
	_, err := a.RequestFromWire(body)
	require.Error(t, err)
	var ve *dialect.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, dialect.ValidationSystemRole, ve.Kind)
}

func TestRequestFromWire_TemperatureOutOfRange(t *testing.T) {
	a := New()
	body := []byte(`{"model":"claude-3","messages":[{"role":"user","content":"hi"}],"max_tokens":10,"temperature":1.5}`)
	_, err := a.RequestFromWire(body)
	require.Error(t, err)
	var ve *dialect.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, dialect.ValidationTemperature, ve.Kind)
}

func TestRequestFromWire_ToolUseAndResult(t *testing.T) {
	a := New()
	body := []byte(`{"model":"claude-3","max_tokens":10,"messages":[
		{"role":"user","content":"weather?"},
		{"role":"assistant","content":[{"type":"tool_use","id":"toolu_1","name":"get_weather","input":{"city":"nyc"}}]},
		{"role":"user","content":[{"type":"tool_result","tool_use_id":"toolu_1","content":"72F"}]}
	]}`)
	req, err := a.RequestFromWire(body)
	require.NoError(t, err)
	require.Len(t, req.Messages, 3)
	assert.Equal(t, "toolu_1", req.Messages[1].ToolCalls[0].ID)
	assert.Equal(t, normalized.RoleTool, req.Messages[2].Role)
	assert.Equal(t, "toolu_1", req.Messages[2].ToolResults[0].ToolCallID)
}

func TestRequestFromWire_DanglingToolResult(t *testing.T) {
	a := New()
	body := []byte(`{"model":"claude-3","max_tokens":10,"messages":[
		{"role":"user","content":[{"type":"tool_result","tool_use_id":"toolu_missing","content":"x"}]}
	]}`)
	_, err := a.RequestFromWire(body)
	require.Error(t, err)
	var ve *dialect.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, dialect.ValidationDanglingTool, ve.Kind)
}

func TestRequestToWire_ToolRoleBecomesUserToolResult(t *testing.T) {
	a := New()
	req := &normalized.Request{
		Model:           "claude-3",
		MaxOutputTokens: intPtr(10),
		Messages: []normalized.Message{
			{Role: normalized.RoleUser, Content: normalized.TextContent("weather?")},
			{Role: normalized.RoleAssistant, ToolCalls: []normalized.ToolCall{{ID: "call_1", Name: "get_weather", RawArguments: `{"city":"nyc"}`}}},
			{Role: normalized.RoleTool, ToolResults: []normalized.ToolResult{{ToolCallID: "call_1", Content: "72F"}}},
		},
	}
	wire, err := a.RequestToWire(req)
	require.NoError(t, err)

	back, err := a.RequestFromWire(wire)
	require.NoError(t, err)
	assert.Equal(t, normalized.RoleTool, back.Messages[2].Role)
}

func TestResponseRoundTrip(t *testing.T) {
	a := New()
	resp := &normalized.Response{
		ID:    "msg_1",
		Model: "claude-3",
		Choices: []normalized.Choice{{
			Message:      normalized.Message{Role: normalized.RoleAssistant, Content: normalized.TextContent("hello")},
			FinishReason: normalized.FinishToolCalls,
		}},
		Usage: normalized.NewUsage(10, 5),
	}
	wire, err := a.ResponseToWire(resp)
	require.NoError(t, err)

	back, err := a.ResponseFromWire(wire)
	require.NoError(t, err)
	assert.Equal(t, "hello", back.Choices[0].Message.Content.String())
	assert.Equal(t, normalized.FinishToolCalls, back.Choices[0].FinishReason)
	assert.Equal(t, 15, back.Usage.TotalTokens)
}

func TestFinishReasonMapping(t *testing.T) {
	assert.Equal(t, normalized.FinishStop, finishFromWire("end_turn"))
	assert.Equal(t, normalized.FinishLength, finishFromWire("max_tokens"))
	assert.Equal(t, normalized.FinishToolCalls, finishFromWire("tool_use"))
	assert.Equal(t, normalized.FinishContentFilter, finishFromWire("stop_sequence"))
	assert.Equal(t, "end_turn", finishToWireReason(normalized.FinishStop))
}

func TestStreamDecoder_FullSequence(t *testing.T) {
	a := New()
	dec := a.NewStreamDecoder()

	events, err := dec.Decode([]byte(`{"type":"message_start","message":{"id":"msg_1","model":"claude-3","role":"assistant","usage":{"input_tokens":5,"output_tokens":0}}}`))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, normalized.StreamStart, events[0].Kind)

	events, err = dec.Decode([]byte(`{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`))
	require.NoError(t, err)
	assert.Empty(t, events)

	events, err = dec.Decode([]byte(`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"hi"}}`))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "hi", events[0].Delta.Content)

	events, err = dec.Decode([]byte(`{"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":3}}`))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, normalized.StreamUsage, events[0].Kind)
	assert.Equal(t, normalized.StreamEnd, events[1].Kind)
	assert.Equal(t, normalized.FinishStop, events[1].FinishReason)
}

func TestStreamEncoder_TextSequence(t *testing.T) {
	a := New()
	enc := a.NewStreamEncoder()

	frames, err := enc.Encode(normalized.StartEvent("msg_1", "claude-3"))
	require.NoError(t, err)
	assert.Len(t, frames, 2) // message_start + content_block_start

	frames, err = enc.Encode(normalized.DeltaEvent(0, normalized.DeltaContent{Content: "hi"}))
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Contains(t, string(frames[0]), "event: content_block_delta")

	frames, err = enc.Encode(normalized.EndEvent(normalized.FinishStop))
	require.NoError(t, err)
	require.Len(t, frames, 3) // content_block_stop, message_delta, message_stop
}

func intPtr(i int) *int { return &i }
