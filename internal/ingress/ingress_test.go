package ingress

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	anthropicdialect "github.com/lunaroute/lunaroute/internal/dialect/anthropic"
	openaidialect "github.com/lunaroute/lunaroute/internal/dialect/openai"
	"github.com/lunaroute/lunaroute/internal/lunaerr"
	"github.com/lunaroute/lunaroute/internal/normalized"
)

type fakeRouter struct {
	resp      *normalized.Response
	sendErr   error
	streamSeq []normalized.StreamEvent
}

func (f *fakeRouter) Send(ctx context.Context, req *normalized.Request) (*normalized.Response, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return f.resp, nil
}

func (f *fakeRouter) Stream(ctx context.Context, req *normalized.Request) (<-chan normalized.StreamEvent, error) {
	ch := make(chan normalized.StreamEvent, len(f.streamSeq))
	for _, e := range f.streamSeq {
		ch <- e
	}
	close(ch)
	return ch, nil
}

func TestHandler_SyncRoundTrip(t *testing.T) {
	fr := &fakeRouter{resp: &normalized.Response{
		ID:    "resp-1",
		Model: "gpt-4o",
		Choices: []normalized.Choice{{
			Message:      normalized.Message{Role: normalized.RoleAssistant, Content: normalized.TextContent("hi there")},
			FinishReason: normalized.FinishStop,
		}},
		Usage: normalized.NewUsage(5, 5),
	}}
	h := NewHandler(openaidialect.New(), fr, 1<<20)

	body := `{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "hi there")
}

func TestHandler_MalformedJSONReturns400WithEnvelope(t *testing.T) {
	h := NewHandler(openaidialect.New(), &fakeRouter{}, 1<<20)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"error"`)
}

func TestHandler_AnthropicErrorEnvelopeShape(t *testing.T) {
	h := NewHandler(anthropicdialect.New(), &fakeRouter{}, 1<<20)
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"type":"error"`)
}

func TestHandler_RateLimitMapsTo429(t *testing.T) {
	fr := &fakeRouter{sendErr: lunaerr.FromStatus("openai", 429, assertError("rate limited"))}
	h := NewHandler(openaidialect.New(), fr, 1<<20)
	body := `{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestHandler_AllProvidersFailedMapsTo503(t *testing.T) {
	fr := &fakeRouter{sendErr: lunaerr.New(lunaerr.KindAllFailed, "", assertError("all down"))}
	h := NewHandler(openaidialect.New(), fr, 1<<20)
	body := `{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandler_StreamWritesSSEFrames(t *testing.T) {
	fr := &fakeRouter{streamSeq: []normalized.StreamEvent{
		normalized.StartEvent("id-1", "gpt-4o"),
		normalized.DeltaEvent(0, normalized.DeltaContent{Content: "hi"}),
		normalized.EndEvent(normalized.FinishStop),
	}}
	h := NewHandler(openaidialect.New(), fr, 1<<20)
	body := `{"model":"gpt-4o","stream":true,"messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "data: [DONE]")
}

type assertError string

func (e assertError) Error() string { return string(e) }
