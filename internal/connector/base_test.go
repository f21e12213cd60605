package connector

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dialectopenai "github.com/lunaroute/lunaroute/internal/dialect/openai"
	"github.com/lunaroute/lunaroute/internal/lunaerr"
	"github.com/lunaroute/lunaroute/internal/normalized"
	"github.com/lunaroute/lunaroute/internal/retry"
	"github.com/lunaroute/lunaroute/internal/transport"
)

func testBase(t *testing.T, serverURL string, authHeader *string) *Base {
	t.Helper()
	return &Base{
		Provider: Provider{ID: "test", Credential: Credential{Kind: CredentialPlain, Value: "sk-test"}},
		Adapter:  dialectopenai.New(),
		Pool:     transport.New(transport.DefaultConfig()),
		Auth: func(httpReq *http.Request, apiKey string) {
			httpReq.Header.Set("Authorization", "Bearer "+apiKey)
			if authHeader != nil {
				*authHeader = httpReq.Header.Get("Authorization")
			}
		},
		Endpoint:    serverURL,
		RetryConfig: retry.Config{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2},
		Caps:        Capabilities{SupportsStreaming: true},
	}
}

func TestSend_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"resp_1","model":"gpt-4o","choices":[{"index":0,"message":{"role":"assistant","content":"hi"},"finish_reason":"stop"}],"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}}`))
	}))
	defer srv.Close()

	var authHeader string
	b := testBase(t, srv.URL, &authHeader)
	resp, err := b.Send(context.Background(), &normalized.Request{Model: "gpt-4o", Messages: []normalized.Message{{Role: normalized.RoleUser, Content: normalized.TextContent("hi")}}})
	require.NoError(t, err)
	assert.Equal(t, "resp_1", resp.ID)
	assert.Equal(t, "Bearer sk-test", authHeader)
}

func TestSend_DecodesBrotliResponseBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		bw := brotli.NewWriter(&buf)
		bw.Write([]byte(`{"id":"resp_br","model":"gpt-4o","choices":[{"index":0,"message":{"role":"assistant","content":"hi"},"finish_reason":"stop"}],"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}}`))
		bw.Close()
		w.Header().Set("Content-Encoding", "br")
		w.Write(buf.Bytes())
	}))
	defer srv.Close()

	b := testBase(t, srv.URL, nil)
	resp, err := b.Send(context.Background(), &normalized.Request{Model: "gpt-4o", Messages: []normalized.Message{{Role: normalized.RoleUser, Content: normalized.TextContent("hi")}}})
	require.NoError(t, err)
	assert.Equal(t, "resp_br", resp.ID)
}

func TestSend_ClientErrorNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"bad request"}`))
	}))
	defer srv.Close()

	b := testBase(t, srv.URL, nil)
	_, err := b.Send(context.Background(), &normalized.Request{Model: "gpt-4o", Messages: []normalized.Message{{Role: normalized.RoleUser, Content: normalized.TextContent("hi")}}})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, lunaerr.KindClientInput, lunaerr.KindOf(err))
}

func TestSend_TransientRetriedThenSucceeds(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"id":"resp_1","model":"gpt-4o","choices":[{"index":0,"message":{"role":"assistant","content":"hi"},"finish_reason":"stop"}],"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}}`))
	}))
	defer srv.Close()

	b := testBase(t, srv.URL, nil)
	resp, err := b.Send(context.Background(), &normalized.Request{Model: "gpt-4o", Messages: []normalized.Message{{Role: normalized.RoleUser, Content: normalized.TextContent("hi")}}})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "resp_1", resp.ID)
}

func TestSend_RateLimitHonorsRetryAfter(t *testing.T) {
	calls := 0
	var firstCallAt, secondCallAt time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			firstCallAt = time.Now()
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		secondCallAt = time.Now()
		w.Write([]byte(`{"id":"resp_1","model":"gpt-4o","choices":[{"index":0,"message":{"role":"assistant","content":"hi"},"finish_reason":"stop"}],"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}}`))
	}))
	defer srv.Close()

	b := testBase(t, srv.URL, nil)
	_, err := b.Send(context.Background(), &normalized.Request{Model: "gpt-4o", Messages: []normalized.Message{{Role: normalized.RoleUser, Content: normalized.TextContent("hi")}}})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, secondCallAt.Sub(firstCallAt), 900*time.Millisecond)
}

func TestStream_DeliversEventsThenCloses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		w.Write([]byte("data: {\"id\":\"c1\",\"model\":\"gpt-4o\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"hi\"}}]}\n\n"))
		flusher.Flush()
		w.Write([]byte("data: [DONE]\n\n"))
		flusher.Flush()
	}))
	defer srv.Close()

	b := testBase(t, srv.URL, nil)
	events, err := b.Stream(context.Background(), &normalized.Request{Model: "gpt-4o", Messages: []normalized.Message{{Role: normalized.RoleUser, Content: normalized.TextContent("hi")}}})
	require.NoError(t, err)

	var collected []normalized.StreamEvent
	for e := range events {
		collected = append(collected, e)
	}
	require.NotEmpty(t, collected)
	assert.Equal(t, normalized.StreamEnd, collected[len(collected)-1].Kind)
}
