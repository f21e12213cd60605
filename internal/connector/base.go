package connector

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/lunaroute/lunaroute/internal/dialect"
	"github.com/lunaroute/lunaroute/internal/lunaerr"
	"github.com/lunaroute/lunaroute/internal/normalized"
	"github.com/lunaroute/lunaroute/internal/retry"
	"github.com/lunaroute/lunaroute/internal/retryafter"
	"github.com/lunaroute/lunaroute/internal/sse"
	"github.com/lunaroute/lunaroute/internal/template"
	"github.com/lunaroute/lunaroute/internal/transport"
)

// AuthFunc attaches a provider's credentials to an outbound request. The
// two concrete dialects each supply one: Bearer for OpenAI-style,
// x-api-key + anthropic-version for Anthropic-style (spec.md §4.B).
type AuthFunc func(httpReq *http.Request, apiKey string)

// Base implements the send/stream/classify machinery shared by every
// dialect's connector; concrete connector packages embed it and supply
// the dialect adapter, endpoint path, and auth function.
type Base struct {
	Provider    Provider
	Adapter     dialect.Adapter
	Pool        *transport.Pool
	Auth        AuthFunc
	Endpoint    string // full URL, e.g. "https://api.openai.com/v1/chat/completions"
	RetryConfig retry.Config
	Caps        Capabilities
	Logger      *slog.Logger
}

// Capabilities reports this connector's static feature set.
func (b *Base) Capabilities() Capabilities { return b.Caps }

var _ Connector = (*Base)(nil)

func (b *Base) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}

func (b *Base) apiKey() (string, error) {
	switch b.Provider.Credential.Kind {
	case CredentialEnv:
		v, ok := os.LookupEnv(b.Provider.Credential.Value)
		if !ok {
			return "", fmt.Errorf("connector: environment variable %q is not set", b.Provider.Credential.Value)
		}
		return v, nil
	case CredentialFile:
		data, err := os.ReadFile(b.Provider.Credential.Value)
		if err != nil {
			return "", fmt.Errorf("connector: reading credential file: %w", err)
		}
		return string(bytes.TrimSpace(data)), nil
	default:
		return b.Provider.Credential.Value, nil
	}
}

func (b *Base) templateVars(req *normalized.Request) template.Vars {
	return template.Vars{
		"provider": b.Provider.ID,
		"model":    req.Model,
	}
}

func (b *Base) newHTTPRequest(ctx context.Context, payload []byte, vars template.Vars) (*http.Request, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	apiKey, err := b.apiKey()
	if err != nil {
		return nil, err
	}
	b.Auth(httpReq, apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	for name, value := range b.Provider.Headers {
		httpReq.Header.Set(name, template.Expand(value, vars))
	}
	return httpReq, nil
}

// Send performs one non-streaming request, retrying bounded transient
// failures per the connector's RetryConfig (spec.md §4.B).
func (b *Base) Send(ctx context.Context, req *normalized.Request) (*normalized.Response, error) {
	payload, err := b.Adapter.RequestToWire(req)
	if err != nil {
		return nil, lunaerr.New(lunaerr.KindInternal, b.Provider.ID, err)
	}
	vars := b.templateVars(req)

	var result *normalized.Response
	var lastRetryAfter time.Duration
	cfg := b.RetryConfig
	cfg.ShouldRetry = func(err error) bool {
		var le *lunaerr.Error
		if !lunaerr.AsError(err, &le) {
			return false
		}
		return le.Kind.Retryable()
	}
	cfg.RetryAfter = func(attempt int, err error) (time.Duration, bool) {
		if lastRetryAfter > 0 {
			return lastRetryAfter, true
		}
		return 0, false
	}

	err = retry.Do(ctx, cfg, func(ctx context.Context, attempt int) error {
		lastRetryAfter = 0
		httpReq, buildErr := b.newHTTPRequest(ctx, payload, vars)
		if buildErr != nil {
			return lunaerr.New(lunaerr.KindInternal, b.Provider.ID, buildErr)
		}

		httpResp, doErr := b.Pool.Client().Do(httpReq)
		if doErr != nil {
			return lunaerr.FromNetworkError(b.Provider.ID, doErr)
		}
		defer httpResp.Body.Close()

		body, readErr := io.ReadAll(decodedBody(httpResp))
		if readErr != nil {
			return lunaerr.FromNetworkError(b.Provider.ID, readErr)
		}

		if httpResp.StatusCode >= 300 {
			if ra := httpResp.Header.Get("Retry-After"); ra != "" {
				if d, ok := retryafter.Parse(ra, b.logger()); ok {
					lastRetryAfter = d
				}
			}
			classified := lunaerr.FromStatus(b.Provider.ID, httpResp.StatusCode, fmt.Errorf("upstream status %d: %s", httpResp.StatusCode, string(body)))
			if httpResp.StatusCode == http.StatusTooManyRequests {
				classified.RetryAfter = durationSecondsPtr(lastRetryAfter)
			}
			return classified
		}

		resp, parseErr := b.Adapter.ResponseFromWire(body)
		if parseErr != nil {
			return lunaerr.New(lunaerr.KindInternal, b.Provider.ID, parseErr)
		}
		result = resp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Stream performs one streaming request, returning a channel of
// normalized events. The channel is closed once a terminal End/Error
// event has been delivered or the upstream body ends; a failure before a
// successful response status arrives is returned as an error instead.
// Per spec.md §4.G, once the first event is delivered successfully the
// stream is bound to this provider: a mid-stream failure surfaces as an
// Error event rather than retrying or falling back.
func (b *Base) Stream(ctx context.Context, req *normalized.Request) (<-chan normalized.StreamEvent, error) {
	payload, err := b.Adapter.RequestToWire(req)
	if err != nil {
		return nil, lunaerr.New(lunaerr.KindInternal, b.Provider.ID, err)
	}
	vars := b.templateVars(req)

	httpReq, err := b.newHTTPRequest(ctx, payload, vars)
	if err != nil {
		return nil, lunaerr.New(lunaerr.KindInternal, b.Provider.ID, err)
	}

	httpResp, err := b.Pool.StreamingClient().Do(httpReq)
	if err != nil {
		return nil, lunaerr.FromNetworkError(b.Provider.ID, err)
	}

	if httpResp.StatusCode >= 300 {
		body, _ := io.ReadAll(decodedBody(httpResp))
		httpResp.Body.Close()
		return nil, lunaerr.FromStatus(b.Provider.ID, httpResp.StatusCode, fmt.Errorf("upstream status %d: %s", httpResp.StatusCode, string(body)))
	}

	events := make(chan normalized.StreamEvent)
	go b.pumpStream(httpResp, events)
	return events, nil
}

func (b *Base) pumpStream(httpResp *http.Response, events chan<- normalized.StreamEvent) {
	defer close(events)
	defer httpResp.Body.Close()

	parser := sse.NewParser(decodedBody(httpResp))
	decoder := b.Adapter.NewStreamDecoder()

	for {
		frame, err := parser.Next()
		if err != nil {
			if err != io.EOF {
				events <- normalized.ErrorEvent(err.Error())
			}
			return
		}

		decoded, err := decoder.Decode([]byte(frame.Data))
		if err != nil {
			events <- normalized.ErrorEvent(err.Error())
			return
		}
		for _, e := range decoded {
			events <- e
			if e.Kind == normalized.StreamEnd || e.Kind == normalized.StreamError {
				return
			}
		}
	}
}

func durationSecondsPtr(d time.Duration) *int64 {
	secs := int64(d.Seconds())
	return &secs
}

// decodedBody returns a reader over resp.Body, transparently unwrapping
// brotli when the upstream set Content-Encoding: br. net/http's
// transport only auto-decompresses gzip, so a provider or its CDN
// answering with brotli (common behind Cloudflare) would otherwise reach
// the dialect adapter as undecodable bytes.
func decodedBody(resp *http.Response) io.Reader {
	if resp.Header.Get("Content-Encoding") == "br" {
		return brotli.NewReader(resp.Body)
	}
	return resp.Body
}
