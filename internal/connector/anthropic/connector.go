// Package anthropic implements the Anthropic-dialect provider connector
// (spec.md §4.B), wrapping connector.Base with x-api-key/anthropic-version
// authentication and the messages endpoint.
package anthropic

import (
	"net/http"

	"github.com/lunaroute/lunaroute/internal/connector"
	"github.com/lunaroute/lunaroute/internal/dialect/anthropic"
	"github.com/lunaroute/lunaroute/internal/retry"
	"github.com/lunaroute/lunaroute/internal/transport"
)

// DefaultEndpoint is used when a provider config omits base_url.
const DefaultEndpoint = "https://api.anthropic.com/v1/messages"

// APIVersion is the anthropic-version header value this connector speaks.
const APIVersion = "2023-06-01"

// New builds an Anthropic-dialect connector for provider p.
func New(p connector.Provider, pool *transport.Pool) *connector.Base {
	endpoint := p.BaseURL
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	return &connector.Base{
		Provider: p,
		Adapter:  anthropic.New(),
		Pool:     pool,
		Auth: func(httpReq *http.Request, apiKey string) {
			httpReq.Header.Set("x-api-key", apiKey)
			httpReq.Header.Set("anthropic-version", APIVersion)
		},
		Endpoint:    endpoint,
		RetryConfig: retry.DefaultConfig(),
		Caps: connector.Capabilities{
			SupportsStreaming: true,
			SupportsTools:     true,
			SupportsVision:    true,
		},
	}
}
