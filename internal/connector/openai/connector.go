// Package openai implements the OpenAI-dialect provider connector
// (spec.md §4.B), wrapping connector.Base with Bearer authentication and
// the chat-completions endpoint.
package openai

import (
	"net/http"

	"github.com/lunaroute/lunaroute/internal/connector"
	"github.com/lunaroute/lunaroute/internal/dialect/openai"
	"github.com/lunaroute/lunaroute/internal/retry"
	"github.com/lunaroute/lunaroute/internal/transport"
)

// DefaultEndpoint is used when a provider config omits base_url.
const DefaultEndpoint = "https://api.openai.com/v1/chat/completions"

// New builds an OpenAI-dialect connector for provider p.
func New(p connector.Provider, pool *transport.Pool) *connector.Base {
	endpoint := p.BaseURL
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	return &connector.Base{
		Provider: p,
		Adapter:  openai.New(),
		Pool:     pool,
		Auth: func(httpReq *http.Request, apiKey string) {
			httpReq.Header.Set("Authorization", "Bearer "+apiKey)
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
