// Package bypass implements the Path Classifier + Bypass (spec.md §4.I):
// any request whose path is not one of the intercepted dialect/health/
// metrics prefixes is, when enabled and a bypass provider is configured,
// forwarded byte-for-byte to that provider's base URL with hop-by-hop
// headers stripped and dialect-appropriate auth injected. Unmatched paths
// 404 when bypass is disabled or unconfigured.
//
// Grounded on the teacher's internal/handlers/proxy.go ServeHTTP, trimmed
// of its request/response body transformation (the bypass path is a pure
// pass-through, unlike the dialect-translating ingress handlers).
package bypass

import (
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/lunaroute/lunaroute/internal/transport"
)

// hopByHop lists the headers that must never be forwarded across a proxy
// hop, in either direction (spec.md §4.I).
var hopByHop = []string{
	"Connection",
	"Keep-Alive",
	"Transfer-Encoding",
	"Upgrade",
	"Te",
	"Trailers",
	"Proxy-Authenticate",
	"Proxy-Authorization",
}

// CredentialKind mirrors connector.CredentialKind without importing it,
// keeping this package independent of the routing stack.
type CredentialKind string

const (
	CredentialPlain CredentialKind = "plain"
	CredentialEnv   CredentialKind = "env"
	CredentialFile  CredentialKind = "file"
)

// Provider is the bypass target's static configuration.
type Provider struct {
	BaseURL        string
	CredentialKind CredentialKind
	Credential     string // literal key, env var name, or file path per CredentialKind
	AnthropicAuth  bool   // when true, inject x-api-key + anthropic-version instead of Bearer
}

// Classifier decides whether a request path is intercepted by a dialect
// handler (and therefore must never reach the bypass) or is free to pass
// through.
type Classifier struct {
	interceptedPrefixes []string
}

// NewClassifier builds a Classifier from the set of paths the ingress
// dialect handlers and operational endpoints own.
func NewClassifier(interceptedPrefixes ...string) *Classifier {
	return &Classifier{interceptedPrefixes: interceptedPrefixes}
}

// Intercepted reports whether path belongs to a dialect/health/metrics
// handler rather than the bypass.
func (c *Classifier) Intercepted(path string) bool {
	for _, prefix := range c.interceptedPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Handler forwards unmatched requests to a configured provider.
type Handler struct {
	Classifier *Classifier
	Enabled    bool
	Provider   *Provider
	Pool       *transport.Pool
}

// NewHandler builds a bypass Handler.
func NewHandler(classifier *Classifier, enabled bool, provider *Provider, pool *transport.Pool) *Handler {
	return &Handler{Classifier: classifier, Enabled: enabled, Provider: provider, Pool: pool}
}

// ServeHTTP forwards r verbatim to h.Provider.BaseURL+r.URL.Path, or
// responds 404 when bypass is disabled, unconfigured, or the path belongs
// to a dialect/operational handler. The Classifier check is a deliberate
// second line of defense: correctness must not depend solely on this
// handler being registered as the mux's least-specific route.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.Enabled || h.Provider == nil || h.Classifier.Intercepted(r.URL.Path) {
		http.NotFound(w, r)
		return
	}

	target := strings.TrimSuffix(h.Provider.BaseURL, "/") + r.URL.Path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	upstreamReq, err := http.NewRequestWithContext(r.Context(), r.Method, target, r.Body)
	if err != nil {
		http.Error(w, "bypass: failed to build upstream request", http.StatusInternalServerError)
		return
	}
	upstreamReq.Header = cloneHeaderWithoutHopByHop(r.Header)
	upstreamReq.Header.Del("Host")

	if err := h.injectAuth(upstreamReq); err != nil {
		http.Error(w, "bypass: credential resolution failed", http.StatusInternalServerError)
		return
	}

	client := h.Pool.Client()
	if r.Header.Get("Accept") == "text/event-stream" {
		client = h.Pool.StreamingClient()
	}

	resp, err := client.Do(upstreamReq)
	if err != nil {
		http.Error(w, "bypass: upstream request failed", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	outHeader := w.Header()
	for key, values := range cloneHeaderWithoutHopByHop(resp.Header) {
		for _, v := range values {
			outHeader.Add(key, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

func (h *Handler) injectAuth(req *http.Request) error {
	key, err := h.resolveCredential()
	if err != nil {
		return err
	}
	if key == "" {
		return nil
	}
	if h.Provider.AnthropicAuth {
		req.Header.Set("x-api-key", key)
		req.Header.Set("anthropic-version", "2023-06-01")
		return nil
	}
	req.Header.Set("Authorization", "Bearer "+key)
	return nil
}

func (h *Handler) resolveCredential() (string, error) {
	switch h.Provider.CredentialKind {
	case CredentialEnv:
		return os.Getenv(h.Provider.Credential), nil
	case CredentialFile:
		data, err := os.ReadFile(h.Provider.Credential)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(data)), nil
	default:
		return h.Provider.Credential, nil
	}
}

func cloneHeaderWithoutHopByHop(src http.Header) http.Header {
	out := src.Clone()
	for _, h := range hopByHop {
		out.Del(h)
	}
	return out
}
