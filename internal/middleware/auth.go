package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// AuthMiddleware checks an inbound gateway API key. Per spec.md §4.K,
// ingress auth is a future mode, not currently enforced — the middleware
// exists and is wired into the chain, but is a no-op while APIKey is
// empty, so it ships dormant rather than half-built.
type AuthMiddleware struct {
	apiKey string
	logger *slog.Logger
}

// NewAuthMiddleware builds the auth middleware. An empty apiKey disables
// enforcement entirely.
func NewAuthMiddleware(apiKey string, logger *slog.Logger) Middleware {
	am := &AuthMiddleware{apiKey: apiKey, logger: logger}
	return am.middleware
}

func (am *AuthMiddleware) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := am.authenticate(r); err != nil {
			am.logger.Warn("authentication failed", "error", err, "remote_addr", r.RemoteAddr)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (am *AuthMiddleware) authenticate(r *http.Request) error {
	if am.apiKey == "" {
		return nil
	}

	var token string
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		token = strings.TrimPrefix(auth, "Bearer ")
	} else if apiKey := r.Header.Get("X-API-Key"); apiKey != "" {
		token = apiKey
	}

	if token == "" {
		return errors.New("no authentication token provided")
	}
	if token != am.apiKey {
		return errors.New("invalid API key")
	}
	return nil
}
