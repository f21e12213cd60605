package middleware

import (
	"net/http"
	"strings"
)

// CORSConfig controls the second middleware in the fixed chain (spec.md
// §4.M): "CORS (if enabled)".
type CORSConfig struct {
	Enabled        bool
	AllowedOrigins []string // "*" permits any origin
}

type corsMiddleware struct {
	cfg CORSConfig
}

// NewCORS builds the CORS middleware. When cfg.Enabled is false it is a
// pass-through.
func NewCORS(cfg CORSConfig) Middleware {
	cm := &corsMiddleware{cfg: cfg}
	return cm.middleware
}

func (cm *corsMiddleware) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !cm.cfg.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		origin := r.Header.Get("Origin")
		if origin != "" && cm.allowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-API-Key")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (cm *corsMiddleware) allowed(origin string) bool {
	for _, allowed := range cm.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}
