package middleware

import (
	"log/slog"
	"net/http"
)

// Middleware represents a middleware function
type Middleware func(http.Handler) http.Handler

// Chain represents a middleware chain
type Chain struct {
	middlewares []Middleware
}

// New creates a new middleware chain
func New(middlewares ...Middleware) Chain {
	return Chain{middlewares: middlewares}
}

// Then adds more middleware to the chain
func (c Chain) Then(middlewares ...Middleware) Chain {
	return Chain{middlewares: append(c.middlewares, middlewares...)}
}

// Handler applies all middleware in the chain to the given handler
func (c Chain) Handler(handler http.Handler) http.Handler {
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		handler = c.middlewares[i](handler)
	}

	return handler
}

// Config configures the MiddlewareSet.
type Config struct {
	CORS          CORSConfig
	MaxBodyBytes  int64
	GatewayAPIKey string // empty disables auth enforcement
}

// MiddlewareSet contains all configured middleware for easy composition.
type MiddlewareSet struct {
	SecurityHeaders Middleware
	CORS            Middleware
	BodySizeLimiter Middleware
	RequestContext  Middleware
	Logging         Middleware
	Auth            Middleware
}

// NewMiddlewareSet creates the complete set of middleware with its
// dependencies resolved.
func NewMiddlewareSet(cfg Config, logger *slog.Logger) MiddlewareSet {
	return MiddlewareSet{
		SecurityHeaders: SecurityHeaders(),
		CORS:            NewCORS(cfg.CORS),
		BodySizeLimiter: BodySizeLimiter(cfg.MaxBodyBytes),
		RequestContext:  RequestContext(),
		Logging:         NewLoggingMiddleware(logger),
		Auth:            NewAuthMiddleware(cfg.GatewayAPIKey, logger),
	}
}

// DefaultChain is the fixed order from spec.md §4.M: security headers ->
// CORS -> body-size limiter -> request-context -> user handler. Logging
// and auth are appended last, closest to the handler, so every entry they
// log already carries a request-id.
func (ms MiddlewareSet) DefaultChain() Chain {
	return New(
		ms.SecurityHeaders,
		ms.CORS,
		ms.BodySizeLimiter,
		ms.RequestContext,
		ms.Logging,
		ms.Auth,
	)
}

// HealthChain is the chain for health/readiness/metrics endpoints: the
// fixed ambient middleware, without auth.
func (ms MiddlewareSet) HealthChain() Chain {
	return New(
		ms.SecurityHeaders,
		ms.CORS,
		ms.BodySizeLimiter,
		ms.RequestContext,
		ms.Logging,
	)
}
