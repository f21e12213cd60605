package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type contextKey string

const (
	keyRequestID contextKey = "request_id"
	keyTraceID   contextKey = "trace_id"
	keyClientIP  contextKey = "client_ip"
	keyUserAgent contextKey = "user_agent"
)

// RequestInfo is the bundle of fields the request-context middleware
// extracts, retrievable downstream via FromContext.
type RequestInfo struct {
	RequestID string
	TraceID   string
	ClientIP  string
	UserAgent string
}

// RequestContext assigns or propagates an x-request-id, parses a W3C
// traceparent header, and extracts client IP and user agent — fourth in
// the fixed chain, ahead of logging and auth (spec.md §4.M).
func RequestContext() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info := RequestInfo{
				RequestID: requestID(r),
				TraceID:   traceID(r),
				ClientIP:  clientIP(r),
				UserAgent: r.Header.Get("User-Agent"),
			}

			w.Header().Set("x-request-id", info.RequestID)

			ctx := context.WithValue(r.Context(), keyRequestID, info.RequestID)
			ctx = context.WithValue(ctx, keyTraceID, info.TraceID)
			ctx = context.WithValue(ctx, keyClientIP, info.ClientIP)
			ctx = context.WithValue(ctx, keyUserAgent, info.UserAgent)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func requestID(r *http.Request) string {
	if id := r.Header.Get("x-request-id"); id != "" {
		return id
	}
	return uuid.NewString()
}

// traceID extracts the trace-id field of a W3C traceparent header
// ("version-traceid-parentid-flags"); returns "" if absent or malformed.
func traceID(r *http.Request) string {
	tp := r.Header.Get("traceparent")
	parts := strings.Split(tp, "-")
	if len(parts) != 4 {
		return ""
	}
	return parts[1]
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first := strings.TrimSpace(strings.Split(fwd, ",")[0])
		if first != "" {
			return first
		}
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return real
	}
	return r.RemoteAddr
}

// FromContext retrieves the RequestInfo assigned by RequestContext.
func FromContext(ctx context.Context) RequestInfo {
	info := RequestInfo{}
	if v, ok := ctx.Value(keyRequestID).(string); ok {
		info.RequestID = v
	}
	if v, ok := ctx.Value(keyTraceID).(string); ok {
		info.TraceID = v
	}
	if v, ok := ctx.Value(keyClientIP).(string); ok {
		info.ClientIP = v
	}
	if v, ok := ctx.Value(keyUserAgent).(string); ok {
		info.UserAgent = v
	}
	return info
}
