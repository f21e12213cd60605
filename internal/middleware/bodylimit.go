package middleware

import "net/http"

// BodySizeLimiter caps request bodies at maxBytes (spec.md §4.K: 413 on
// overflow), third in the fixed chain. The cap is enforced lazily by
// http.MaxBytesReader; oversized bodies fail when the downstream handler
// reads the body, before any JSON parsing.
func BodySizeLimiter(maxBytes int64) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
