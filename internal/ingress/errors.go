package ingress

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/lunaroute/lunaroute/internal/dialect"
	"github.com/lunaroute/lunaroute/internal/lunaerr"
	"github.com/lunaroute/lunaroute/internal/router"
)

// statusFor maps any error this package can see to the HTTP status table
// of spec.md §4.K.
func statusFor(err error) int {
	var ve *dialect.ValidationError
	if errors.As(err, &ve) {
		return ve.HTTPStatus()
	}

	var nre *router.NoRouteError
	if errors.As(err, &nre) {
		return http.StatusBadRequest
	}

	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return http.StatusRequestEntityTooLarge
	}

	var le *lunaerr.Error
	if lunaerr.AsError(err, &le) {
		switch le.Kind {
		case lunaerr.KindClientInput:
			if le.Status != 0 {
				return le.Status
			}
			return http.StatusBadRequest
		case lunaerr.KindAuth:
			return http.StatusBadGateway
		case lunaerr.KindRateLimit:
			return http.StatusTooManyRequests
		case lunaerr.KindTransient:
			if errors.Is(le.Cause, context.DeadlineExceeded) {
				return http.StatusGatewayTimeout
			}
			return http.StatusBadGateway
		case lunaerr.KindCircuitOpen, lunaerr.KindAllFailed:
			return http.StatusServiceUnavailable
		default:
			return http.StatusInternalServerError
		}
	}

	return http.StatusInternalServerError
}

// writeError renders err as the requesting dialect's error envelope.
func writeError(w http.ResponseWriter, name dialect.Name, err error) {
	status := statusFor(err)
	body := errorEnvelope(name, status, err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

func errorEnvelope(name dialect.Name, status int, err error) []byte {
	message := err.Error()
	switch name {
	case dialect.Anthropic:
		return []byte(fmt.Sprintf(`{"type":"error","error":{"type":%q,"message":%q}}`, anthropicErrorType(status), message))
	default:
		return []byte(fmt.Sprintf(`{"error":{"message":%q,"type":%q,"code":%q}}`, message, openAIErrorType(status), openAIErrorCode(status)))
	}
}

func openAIErrorType(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "authentication_error"
	case http.StatusTooManyRequests:
		return "rate_limit_error"
	case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusRequestEntityTooLarge:
		return "invalid_request_error"
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return "api_error"
	default:
		return "server_error"
	}
}

func openAIErrorCode(status int) string {
	switch status {
	case http.StatusRequestEntityTooLarge:
		return "request_too_large"
	case http.StatusTooManyRequests:
		return "rate_limit_exceeded"
	default:
		return ""
	}
}

func anthropicErrorType(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "authentication_error"
	case http.StatusTooManyRequests:
		return "rate_limit_error"
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return "invalid_request_error"
	case http.StatusRequestEntityTooLarge:
		return "request_too_large"
	case http.StatusServiceUnavailable:
		return "overloaded_error"
	default:
		return "api_error"
	}
}
