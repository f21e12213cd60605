// Package retryafter interprets the HTTP Retry-After header per spec.md
// §4.F: either a non-negative integer number of seconds, or an RFC-2822
// HTTP date, with a safety cap against wildly large upstream values.
package retryafter

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// SafetyCap is the hard ceiling on any parsed duration (48 hours).
const SafetyCap = 48 * time.Hour

// AnomalyThreshold is the point past which a legitimately-parsed value is
// still logged as suspicious (24 hours).
const AnomalyThreshold = 24 * time.Hour

// Parse interprets a raw Retry-After header value. It returns (duration,
// true) on success, or (0, false) if the value is unparseable — callers
// should fall back to their own backoff policy in that case.
//
// Dates in the past yield a zero duration. Values exceeding SafetyCap are
// clamped and logged at warn; values exceeding AnomalyThreshold (but within
// the cap) are logged as anomalous.
func Parse(raw string, logger *slog.Logger) (time.Duration, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}

	if seconds, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return clamp(time.Duration(seconds)*time.Second, logger), true
	}

	if when, err := http.ParseTime(raw); err == nil {
		d := time.Until(when)
		if d < 0 {
			return 0, true
		}
		return clamp(d, logger), true
	}

	return 0, false
}

func clamp(d time.Duration, logger *slog.Logger) time.Duration {
	if d > SafetyCap {
		if logger != nil {
			logger.Warn("retry-after value exceeds safety cap, clamping",
				"requested", d, "cap", SafetyCap)
		}
		return SafetyCap
	}
	if d > AnomalyThreshold && logger != nil {
		logger.Warn("retry-after value is anomalously large", "value", d)
	}
	return d
}
