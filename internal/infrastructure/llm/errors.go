package llm

import (
	"context"
	"errors"
	"net"
	"strings"
)

// IsQuotaError reports whether err signals quota or rate-limit exhaustion
// on the backend side.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "quota"):
		return true
	case strings.Contains(msg, "rate limit"):
		return true
	case strings.Contains(msg, "rate_limit"):
		return true
	case strings.Contains(msg, "429"):
		return true
	case strings.Contains(msg, "too many requests"):
		return true
	case strings.Contains(msg, "insufficient_quota"):
		return true
	default:
		return false
	}
}

// IsServerError reports whether err looks like a backend 5xx.
func IsServerError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, code := range []string{"500", "502", "503", "504"} {
		if strings.Contains(msg, code) {
			return true
		}
	}
	return strings.Contains(msg, "internal server error") ||
		strings.Contains(msg, "service unavailable") ||
		strings.Contains(msg, "bad gateway")
}

// IsTimeoutError reports whether err is a timeout or cancellation of the
// underlying transport rather than of the caller.
func IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded")
}

// IsTransientError reports whether err is worth retrying: timeouts,
// backend 5xx, and quota signals.
func IsTransientError(err error) bool {
	return IsTimeoutError(err) || IsServerError(err) || IsQuotaError(err)
}

// IsFailoverError reports whether err should trigger a switch to the
// secondary backend after retries are exhausted.
func IsFailoverError(err error) bool {
	return IsQuotaError(err) || IsServerError(err)
}
