package retry

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"syscall"

	ai "github.com/spetersoncode/gambit"
)

// statusCoder is an interface for errors that have an HTTP status code.
type statusCoder interface {
	StatusCode() int
}

// IsTransient determines if an error is transient and should be retried.
// It first checks if the error implements gambit.CategorizedError for explicit
// categorization. If not, it falls back to heuristic detection:
// - Rate limits (HTTP 429)
// - Server errors (HTTP 5xx)
// - Network timeouts
// - Connection resets
// - DNS failures
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var ce ai.CategorizedError
	if errors.As(err, &ce) {
		return ce.Category() == ai.ErrorTransient
	}

	var sc statusCoder
	if errors.As(err, &sc) && isTransientStatusCode(sc.StatusCode()) {
		return true
	}

	return isTransientNetworkError(err)
}

// Classify maps a failed model call to a ModelFailure.
// Rate limits are RateLimited; other transient failures are Transport;
// everything else means the model could not produce a usable response.
func Classify(err error) ai.ModelFailure {
	if code := statusCodeOf(err); code == 429 {
		return ai.ModelRateLimited
	}
	if isRateLimitMessage(err) {
		return ai.ModelRateLimited
	}
	if IsTransient(err) || errors.Is(err, context.DeadlineExceeded) {
		return ai.ModelTransport
	}
	return ai.ClassifyModelError(err)
}

func statusCodeOf(err error) int {
	if code := ai.StatusCodeOf(err); code != 0 {
		return code
	}
	var sc statusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return 0
}

// isTransientStatusCode checks if an HTTP status code indicates a transient error.
func isTransientStatusCode(code int) bool {
	return code == 429 || code == 408 || (code >= 500 && code < 600)
}

func isRateLimitMessage(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests")
}

// isTransientNetworkError checks for network-level transient errors.
func isTransientNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return true
		}
		if urlErr.Err != nil && isTransientNetworkError(urlErr.Err) {
			return true
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary || dnsErr.IsTimeout
	}

	var syscallErr syscall.Errno
	if errors.As(err, &syscallErr) {
		switch syscallErr {
		case syscall.ECONNRESET, syscall.ECONNREFUSED, syscall.ETIMEDOUT:
			return true
		}
	}

	errMsg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset",
		"connection refused",
		"timeout",
		"temporary failure",
		"service unavailable",
		"too many requests",
		"rate limit",
		"server error",
		"bad gateway",
		"gateway timeout",
		"unexpected eof",
	}
	for _, pattern := range transientPatterns {
		if strings.Contains(errMsg, pattern) {
			return true
		}
	}

	return false
}
