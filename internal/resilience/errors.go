// Package resilience provides the upstream error taxonomy and retry helpers
// shared by the API clients and the resolution engine.
package resilience

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// UnavailableError marks an upstream lookup that could not be answered at
// all (timeout, rate limit, auth failure). It is distinct from an empty
// result, which means "checked, no match".
type UnavailableError struct {
	System     string
	StatusCode int
	Err        error
}

func (e *UnavailableError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s unavailable (status %d): %v", e.System, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s unavailable: %v", e.System, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// Unavailable wraps err as an UnavailableError for the named system.
func Unavailable(system string, statusCode int, err error) *UnavailableError {
	return &UnavailableError{System: system, StatusCode: statusCode, Err: err}
}

// IsUnavailable reports whether err (or anything in its chain) is an
// UnavailableError.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}

// IsTransient reports whether err looks safe to retry: an explicit
// UnavailableError, a network timeout, or a connection-level failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if IsUnavailable(err) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// Wrapped HTTP client errors lose their type; fall back to message
	// patterns for the common network failures.
	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// RetryableStatus reports whether an HTTP status code indicates a transient
// server-side condition.
func RetryableStatus(code int) bool {
	switch code {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
