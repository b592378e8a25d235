package resilience

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// UnavailableError marks one retrieval source as temporarily unreachable:
// the call may be retried, and the aggregator records the source as failed
// without failing the request. Source names the path ("semantic", "external",
// "llm", "store").
type UnavailableError struct {
	Source     string
	StatusCode int
	Err        error
}

func (e *UnavailableError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s unavailable (status %d): %s", e.Source, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s unavailable: %s", e.Source, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// Unavailable wraps an error as a retryable source outage. statusCode is the
// HTTP status when one exists, 0 otherwise.
func Unavailable(source string, statusCode int, err error) *UnavailableError {
	return &UnavailableError{Source: source, StatusCode: statusCode, Err: err}
}

// IsSourceUnavailable reports whether the error looks like a transient
// source outage: an explicit UnavailableError anywhere in the chain, a
// network timeout, a dropped connection, or a DNS hiccup. Validation errors
// and open circuits are not outages and must not be retried.
func IsSourceUnavailable(err error) bool {
	if err == nil {
		return false
	}

	var ue *UnavailableError
	if errors.As(err, &ue) {
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

	// The HTTP clients wrap transport errors in plain text; match the
	// usual suspects.
	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
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

// IsTransientHTTPStatus reports whether an HTTP status code from a source
// indicates an outage worth retrying rather than a caller mistake.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
