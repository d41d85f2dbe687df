package httpclient

import (
	"fmt"
	"strconv"
	"time"
)

// Response carries the status, body, and the rate-limit headers of a
// hosting-API reply.
type Response struct {
	StatusCode int
	Body       []byte

	// RateLimitRemaining is the raw X-RateLimit-Remaining header value,
	// empty if the server did not send one.
	RateLimitRemaining string

	// RateLimitReset is the raw X-RateLimit-Reset header value (Unix
	// seconds), empty if the server did not send one.
	RateLimitReset string
}

// OK reports whether the response status is in the 2xx range.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// RateLimitExhausted reports whether the server signalled an exhausted
// rate limit via the X-RateLimit-Remaining header.
func (r *Response) RateLimitExhausted() bool {
	if r.RateLimitRemaining == "" {
		return false
	}
	remaining, err := strconv.Atoi(r.RateLimitRemaining)
	if err != nil {
		return false
	}
	return remaining <= 0
}

// ResetTime returns the rate-limit reset time, if the server provided one.
func (r *Response) ResetTime() (time.Time, bool) {
	if r.RateLimitReset == "" {
		return time.Time{}, false
	}
	seconds, err := strconv.ParseInt(r.RateLimitReset, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(seconds, 0), true
}

// HTTPError represents an HTTP error status from the hosting API.
type HTTPError struct {
	StatusCode int
	URL        string
	Message    string
}

// Error returns the error message.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d for URL %s: %s", e.StatusCode, e.URL, e.Message)
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, url, message string) error {
	return &HTTPError{
		StatusCode: statusCode,
		URL:        url,
		Message:    message,
	}
}
