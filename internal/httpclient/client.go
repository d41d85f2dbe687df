// Package httpclient provides HTTP client functionality for hosting-API operations.
package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultTimeout is the default timeout for HTTP requests.
	DefaultTimeout = 10 * time.Second

	// MaxResponseSize is the maximum allowed response size (10MB).
	MaxResponseSize = 10 * 1024 * 1024

	// UserAgent is the user agent string for HTTP requests.
	UserAgent = "plughub-registry-updater/1.0"
)

// Client is an interface for HTTP operations against the hosting API.
type Client interface {
	// Get performs an HTTP GET request and returns the response.
	// Non-2xx statuses are returned as a normal Response, not an error;
	// callers decide which statuses are signals (e.g. 404 for a missing
	// directory) and which are failures. Only transport-level problems
	// produce an error.
	Get(ctx context.Context, url string) (*Response, error)
}

// DefaultClient is the default HTTP client implementation.
type DefaultClient struct {
	client *http.Client
	token  string
}

// NewDefaultClient creates a new default HTTP client with the specified
// timeout and optional bearer token. If timeout is 0, uses DefaultTimeout.
func NewDefaultClient(timeout time.Duration, token string) Client {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &DefaultClient{
		client: &http.Client{
			Timeout: timeout,
		},
		token: token,
	}
}

// Get performs an HTTP GET request.
func (c *DefaultClient) Get(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.ContentLength > MaxResponseSize {
		return nil, fmt.Errorf("response size %d bytes exceeds maximum allowed size of %d bytes",
			resp.ContentLength, MaxResponseSize)
	}

	// Read with a limit; +1 to detect responses that exceed it.
	limitedReader := io.LimitReader(resp.Body, MaxResponseSize+1)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("response size exceeds maximum allowed size of %d bytes", MaxResponseSize)
	}

	return &Response{
		StatusCode:         resp.StatusCode,
		Body:               body,
		RateLimitRemaining: resp.Header.Get("X-RateLimit-Remaining"),
		RateLimitReset:     resp.Header.Get("X-RateLimit-Reset"),
	}, nil
}
