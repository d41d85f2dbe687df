package httpclient_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plughub/registry-updater/internal/httpclient"
)

// newTestServer creates a new test server with keep-alives disabled.
// This prevents flaky tests when running in parallel, as closing a server
// with keep-alives enabled can affect other tests sharing the HTTP transport.
func newTestServer(handler http.Handler) *httptest.Server {
	server := httptest.NewServer(handler)
	server.Config.SetKeepAlivesEnabled(false)
	return server
}

func TestDefaultClient_Get(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		status     int
		body       string
		headers    map[string]string
		expectOK   bool
		expectBody string
	}{
		{
			name:       "successful JSON response",
			status:     http.StatusOK,
			body:       `{"message": "success"}`,
			expectOK:   true,
			expectBody: `{"message": "success"}`,
		},
		{
			name:       "not found is returned as a response",
			status:     http.StatusNotFound,
			body:       `{"message": "Not Found"}`,
			expectOK:   false,
			expectBody: `{"message": "Not Found"}`,
		},
		{
			name:     "rate limit headers captured",
			status:   http.StatusForbidden,
			body:     `{"message": "rate limited"}`,
			headers:  map[string]string{"X-RateLimit-Remaining": "0", "X-RateLimit-Reset": "1700000000"},
			expectOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var receivedUserAgent string
			mockServer := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				receivedUserAgent = r.Header.Get("User-Agent")
				for k, v := range tt.headers {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer mockServer.Close()

			client := httpclient.NewDefaultClient(30*time.Second, "")
			resp, err := client.Get(context.Background(), mockServer.URL)
			require.NoError(t, err)

			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.expectOK, resp.OK())
			if tt.expectBody != "" {
				assert.Equal(t, tt.expectBody, string(resp.Body))
			}
			assert.Equal(t, httpclient.UserAgent, receivedUserAgent)
		})
	}
}

func TestDefaultClient_Get_BearerToken(t *testing.T) {
	t.Parallel()

	var receivedAuth string
	mockServer := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer mockServer.Close()

	client := httpclient.NewDefaultClient(0, "secret-token")
	_, err := client.Get(context.Background(), mockServer.URL)
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret-token", receivedAuth)
}

func TestDefaultClient_Get_TransportError(t *testing.T) {
	t.Parallel()

	mockServer := newTestServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	mockServer.Close() // closed before use to force a connection error

	client := httpclient.NewDefaultClient(time.Second, "")
	_, err := client.Get(context.Background(), mockServer.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to execute request")
}

func TestDefaultClient_Get_ContextCancelled(t *testing.T) {
	t.Parallel()

	mockServer := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer mockServer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := httpclient.NewDefaultClient(time.Second, "")
	_, err := client.Get(ctx, mockServer.URL)
	require.Error(t, err)
}

func TestResponse_RateLimit(t *testing.T) {
	t.Parallel()

	resp := &httpclient.Response{
		StatusCode:         http.StatusForbidden,
		RateLimitRemaining: "0",
		RateLimitReset:     "1700000000",
	}
	assert.True(t, resp.RateLimitExhausted())

	reset, ok := resp.ResetTime()
	require.True(t, ok)
	assert.Equal(t, int64(1700000000), reset.Unix())

	empty := &httpclient.Response{StatusCode: http.StatusOK}
	assert.False(t, empty.RateLimitExhausted())
	_, ok = empty.ResetTime()
	assert.False(t, ok)
}
