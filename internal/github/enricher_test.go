package github

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plughub/registry-updater/internal/config"
	"github.com/plughub/registry-updater/internal/httpclient"
)

func newTestEnricher(t *testing.T, handler http.Handler, maxAttempts int) (*Enricher, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	server.Config.SetKeepAlivesEnabled(false)
	t.Cleanup(server.Close)

	cfg := &config.Config{
		GitHub: config.GitHubConfig{
			APIBaseURL:  server.URL,
			MaxAttempts: maxAttempts,
		},
		Registry: config.RegistryConfig{Path: t.TempDir()},
	}
	client := httpclient.NewDefaultClient(5*time.Second, "")
	return NewEnricher(client, cfg, logr.Discard()), server
}

func TestEnricher_Enrich_ExistingRepoWithScannerDir(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/plugin-x", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{
			"full_name": "acme/plugin-x",
			"description": "A test plugin",
			"default_branch": "master",
			"pushed_at": "2024-03-01T12:00:00Z",
			"homepage": "https://acme.example.com",
			"stargazers_count": 42,
			"forks_count": 7,
			"open_issues_count": 3,
			"has_wiki": true,
			"archived": false,
			"license": {"name": "MIT License", "spdx_id": "MIT"},
			"owner": {"avatar_url": "https://avatars.example.com/u/1"}
		}`)
	})
	mux.HandleFunc("/repos/acme/plugin-x/contents/Scanners", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[{"name": "Movies", "type": "dir"}]`)
	})

	enricher, _ := newTestEnricher(t, mux, 1)
	meta, err := enricher.Enrich(context.Background(), RepoRef{Owner: "acme", Name: "plugin-x"})
	require.NoError(t, err)

	assert.True(t, meta.Exists)
	assert.Equal(t, "acme/plugin-x", meta.FullName)
	assert.Equal(t, "A test plugin", meta.Description)
	assert.Equal(t, "master", meta.DefaultBranch)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), meta.LastActivity)
	assert.Equal(t, "MIT License", meta.License)
	assert.Equal(t, "https://acme.example.com", meta.Homepage)
	assert.Equal(t, "https://avatars.example.com/u/1", meta.AvatarURL)
	assert.Equal(t, 42, meta.Stars)
	assert.Equal(t, 7, meta.Forks)
	assert.Equal(t, 3, meta.OpenIssues)
	assert.True(t, meta.HasWiki)
	assert.False(t, meta.Archived)
	assert.True(t, meta.HasScannerDir)
}

func TestEnricher_Enrich_HostCasingWins(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/plugin-x.bundle", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{
			"full_name": "Acme/Plugin-X.bundle",
			"default_branch": "master",
			"pushed_at": "2024-03-01T12:00:00Z"
		}`)
	})
	mux.HandleFunc("/repos/acme/plugin-x.bundle/contents/Scanners", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[{"name": "Movies", "type": "dir"}]`)
	})

	enricher, _ := newTestEnricher(t, mux, 1)
	meta, err := enricher.Enrich(context.Background(), RepoRef{Owner: "acme", Name: "plugin-x.bundle"})
	require.NoError(t, err)

	// The submitter typed lowercase; the host's casing is authoritative,
	// with the bundle suffix stripped for display.
	assert.Equal(t, "Acme/Plugin-X", meta.FullName)
}

func TestEnricher_Enrich_ScannerDirAbsent(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/plugin-y", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"full_name": "acme/plugin-y", "default_branch": "main", "pushed_at": "2024-01-02T00:00:00Z"}`)
	})
	mux.HandleFunc("/repos/acme/plugin-y/contents/Scanners", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "Not Found"}`)
	})

	enricher, _ := newTestEnricher(t, mux, 1)
	meta, err := enricher.Enrich(context.Background(), RepoRef{Owner: "acme", Name: "plugin-y"})
	require.NoError(t, err)

	assert.True(t, meta.Exists)
	assert.False(t, meta.HasScannerDir)
}

func TestEnricher_Enrich_ScannersIsAFile(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/odd", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"full_name": "acme/odd", "default_branch": "main", "pushed_at": "2024-01-02T00:00:00Z"}`)
	})
	mux.HandleFunc("/repos/acme/odd/contents/Scanners", func(w http.ResponseWriter, _ *http.Request) {
		// A file, not a directory: the contents endpoint returns an object.
		fmt.Fprint(w, `{"name": "Scanners", "type": "file"}`)
	})

	enricher, _ := newTestEnricher(t, mux, 1)
	meta, err := enricher.Enrich(context.Background(), RepoRef{Owner: "acme", Name: "odd"})
	require.NoError(t, err)
	assert.False(t, meta.HasScannerDir)
}

func TestEnricher_Enrich_RepoNotFound(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "Not Found"}`)
	})

	enricher, _ := newTestEnricher(t, mux, 1)
	meta, err := enricher.Enrich(context.Background(), RepoRef{Owner: "acme", Name: "missing"})
	require.NoError(t, err)

	assert.False(t, meta.Exists)
	assert.Equal(t, "acme/missing", meta.Ref.String())
}

func TestEnricher_Enrich_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	attempts := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/flaky", func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"full_name": "acme/flaky", "default_branch": "main", "pushed_at": "2024-01-02T00:00:00Z"}`)
	})
	mux.HandleFunc("/repos/acme/flaky/contents/Scanners", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[]`)
	})

	enricher, _ := newTestEnricher(t, mux, 3)
	meta, err := enricher.Enrich(context.Background(), RepoRef{Owner: "acme", Name: "flaky"})
	require.NoError(t, err)
	assert.True(t, meta.Exists)
	assert.Equal(t, 2, attempts)
}

func TestEnricher_Enrich_ExhaustedRetriesIsHostError(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	enricher, _ := newTestEnricher(t, mux, 2)
	_, err := enricher.Enrich(context.Background(), RepoRef{Owner: "acme", Name: "down"})
	require.Error(t, err)

	var hostErr *HostError
	require.ErrorAs(t, err, &hostErr)
	assert.False(t, hostErr.RateLimited)
	assert.Equal(t, http.StatusServiceUnavailable, hostErr.StatusCode)
}

func TestEnricher_Enrich_RateLimitHonorsReset(t *testing.T) {
	t.Parallel()

	attempts := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/limited", func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		if attempts == 1 {
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Unix()))
			w.WriteHeader(http.StatusForbidden)
			return
		}
		fmt.Fprint(w, `{"full_name": "acme/limited", "default_branch": "main", "pushed_at": "2024-01-02T00:00:00Z"}`)
	})
	mux.HandleFunc("/repos/acme/limited/contents/Scanners", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[]`)
	})

	enricher, _ := newTestEnricher(t, mux, 4)
	meta, err := enricher.Enrich(context.Background(), RepoRef{Owner: "acme", Name: "limited"})
	require.NoError(t, err)
	assert.True(t, meta.Exists)
	assert.GreaterOrEqual(t, attempts, 2)
}

func TestEnricher_Enrich_UnexpectedStatusIsPermanent(t *testing.T) {
	t.Parallel()

	attempts := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
	})

	enricher, _ := newTestEnricher(t, mux, 5)
	_, err := enricher.Enrich(context.Background(), RepoRef{Owner: "acme", Name: "denied"})
	require.Error(t, err)

	var hostErr *HostError
	require.ErrorAs(t, err, &hostErr)
	assert.Equal(t, http.StatusUnauthorized, hostErr.StatusCode)
	assert.Equal(t, 1, attempts, "401 must not be retried")
}
