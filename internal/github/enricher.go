package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-logr/logr"
	"github.com/tidwall/gjson"

	"github.com/plughub/registry-updater/internal/config"
	"github.com/plughub/registry-updater/internal/httpclient"
)

// Enricher fetches ProjectMetadata from the GitHub REST API with bounded
// retry. Transient failures (transport errors, 5xx) back off exponentially;
// rate-limited responses wait for the reset signal the host advertises.
type Enricher struct {
	client      httpclient.Client
	baseURL     string
	maxAttempts uint
	logger      logr.Logger
}

// NewEnricher creates a new metadata enricher. All ambient settings
// (endpoint, token, retry bounds) come from the config; nothing is read
// from the process environment.
func NewEnricher(client httpclient.Client, cfg *config.Config, logger logr.Logger) *Enricher {
	return &Enricher{
		client:      client,
		baseURL:     cfg.GitHub.APIBaseURL,
		maxAttempts: uint(cfg.GitHub.MaxAttempts), // #nosec G115 -- validated positive by config
		logger:      logger.WithName("enricher"),
	}
}

// repoResponse is the subset of the repository endpoint we consume.
type repoResponse struct {
	FullName        string       `json:"full_name"`
	Description     string       `json:"description"`
	DefaultBranch   string       `json:"default_branch"`
	PushedAt        time.Time    `json:"pushed_at"`
	Homepage        string       `json:"homepage"`
	StargazersCount int          `json:"stargazers_count"`
	ForksCount      int          `json:"forks_count"`
	OpenIssuesCount int          `json:"open_issues_count"`
	HasWiki         bool         `json:"has_wiki"`
	Archived        bool         `json:"archived"`
	License         *repoLicense `json:"license"`
	Owner           repoOwner    `json:"owner"`
}

type repoLicense struct {
	Name string `json:"name"`
}

type repoOwner struct {
	AvatarURL string `json:"avatar_url"`
}

func (r *repoResponse) licenseName() string {
	if r.License == nil {
		return ""
	}
	return r.License.Name
}

// Enrich returns fresh ProjectMetadata for the given reference. A repository
// that does not resolve yields metadata with Exists=false, not an error;
// only host-level failures (after retries) are errors.
func (e *Enricher) Enrich(ctx context.Context, ref RepoRef) (*ProjectMetadata, error) {
	repoURL := fmt.Sprintf("%s/repos/%s/%s", e.baseURL, ref.Owner, ref.Name)

	resp, err := e.get(ctx, repoURL)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		e.logger.Info("repository does not resolve", "ref", ref.String())
		return &ProjectMetadata{Ref: ref}, nil
	}

	var repo repoResponse
	if err := json.Unmarshal(resp.Body, &repo); err != nil {
		return nil, &HostError{URL: repoURL, Err: fmt.Errorf("failed to decode repository metadata: %w", err)}
	}

	hasScannerDir, err := e.hasScannerDir(ctx, ref)
	if err != nil {
		return nil, err
	}

	// The host's full_name is authoritative for display: it carries the
	// repository's real casing, not whatever the submitter typed.
	fullName := trimBundleSuffix(repo.FullName)
	if fullName == "" {
		fullName = ref.DisplayName()
	}

	meta := &ProjectMetadata{
		Ref:           ref,
		Exists:        true,
		FullName:      fullName,
		Description:   repo.Description,
		DefaultBranch: repo.DefaultBranch,
		LastActivity:  repo.PushedAt,
		License:       repo.licenseName(),
		Homepage:      repo.Homepage,
		AvatarURL:     repo.Owner.AvatarURL,
		Stars:         repo.StargazersCount,
		Forks:         repo.ForksCount,
		OpenIssues:    repo.OpenIssuesCount,
		HasWiki:       repo.HasWiki,
		Archived:      repo.Archived,
		HasScannerDir: hasScannerDir,
	}
	e.logger.V(1).Info("enriched repository",
		"ref", ref.String(),
		"defaultBranch", meta.DefaultBranch,
		"hasScannerDir", meta.HasScannerDir)
	return meta, nil
}

// hasScannerDir checks for the canonical top-level scanner directory.
// A 404 from the contents endpoint is the normal "directory absent"
// signal, not a failure.
func (e *Enricher) hasScannerDir(ctx context.Context, ref RepoRef) (bool, error) {
	contentsURL := fmt.Sprintf("%s/repos/%s/%s/contents/%s", e.baseURL, ref.Owner, ref.Name, ScannerDirName)

	resp, err := e.get(ctx, contentsURL)
	if err != nil {
		return false, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}

	// The contents endpoint returns an array for directories and an
	// object for files. A file named "Scanners" does not count.
	return gjson.ParseBytes(resp.Body).IsArray(), nil
}

// get performs a GET with bounded retry. 2xx and 404 responses are returned
// to the caller; rate-limited responses are retried after the advertised
// reset, 5xx and transport errors with exponential backoff, and any other
// status fails immediately.
func (e *Enricher) get(ctx context.Context, url string) (*httpclient.Response, error) {
	rateLimited := false

	operation := func() (*httpclient.Response, error) {
		resp, err := e.client.Get(ctx, url)
		if err != nil {
			// Transport-level failure, retryable.
			return nil, err
		}

		switch {
		case resp.OK() || resp.StatusCode == http.StatusNotFound:
			rateLimited = false
			return resp, nil

		case resp.StatusCode == http.StatusTooManyRequests,
			resp.StatusCode == http.StatusForbidden && resp.RateLimitExhausted():
			rateLimited = true
			if reset, ok := resp.ResetTime(); ok {
				if wait := time.Until(reset); wait > 0 {
					e.logger.Info("rate limited, honoring reset signal", "url", url, "wait", wait)
					return nil, backoff.RetryAfter(int(wait.Seconds()) + 1)
				}
			}
			return nil, httpclient.NewHTTPError(resp.StatusCode, url, "rate limited")

		case resp.StatusCode >= http.StatusInternalServerError:
			rateLimited = false
			return nil, httpclient.NewHTTPError(resp.StatusCode, url, "server error")

		default:
			rateLimited = false
			return nil, backoff.Permanent(httpclient.NewHTTPError(resp.StatusCode, url, "unexpected status"))
		}
	}

	resp, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(e.maxAttempts),
	)
	if err != nil {
		hostErr := &HostError{URL: url, RateLimited: rateLimited, Err: err}
		var httpErr *httpclient.HTTPError
		if errors.As(err, &httpErr) {
			hostErr.StatusCode = httpErr.StatusCode
		}
		return nil, hostErr
	}
	return resp, nil
}
