package github

import (
	"fmt"
	"time"
)

// ScannerDirName is the canonical top-level directory whose presence
// exempts a submission from supplying an explicit scanner mapping.
const ScannerDirName = "Scanners"

// ProjectMetadata holds the authoritative facts about a referenced
// repository, fetched fresh on every enrichment call. It is immutable
// once returned.
type ProjectMetadata struct {
	// Ref is the owner/repo reference the metadata was fetched for.
	Ref RepoRef

	// Exists reports whether the reference resolves on the host at all.
	// When false the remaining fields are zero values.
	Exists bool

	// FullName is the canonical owner/name as reported by the host,
	// with the ".bundle" suffix removed.
	FullName string

	// Description is the repository description, possibly empty.
	Description string

	// DefaultBranch is the repository default branch name.
	DefaultBranch string

	// LastActivity is the timestamp of the most recent push.
	LastActivity time.Time

	// License is the repository license name, empty when none is set.
	License string

	// Homepage is the repository homepage URL, possibly empty.
	Homepage string

	// AvatarURL is the owner's avatar image URL.
	AvatarURL string

	// Stars, Forks, and OpenIssues are the repository's counters at
	// enrichment time. OpenIssues counts issues and pull requests
	// together, as the repository endpoint reports it.
	Stars      int
	Forks      int
	OpenIssues int

	// HasWiki reports whether the wiki feature is enabled.
	HasWiki bool

	// Archived reports whether the repository is archived.
	Archived bool

	// HasScannerDir reports whether the repository has the canonical
	// top-level scanner directory.
	HasScannerDir bool
}

// HostError represents a failure talking to the hosting API after retries
// were exhausted, or a non-retryable unexpected status. It is distinct
// from a validation violation: the submission may be perfectly valid and
// the run should be retried later.
type HostError struct {
	// URL is the request that failed.
	URL string

	// StatusCode is the last HTTP status observed, 0 for transport errors.
	StatusCode int

	// RateLimited marks failures caused by exhausting the API rate limit.
	RateLimited bool

	// Err is the underlying error, if any.
	Err error
}

// Error returns the error message.
func (e *HostError) Error() string {
	switch {
	case e.RateLimited:
		return fmt.Sprintf("hosting API rate limit exhausted for %s", e.URL)
	case e.Err != nil:
		return fmt.Sprintf("hosting API unavailable for %s: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("hosting API returned unexpected status %d for %s", e.StatusCode, e.URL)
	}
}

// Unwrap returns the underlying error.
func (e *HostError) Unwrap() error {
	return e.Err
}
