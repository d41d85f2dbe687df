// Package github implements the metadata enricher: it resolves a submitted
// project URL to an owner/repo reference and fetches authoritative facts
// about the referenced repository from the GitHub REST API.
package github

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// bundleSuffix is stripped from repository names when deriving registry
// keys and display names. Plugin repositories are conventionally named
// "<Name>.bundle" and the registry stores them without the suffix.
const bundleSuffix = ".bundle"

var refPattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9._-]*[a-zA-Z0-9])?$`)

// RepoRef identifies a hosted repository by owner and name.
// Name is the repository name exactly as it appears on the host, so it is
// usable in API paths; Key derives the canonical registry identifier.
type RepoRef struct {
	Owner string
	Name  string
}

// ParseProjectURL extracts a RepoRef from a project URL such as
// https://github.com/acme/plugin-x or github.com/acme/Plugin.bundle/.
// It fails when the URL does not resolve to an owner/repo pair.
func ParseProjectURL(raw string) (RepoRef, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return RepoRef{}, fmt.Errorf("project URL is empty")
	}

	// Accept scheme-less URLs the way issue forms deliver them.
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return RepoRef{}, fmt.Errorf("invalid project URL %q: %w", raw, err)
	}

	host := strings.ToLower(u.Hostname())
	if host != "github.com" && host != "www.github.com" {
		return RepoRef{}, fmt.Errorf("project URL must point at github.com, got %q", u.Hostname())
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return RepoRef{}, fmt.Errorf("project URL %q does not contain an owner/repo pair", raw)
	}

	ref := RepoRef{
		Owner: parts[0],
		Name:  strings.TrimSuffix(parts[1], ".git"),
	}
	if !refPattern.MatchString(ref.Owner) {
		return RepoRef{}, fmt.Errorf("invalid repository owner %q", ref.Owner)
	}
	if !refPattern.MatchString(ref.Name) {
		return RepoRef{}, fmt.Errorf("invalid repository name %q", ref.Name)
	}
	return ref, nil
}

// Key returns the canonical registry key for this reference: lowercased
// owner/name with the ".bundle" suffix removed. Two case variants of the
// same repository always produce the same key.
func (r RepoRef) Key() string {
	return strings.ToLower(r.Owner) + "/" + strings.ToLower(trimBundleSuffix(r.Name))
}

// DisplayName returns the human-readable owner/name form with the
// ".bundle" suffix removed but original casing preserved.
func (r RepoRef) DisplayName() string {
	return r.Owner + "/" + trimBundleSuffix(r.Name)
}

// trimBundleSuffix removes a trailing ".bundle" in any casing, so case
// variants of the same repository never diverge downstream.
func trimBundleSuffix(s string) string {
	if len(s) >= len(bundleSuffix) && strings.EqualFold(s[len(s)-len(bundleSuffix):], bundleSuffix) {
		return s[:len(s)-len(bundleSuffix)]
	}
	return s
}

// String returns the owner/name form as it appears on the host.
func (r RepoRef) String() string {
	return r.Owner + "/" + r.Name
}
