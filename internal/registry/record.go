// Package registry implements the durable, keyed collection of plugin
// records. Records live one per file under the registry root, serialized
// canonically so identical logical content always produces byte-identical
// output and registry diffs stay minimal.
package registry

import (
	"fmt"
	"time"

	"github.com/plughub/registry-updater/internal/submission"
)

// PluginRecord is the persisted unit of the registry. Records are created
// by the validation engine only; every stored record has passed the full
// rule battery. Field order here is the canonical serialization order.
type PluginRecord struct {
	// Key is the canonical lowercased owner/repo identifier.
	Key string `json:"key"`

	// FullName is the display form of the repository reference.
	FullName string `json:"full_name"`

	// SourceURL is the project URL on the hosting platform. It preserves
	// the exact repository name (including any ".bundle" suffix) so the
	// record can be re-enriched later.
	SourceURL string `json:"source_url"`

	// Description is copied from project metadata at upsert time.
	Description string `json:"description,omitempty"`

	// DefaultBranch is copied from project metadata at upsert time.
	DefaultBranch string `json:"default_branch,omitempty"`

	// License is the repository license name, empty when none is set.
	License string `json:"license,omitempty"`

	// Homepage is the repository homepage URL, possibly empty.
	Homepage string `json:"homepage,omitempty"`

	// AvatarURL is the owner's avatar image URL.
	AvatarURL string `json:"avatar_url,omitempty"`

	// Stars, Forks, and OpenIssues are the repository counters at the
	// last enrichment. OpenIssues counts issues and pull requests
	// together.
	Stars      int `json:"stars"`
	Forks      int `json:"forks"`
	OpenIssues int `json:"open_issues"`

	// HasWiki reports whether the wiki feature was enabled at the last
	// enrichment.
	HasWiki bool `json:"has_wiki"`

	// Archived reports whether the repository was archived at the last
	// enrichment.
	Archived bool `json:"archived"`

	// Categories is the normalized tag set: sorted, deduplicated, the
	// "Other" sentinel expanded to its free text. Never empty.
	Categories []string `json:"categories"`

	// ScannerMapping is present only when the project lacks the
	// canonical scanner directory.
	ScannerMapping *submission.ScannerMapping `json:"scanner_mapping,omitempty"`

	// LastActivity is the project's last-activity timestamp at upsert time.
	LastActivity time.Time `json:"last_activity"`

	// AdditionalComments is the last value provided by the submitter.
	AdditionalComments string `json:"additional_comments,omitempty"`

	// AddedBy is the submitter id of the first successful submission.
	AddedBy string `json:"added_by,omitempty"`

	// EditedBy is the submitter id of the most recent submission.
	EditedBy string `json:"edited_by,omitempty"`
}

// Clone returns a deep copy of the record.
func (r *PluginRecord) Clone() *PluginRecord {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Categories = append([]string(nil), r.Categories...)
	if r.ScannerMapping != nil {
		mapping := submission.ScannerMapping{
			Common: append([]string(nil), r.ScannerMapping.Common...),
			Movies: append([]string(nil), r.ScannerMapping.Movies...),
			Music:  append([]string(nil), r.ScannerMapping.Music...),
			Series: append([]string(nil), r.ScannerMapping.Series...),
		}
		clone.ScannerMapping = &mapping
	}
	return &clone
}

// ConflictError reports two records resolving to the same canonical key
// while carrying different identities. It indicates a canonicalization bug
// and is fatal.
type ConflictError struct {
	Key      string
	Existing string
	Incoming string
}

// Error returns the error message.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("registry key conflict for %q: existing record %q, incoming %q",
		e.Key, e.Existing, e.Incoming)
}
