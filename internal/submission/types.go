// Package submission parses raw issue-form payloads into typed, shape-valid
// Submission values. It is a pure transformation: no network, no disk.
package submission

import (
	"fmt"

	"github.com/plughub/registry-updater/internal/github"
)

// Category is a plugin category tag from the fixed issue-form set.
type Category string

// The fixed category set offered by the issue form. CategoryOther is a
// sentinel paired with free text in the submission's other_category field.
const (
	CategoryAudio    Category = "Audio"
	CategoryMetadata Category = "Metadata"
	CategoryMovies   Category = "Movies"
	CategoryMusic    Category = "Music"
	CategoryPhotos   Category = "Photos"
	CategoryScanner  Category = "Scanner"
	CategorySeries   Category = "Series"
	CategoryUtility  Category = "Utility"
	CategoryOther    Category = "Other"
)

var validCategories = map[Category]struct{}{
	CategoryAudio:    {},
	CategoryMetadata: {},
	CategoryMovies:   {},
	CategoryMusic:    {},
	CategoryPhotos:   {},
	CategoryScanner:  {},
	CategorySeries:   {},
	CategoryUtility:  {},
	CategoryOther:    {},
}

// ParseCategory validates a single category tag.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if _, ok := validCategories[c]; !ok {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

// Buckets are the fixed scanner-mapping bucket names, in canonical order.
var Buckets = []string{"Common", "Movies", "Music", "Series"}

// ScannerMapping maps the fixed bucket names to ordered sequences of
// relative file paths. A bucket with an empty slice is explicitly empty,
// which the schema permits.
type ScannerMapping struct {
	Common []string `json:"Common"`
	Movies []string `json:"Movies"`
	Music  []string `json:"Music"`
	Series []string `json:"Series"`
}

// Bucket returns the paths for a named bucket.
func (m *ScannerMapping) Bucket(name string) []string {
	switch name {
	case "Common":
		return m.Common
	case "Movies":
		return m.Movies
	case "Music":
		return m.Music
	case "Series":
		return m.Series
	default:
		return nil
	}
}

// AllPaths returns every path in the mapping, bucket order preserved.
func (m *ScannerMapping) AllPaths() []string {
	var paths []string
	for _, bucket := range Buckets {
		paths = append(paths, m.Bucket(bucket)...)
	}
	return paths
}

// Submission is the typed, shape-validated user intent. It is transient:
// constructed once per triggering event and discarded after processing.
type Submission struct {
	// ProjectURL is the submitted URL, as provided.
	ProjectURL string

	// Ref is the owner/repo reference extracted from ProjectURL.
	Ref github.RepoRef

	// Categories is the submitted tag set, deduplicated, order preserved.
	// May include CategoryOther; the validation engine requires a nonempty
	// OtherCategory in that case.
	Categories []Category

	// OtherCategory is the free-text category paired with CategoryOther.
	OtherCategory string

	// ScannerMapping is present only when the submitter supplied one.
	ScannerMapping *ScannerMapping

	// AdditionalComments is carried through for human reviewers, never
	// validated.
	AdditionalComments string

	// SubmitterID is the opaque identifier of the issue author.
	SubmitterID string
}

// MalformedSubmissionError reports an input shape violation. It never
// reaches the registry: parsing happens before any enrichment or mutation.
type MalformedSubmissionError struct {
	Field  string
	Reason string
}

// Error returns the error message.
func (e *MalformedSubmissionError) Error() string {
	return fmt.Sprintf("malformed submission: %s: %s", e.Field, e.Reason)
}

func malformed(field, format string, args ...any) error {
	return &MalformedSubmissionError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
