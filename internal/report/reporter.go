// Package report derives the human-reviewable artifacts of a pipeline run:
// the unified diff of the persisted registry, a one-line title for the
// change, and the blocked flag with its rendered violation report. The
// package only produces values; surfacing them on the originating issue is
// the caller's concern.
package report

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/plughub/registry-updater/internal/registry"
	"github.com/plughub/registry-updater/internal/rules"
	"github.com/plughub/registry-updater/internal/submission"
)

// diffContextLines is the unified-diff context size.
const diffContextLines = 3

// ChangeReport is the reviewable outcome of one pipeline run.
type ChangeReport struct {
	// Title is the proposed one-line title for the triggering request,
	// e.g. "[PLUGIN]: Acme/MyPlugin (new)".
	Title string

	// Diff is the unified diff of the persisted registry, empty when the
	// change was blocked.
	Diff string

	// Blocked is true when validation produced violations and no registry
	// mutation occurred.
	Blocked bool

	// Violations is the complete violation set, nil on success.
	Violations rules.ViolationSet

	// Markdown is the rendered review fragment: the record summary table
	// on success, the violation report when blocked.
	Markdown string
}

// Reporter derives change reports.
type Reporter struct{}

// NewReporter creates a reporter.
func NewReporter() *Reporter {
	return &Reporter{}
}

// Success builds the report for a completed upsert from the registry
// snapshots taken before and after, the stored record, and the prior
// record (nil for a new addition).
func (r *Reporter) Success(before, after string, record, prior *registry.PluginRecord) (*ChangeReport, error) {
	diff, err := unifiedDiff(before, after)
	if err != nil {
		return nil, err
	}
	return &ChangeReport{
		Title:    title(record, prior == nil),
		Diff:     diff,
		Markdown: recordTable(record),
	}, nil
}

// Blocked builds the report for a run stopped by validation violations.
// The registry is untouched, so there is no diff.
func (r *Reporter) Blocked(violations rules.ViolationSet) *ChangeReport {
	return &ChangeReport{
		Blocked:    true,
		Violations: violations,
		Markdown:   ViolationReport(violations),
	}
}

func title(record *registry.PluginRecord, isNew bool) string {
	kind := "update"
	if isNew {
		kind = "new"
	}
	return fmt.Sprintf("[PLUGIN]: %s (%s)", record.FullName, kind)
}

// Diff renders the textual diff between two registry snapshots.
func (r *Reporter) Diff(before, after string) (string, error) {
	return unifiedDiff(before, after)
}

// unifiedDiff renders the textual diff between two registry snapshots.
func unifiedDiff(before, after string) (string, error) {
	if before == after {
		return "", nil
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: "registry (before)",
		ToFile:   "registry (after)",
		Context:  diffContextLines,
	})
	if err != nil {
		return "", fmt.Errorf("failed to compute registry diff: %w", err)
	}
	return diff, nil
}

// recordTable renders the stored record as a markdown property table for
// the moderation comment.
func recordTable(record *registry.PluginRecord) string {
	var b strings.Builder
	b.WriteString("| Property | Value |\n")
	b.WriteString("| --- | --- |\n")
	row := func(name, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(&b, "| %s | %s |\n", name, value)
	}

	row("key", record.Key)
	row("full_name", record.FullName)
	row("description", record.Description)
	row("default_branch", record.DefaultBranch)
	row("license", record.License)
	row("homepage", record.Homepage)
	if record.AvatarURL != "" {
		row("avatar", fmt.Sprintf("![avatar](%s)", record.AvatarURL))
	}
	row("stars", fmt.Sprintf("%d", record.Stars))
	row("forks", fmt.Sprintf("%d", record.Forks))
	row("open_issues", fmt.Sprintf("%d", record.OpenIssues))
	row("has_wiki", fmt.Sprintf("%t", record.HasWiki))
	if record.Archived {
		row("archived", "true")
	}
	row("categories", strings.Join(record.Categories, ", "))
	if record.ScannerMapping != nil {
		var buckets []string
		for _, bucket := range submission.Buckets {
			if paths := record.ScannerMapping.Bucket(bucket); len(paths) > 0 {
				buckets = append(buckets, fmt.Sprintf("%s: %s", bucket, strings.Join(paths, ", ")))
			}
		}
		row("scanner_mapping", strings.Join(buckets, "; "))
	}
	if !record.LastActivity.IsZero() {
		row("last_activity", record.LastActivity.UTC().Format("2006-01-02 15:04:05 UTC"))
	}
	row("additional_comments", record.AdditionalComments)
	return b.String()
}

// ViolationReport renders a violation set as the markdown exception
// fragment appended to the moderation comment.
func ViolationReport(violations rules.ViolationSet) string {
	var b strings.Builder
	b.WriteString("# :bangbang: **Submission Blocked** :bangbang:\n\n")
	b.WriteString("| Rule | Problem |\n")
	b.WriteString("| --- | --- |\n")
	for _, violation := range violations {
		fmt.Fprintf(&b, "| %s | %s |\n", violation.Rule, violation.Message)
	}
	return b.String()
}

// ExceptionReport renders a processing failure (not a validation outcome)
// as the markdown exception fragment.
func ExceptionReport(err error) string {
	return fmt.Sprintf("# :bangbang: **Exception Occurred** :bangbang:\n\n```txt\n%v\n```\n", err)
}
