// Package rules implements the validation engine: an ordered battery of
// independent rules applied to a submission and its project metadata. All
// applicable rules run regardless of earlier failures so the violation set
// is complete in a single pass, and the engine is the sole producer of
// plugin records, so every stored record has passed every rule.
package rules

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/go-logr/logr"

	"github.com/plughub/registry-updater/internal/github"
	"github.com/plughub/registry-updater/internal/registry"
	"github.com/plughub/registry-updater/internal/submission"
)

// Rule identifiers, in battery order.
const (
	RuleProjectExists          = "project-exists"
	RuleCategories             = "categories"
	RuleScannerMappingRequired = "scanner-mapping-required"
	RuleScannerPaths           = "scanner-paths"
)

// Violation is a specific, named reason a submission fails validation.
type Violation struct {
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ViolationSet is an ordered sequence of violations. It is never partially
// applied: a nonempty set means no registry mutation occurred.
type ViolationSet []Violation

// Error renders the set as a single message, one violation per line.
func (v ViolationSet) Error() string {
	lines := make([]string, len(v))
	for i, violation := range v {
		lines[i] = fmt.Sprintf("%s: %s", violation.Rule, violation.Message)
	}
	return strings.Join(lines, "\n")
}

// Engine runs the rule battery.
type Engine struct {
	logger logr.Logger
}

// NewEngine creates a validation engine.
func NewEngine(logger logr.Logger) *Engine {
	return &Engine{logger: logger.WithName("rules")}
}

// Validate applies every rule to the submission and metadata. On success it
// returns the normalized PluginRecord and a nil set; on failure it returns
// a nil record and the complete, ordered violation set.
func (e *Engine) Validate(sub *submission.Submission, meta *github.ProjectMetadata) (*registry.PluginRecord, ViolationSet) {
	var violations ViolationSet

	violations = append(violations, checkProjectExists(meta)...)
	violations = append(violations, checkCategories(sub)...)
	violations = append(violations, checkMappingRequired(sub, meta)...)
	violations = append(violations, checkScannerPaths(sub)...)

	if len(violations) > 0 {
		e.logger.Info("submission rejected",
			"ref", sub.Ref.String(),
			"violations", len(violations))
		return nil, violations
	}

	record := buildRecord(sub, meta)
	e.logger.V(1).Info("submission validated", "key", record.Key)
	return record, nil
}

// checkProjectExists verifies the reference resolves on the host.
func checkProjectExists(meta *github.ProjectMetadata) ViolationSet {
	if meta.Exists {
		return nil
	}
	return ViolationSet{{
		Rule:    RuleProjectExists,
		Message: fmt.Sprintf("repository %s does not exist on the hosting platform", meta.Ref.String()),
	}}
}

// checkCategories verifies the effective category set is nonempty and the
// "Other" sentinel carries free text. The parser enforces this shape too;
// the rule re-checks so the violation report is complete on its own.
func checkCategories(sub *submission.Submission) ViolationSet {
	if len(sub.Categories) == 0 {
		return ViolationSet{{Rule: RuleCategories, Message: "no categories selected"}}
	}
	for _, category := range sub.Categories {
		if category == submission.CategoryOther && strings.TrimSpace(sub.OtherCategory) == "" {
			return ViolationSet{{
				Rule:    RuleCategories,
				Message: `category "Other" selected without a category name`,
			}}
		}
	}
	return nil
}

// checkMappingRequired verifies a scanner mapping is supplied when the
// project lacks the canonical scanner directory. The check is skipped for
// nonexistent projects: the missing mapping is noise next to the
// project-exists violation.
func checkMappingRequired(sub *submission.Submission, meta *github.ProjectMetadata) ViolationSet {
	if !meta.Exists || meta.HasScannerDir {
		return nil
	}
	if sub.ScannerMapping == nil {
		return ViolationSet{{
			Rule: RuleScannerMappingRequired,
			Message: fmt.Sprintf("repository has no top-level %q directory, so a scanner mapping is required",
				github.ScannerDirName),
		}}
	}
	return nil
}

// checkScannerPaths verifies every path in a supplied mapping is relative,
// stays inside the project root, and names a Python scanner file.
func checkScannerPaths(sub *submission.Submission) ViolationSet {
	if sub.ScannerMapping == nil {
		return nil
	}

	var violations ViolationSet
	for _, bucket := range submission.Buckets {
		for _, scannerPath := range sub.ScannerMapping.Bucket(bucket) {
			if msg := checkScannerPath(scannerPath); msg != "" {
				violations = append(violations, Violation{
					Rule:    RuleScannerPaths,
					Message: fmt.Sprintf("%s: %q %s", bucket, scannerPath, msg),
				})
			}
		}
	}
	return violations
}

func checkScannerPath(p string) string {
	if strings.TrimSpace(p) == "" {
		return "is empty"
	}
	if strings.HasPrefix(p, "/") || strings.Contains(p, "\\") {
		return "must be a relative path"
	}
	clean := path.Clean(p)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "escapes the project root"
	}
	if !strings.HasSuffix(clean, ".py") {
		return "must point at a .py scanner file"
	}
	return ""
}

// buildRecord constructs the normalized record for a submission that
// passed every rule.
func buildRecord(sub *submission.Submission, meta *github.ProjectMetadata) *registry.PluginRecord {
	record := &registry.PluginRecord{
		Key:                meta.Ref.Key(),
		FullName:           meta.FullName,
		SourceURL:          "https://github.com/" + meta.Ref.String(),
		Description:        meta.Description,
		DefaultBranch:      meta.DefaultBranch,
		License:            meta.License,
		Homepage:           meta.Homepage,
		AvatarURL:          meta.AvatarURL,
		Stars:              meta.Stars,
		Forks:              meta.Forks,
		OpenIssues:         meta.OpenIssues,
		HasWiki:            meta.HasWiki,
		Archived:           meta.Archived,
		Categories:         normalizeCategories(sub),
		LastActivity:       meta.LastActivity,
		AdditionalComments: sub.AdditionalComments,
	}
	// A record without a mapping implies the project has the canonical
	// scanner directory at enrichment time. When the directory exists a
	// supplied mapping is redundant and is dropped rather than stored.
	if !meta.HasScannerDir {
		record.ScannerMapping = sub.ScannerMapping
	}
	return record
}

// normalizeCategories expands the "Other" sentinel to its free text and
// returns the sorted, deduplicated tag set.
func normalizeCategories(sub *submission.Submission) []string {
	seen := make(map[string]struct{}, len(sub.Categories))
	var tags []string
	for _, category := range sub.Categories {
		tag := string(category)
		if category == submission.CategoryOther {
			tag = strings.TrimSpace(sub.OtherCategory)
		}
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
