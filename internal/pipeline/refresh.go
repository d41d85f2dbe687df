package pipeline

import (
	"context"
	"fmt"

	"github.com/plughub/registry-updater/internal/github"
	"github.com/plughub/registry-updater/internal/report"
)

// RefreshOutcome summarizes a full registry refresh sweep.
type RefreshOutcome struct {
	// Refreshed is the number of records successfully re-enriched.
	Refreshed int

	// Skipped is the number of records left untouched because their
	// repository could not be re-enriched this run.
	Skipped int

	// Diff is the unified diff of the registry across the sweep.
	Diff string

	// Exceptions carries one markdown fragment per record that could
	// not be refreshed, in key order.
	Exceptions []string
}

// Refresh re-enriches every stored record sequentially and rewrites the
// registry. Records already passed validation, so the rule battery is not
// re-run; metadata fields are brought up to date and the canonical
// scanner-directory requirement is re-checked, dropping a mapping that the
// directory's appearance made redundant. A record whose repository cannot
// be re-enriched is reported and left as is rather than aborting the sweep.
func (p *Pipeline) Refresh(ctx context.Context) (*RefreshOutcome, error) {
	if err := p.store.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}

	before, err := p.store.Snapshot()
	if err != nil {
		return nil, err
	}

	outcome := &RefreshOutcome{}
	for _, key := range p.store.Keys() {
		record, _ := p.store.Get(key)

		ref, err := github.ParseProjectURL(record.SourceURL)
		if err != nil {
			outcome.Skipped++
			outcome.Exceptions = append(outcome.Exceptions,
				report.ExceptionReport(fmt.Errorf("record %s has an unusable source URL: %w", key, err)))
			continue
		}

		meta, err := p.enricher.Enrich(ctx, ref)
		if err != nil {
			outcome.Skipped++
			outcome.Exceptions = append(outcome.Exceptions,
				report.ExceptionReport(fmt.Errorf("failed to refresh %s: %w", key, err)))
			continue
		}
		if !meta.Exists {
			outcome.Skipped++
			outcome.Exceptions = append(outcome.Exceptions,
				report.ExceptionReport(fmt.Errorf("repository %s no longer resolves", ref.String())))
			continue
		}

		record.FullName = meta.FullName
		record.Description = meta.Description
		record.DefaultBranch = meta.DefaultBranch
		record.LastActivity = meta.LastActivity
		record.License = meta.License
		record.Homepage = meta.Homepage
		record.AvatarURL = meta.AvatarURL
		record.Stars = meta.Stars
		record.Forks = meta.Forks
		record.OpenIssues = meta.OpenIssues
		record.HasWiki = meta.HasWiki
		record.Archived = meta.Archived
		if meta.HasScannerDir {
			// The canonical directory is authoritative on every run; a
			// stored mapping is stale once the directory exists.
			record.ScannerMapping = nil
		} else if record.ScannerMapping == nil {
			outcome.Exceptions = append(outcome.Exceptions,
				report.ExceptionReport(fmt.Errorf(
					"repository %s lost its %q directory and the record has no scanner mapping; resubmission needed",
					ref.String(), github.ScannerDirName)))
		}

		if _, err := p.store.Upsert(record); err != nil {
			return nil, fmt.Errorf("refresh upsert failed for %s: %w", key, err)
		}
		outcome.Refreshed++
		p.logger.V(1).Info("refreshed record", "key", key)
	}

	after, err := p.store.Snapshot()
	if err != nil {
		return nil, err
	}
	if err := p.store.Persist(ctx); err != nil {
		return nil, fmt.Errorf("failed to persist registry: %w", err)
	}

	diff, err := p.reporter.Diff(before, after)
	if err != nil {
		return nil, err
	}
	outcome.Diff = diff

	p.logger.Info("refresh sweep complete",
		"refreshed", outcome.Refreshed,
		"skipped", outcome.Skipped,
		"exceptions", len(outcome.Exceptions))
	return outcome, nil
}
