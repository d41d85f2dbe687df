// Package pipeline wires the submission parser, metadata enricher,
// validation engine, registry store, and change reporter into the
// end-to-end processing run. Each run handles exactly one submission,
// single-threaded; the caller serializes mutating runs.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/plughub/registry-updater/internal/contributors"
	"github.com/plughub/registry-updater/internal/github"
	"github.com/plughub/registry-updater/internal/registry"
	"github.com/plughub/registry-updater/internal/report"
	"github.com/plughub/registry-updater/internal/rules"
	"github.com/plughub/registry-updater/internal/submission"
)

// Status classifies the outcome of a pipeline run so the surrounding
// workflow can decide presentation without inspecting error types.
type Status string

const (
	// StatusApplied means the submission passed validation and the
	// registry was updated and persisted.
	StatusApplied Status = "applied"

	// StatusMalformed means the payload failed shape validation before
	// any enrichment; the submitter must fix the form.
	StatusMalformed Status = "malformed"

	// StatusBlocked means validation produced violations; the registry
	// is untouched and the submitter can correct and resubmit.
	StatusBlocked Status = "blocked"

	// StatusTransient means the hosting API could not be reached even
	// after retries; the submission itself may be fine and the run
	// should be retried later.
	StatusTransient Status = "transient"
)

// Outcome is the typed result of one run. Failures the submitter or
// workflow can act on are carried here rather than as returned errors;
// the error return of Process is reserved for infrastructure failures
// (store IO, canonicalization bugs).
type Outcome struct {
	Status Status

	// Report carries the reviewable artifacts. Always set.
	Report *report.ChangeReport

	// Record is the stored record, set only for StatusApplied.
	Record *registry.PluginRecord

	// Err is the underlying failure for malformed and transient
	// outcomes, nil otherwise.
	Err error
}

// Pipeline processes submissions against a registry.
type Pipeline struct {
	enricher *github.Enricher
	engine   *rules.Engine
	store    *registry.Store
	ledger   *contributors.Ledger
	reporter *report.Reporter
	logger   logr.Logger
}

// New creates a pipeline.
func New(
	enricher *github.Enricher,
	store *registry.Store,
	ledger *contributors.Ledger,
	logger logr.Logger,
) *Pipeline {
	return &Pipeline{
		enricher: enricher,
		engine:   rules.NewEngine(logger),
		store:    store,
		ledger:   ledger,
		reporter: report.NewReporter(),
		logger:   logger.WithName("pipeline"),
	}
}

// Process runs one submission end-to-end: parse, enrich, validate, upsert,
// persist, report. The registry is loaded fresh at the start of the run
// and never partially written: any failure before the final persist leaves
// the stored registry exactly as it was.
func (p *Pipeline) Process(ctx context.Context, raw []byte) (*Outcome, error) {
	sub, err := submission.Parse(raw)
	if err != nil {
		var malformedErr *submission.MalformedSubmissionError
		if errors.As(err, &malformedErr) {
			p.logger.Info("submission malformed", "reason", malformedErr.Reason)
			return &Outcome{
				Status: StatusMalformed,
				Report: &report.ChangeReport{Blocked: true, Markdown: report.ExceptionReport(err)},
				Err:    err,
			}, nil
		}
		return nil, err
	}

	p.logger.Info("processing submission", "ref", sub.Ref.String(), "submitter", sub.SubmitterID)

	meta, err := p.enricher.Enrich(ctx, sub.Ref)
	if err != nil {
		var hostErr *github.HostError
		if errors.As(err, &hostErr) {
			p.logger.Error(err, "enrichment failed", "ref", sub.Ref.String())
			return &Outcome{
				Status: StatusTransient,
				Report: &report.ChangeReport{Blocked: true, Markdown: report.ExceptionReport(err)},
				Err:    err,
			}, nil
		}
		return nil, err
	}

	record, violations := p.engine.Validate(sub, meta)
	if len(violations) > 0 {
		return &Outcome{
			Status: StatusBlocked,
			Report: p.reporter.Blocked(violations),
		}, nil
	}

	if err := p.store.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}
	if err := p.ledger.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load contributor ledger: %w", err)
	}

	before, err := p.store.Snapshot()
	if err != nil {
		return nil, err
	}

	// Attribution: first successful submission of a key marks the adder,
	// every successful submission marks the editor.
	if existing, ok := p.store.Get(record.Key); ok {
		record.AddedBy = existing.AddedBy
	} else {
		record.AddedBy = sub.SubmitterID
	}
	record.EditedBy = sub.SubmitterID

	prior, err := p.store.Upsert(record)
	if err != nil {
		return nil, fmt.Errorf("registry upsert failed: %w", err)
	}

	after, err := p.store.Snapshot()
	if err != nil {
		return nil, err
	}

	if err := p.store.Persist(ctx); err != nil {
		return nil, fmt.Errorf("failed to persist registry: %w", err)
	}

	p.ledger.RecordSubmission(sub.SubmitterID, prior == nil)
	if err := p.ledger.Persist(ctx); err != nil {
		return nil, fmt.Errorf("failed to persist contributor ledger: %w", err)
	}

	change, err := p.reporter.Success(before, after, record, prior)
	if err != nil {
		return nil, err
	}

	p.logger.Info("submission applied", "key", record.Key, "new", prior == nil)
	return &Outcome{
		Status: StatusApplied,
		Report: change,
		Record: record,
	}, nil
}
