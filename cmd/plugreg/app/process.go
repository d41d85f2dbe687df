package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/plughub/registry-updater/internal/config"
	"github.com/plughub/registry-updater/internal/contributors"
	"github.com/plughub/registry-updater/internal/github"
	"github.com/plughub/registry-updater/internal/httpclient"
	"github.com/plughub/registry-updater/internal/pipeline"
	"github.com/plughub/registry-updater/internal/registry"
)

// Artifact file names written into the output directory for the
// surrounding workflow to pick up.
const (
	statusFileName  = "status.txt"
	titleFileName   = "title.txt"
	diffFileName    = "registry.diff"
	commentFileName = "comment.md"

	artifactFileMode = 0600
)

func newProcessCmd(logger logr.Logger) *cobra.Command {
	processCmd := &cobra.Command{
		Use:   "process",
		Short: "Process one plugin submission",
		Long: `Process one plugin submission end-to-end: parse the payload, enrich it
with repository metadata, validate it, and upsert the record into the
registry. The outcome and its review artifacts (status, title, diff,
comment) are written into the output directory.

Malformed and blocked submissions are normal outcomes: the artifacts say
what to fix and the command exits zero. The command fails only when the
hosting API stays unreachable or the registry cannot be read or written.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProcess(cmd, logger)
		},
	}

	processCmd.Flags().String("input", "-", "Path to the submission payload ('-' for stdin)")
	processCmd.Flags().String("output", ".", "Directory to write outcome artifacts into")
	return processCmd
}

func runProcess(cmd *cobra.Command, logger logr.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	inputPath, err := cmd.Flags().GetString("input")
	if err != nil {
		return err
	}
	outputDir, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	raw, err := readPayload(inputPath)
	if err != nil {
		return fmt.Errorf("failed to read submission payload: %w", err)
	}

	pipe, err := buildPipeline(logger)
	if err != nil {
		return err
	}

	outcome, err := pipe.Process(ctx, raw)
	if err != nil {
		return err
	}

	if err := writeOutcomeArtifacts(outputDir, outcome); err != nil {
		return err
	}

	switch outcome.Status {
	case pipeline.StatusApplied:
		logger.Info("submission applied", "key", outcome.Record.Key, "title", outcome.Report.Title)
		return nil
	case pipeline.StatusMalformed, pipeline.StatusBlocked:
		logger.Info("submission rejected", "status", string(outcome.Status))
		return nil
	default:
		// Transient: fail the run so the workflow retries it later.
		return fmt.Errorf("submission could not be processed: %w", outcome.Err)
	}
}

// buildPipeline assembles the processing pipeline from the configuration
// named by the --config flag.
func buildPipeline(logger logr.Logger) (*pipeline.Pipeline, error) {
	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	client := httpclient.NewDefaultClient(cfg.GitHub.Timeout(), cfg.GitHub.Token)
	enricher := github.NewEnricher(client, cfg, logger)
	store := registry.NewStore(cfg.Registry.Path, logger)
	ledger := contributors.NewLedger(cfg.Registry.Path)
	return pipeline.New(enricher, store, ledger, logger), nil
}

func readPayload(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(io.LimitReader(os.Stdin, 1<<20))
	}
	return os.ReadFile(path)
}

// writeOutcomeArtifacts writes the full artifact set on every outcome.
// Title and diff are empty for non-applied outcomes; writing them anyway
// means a stale pair from an earlier run in the same directory can never
// sit next to a fresh status file.
func writeOutcomeArtifacts(dir string, outcome *pipeline.Outcome) error {
	var title string
	if outcome.Report.Title != "" {
		title = outcome.Report.Title + "\n"
	}
	return writeArtifacts(dir, map[string]string{
		statusFileName:  string(outcome.Status) + "\n",
		commentFileName: outcome.Report.Markdown,
		titleFileName:   title,
		diffFileName:    outcome.Report.Diff,
	})
}

func writeArtifacts(dir string, artifacts map[string]string) error {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	for name, content := range artifacts {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), artifactFileMode); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	return nil
}
