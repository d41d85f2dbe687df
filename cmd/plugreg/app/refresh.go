package app

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
)

const exceptionsFileName = "exceptions.md"

func newRefreshCmd(logger logr.Logger) *cobra.Command {
	refreshCmd := &cobra.Command{
		Use:   "refresh",
		Short: "Re-enrich every stored record",
		Long: `Re-enrich every record in the registry with current repository metadata
and rewrite the registry. Records whose repository cannot be reached are
reported in the exceptions artifact and left untouched; the sweep itself
only fails when the registry cannot be read or written.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRefresh(cmd, logger)
		},
	}

	refreshCmd.Flags().String("output", ".", "Directory to write sweep artifacts into")
	return refreshCmd
}

func runRefresh(cmd *cobra.Command, logger logr.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	outputDir, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	pipe, err := buildPipeline(logger)
	if err != nil {
		return err
	}

	outcome, err := pipe.Refresh(ctx)
	if err != nil {
		return err
	}

	artifacts := map[string]string{
		diffFileName: outcome.Diff,
	}
	if len(outcome.Exceptions) > 0 {
		artifacts[exceptionsFileName] = strings.Join(outcome.Exceptions, "\n")
	}
	if err := writeArtifacts(outputDir, artifacts); err != nil {
		return err
	}

	logger.Info("refresh sweep finished",
		"refreshed", outcome.Refreshed,
		"skipped", outcome.Skipped,
		"exceptions", len(outcome.Exceptions))
	return nil
}
