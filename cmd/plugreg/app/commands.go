// Package app provides the command-line surface of the plugin registry
// updater.
package app

import (
	"encoding/json"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/plughub/registry-updater/internal/versions"
)

// NewRootCmd creates the root command with all subcommands attached.
func NewRootCmd(logger logr.Logger) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "plugreg",
		DisableAutoGenTag: true,
		Short:             "Plugin registry updater",
		Long: `Plugin registry updater processes plugin submissions against the
keyed on-disk registry: it parses the submission payload, enriches it with
repository metadata, validates it, and upserts the resulting record.`,
		Run: func(cmd *cobra.Command, _ []string) {
			// If no subcommand is provided, print help
			if err := cmd.Help(); err != nil {
				logger.Error(err, "failed to display help")
			}
		},
	}

	rootCmd.PersistentFlags().String("config", "", "Path to configuration file (YAML format)")
	if err := viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")); err != nil {
		logger.Error(err, "failed to bind config flag")
	}

	rootCmd.AddCommand(newProcessCmd(logger))
	rootCmd.AddCommand(newRefreshCmd(logger))
	rootCmd.AddCommand(newVersionCmd(logger))

	return rootCmd
}

func newVersionCmd(logger logr.Logger) *cobra.Command {
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			info := versions.GetVersionInfo()
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				logger.Error(err, "failed to retrieve format flag")
				return
			}

			if format == "json" {
				output, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					logger.Error(err, "failed to format version info as JSON")
					return
				}
				fmt.Println(string(output))
			} else {
				logger.Info("plugreg version",
					"version", info.Version,
					"commit", info.Commit,
					"built", info.BuildDate,
					"go", info.GoVersion,
					"platform", info.Platform)
			}
		},
	}
	versionCmd.Flags().String("format", "", "Output format (json)")
	return versionCmd
}
