// Package main is the entry point for the plugin registry updater.
package main

import (
	"os"
	"strings"

	"github.com/go-logr/zapr"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/plughub/registry-updater/cmd/plugreg/app"
	"github.com/plughub/registry-updater/internal/config"
)

// getLogLevel parses the PLUGINREG_LOG_LEVEL environment variable.
// Defaults to info if it is unset or invalid.
func getLogLevel() zapcore.Level {
	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	switch strings.ToLower(v.GetString("LOG_LEVEL")) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func main() {
	// Structured JSON logging on stderr keeps stdout clean for commands
	// that output data (e.g. version --format json).
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(getLogLevel())
	zapCfg.OutputPaths = []string{"stderr"}
	zapLogger, err := zapCfg.Build()
	if err != nil {
		os.Exit(1)
	}
	defer func() { _ = zapLogger.Sync() }()

	logger := zapr.NewLogger(zapLogger)

	if err := app.NewRootCmd(logger).Execute(); err != nil {
		os.Exit(1)
	}
}
