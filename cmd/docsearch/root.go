package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gcbaptista/docsearch/config"
	"github.com/gcbaptista/docsearch/internal/logging"
)

var (
	flagConfig   string
	flagDataDir  string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:          "docsearch",
	Short:        "Full-text search over documentation record tables",
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "YAML config file (DOCSEARCH_* env vars override it)")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "directory holding persisted indexes (overrides the config)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level (overrides the config)")
}

// loadConfig reads the server config and applies the persistent flags.
func loadConfig() (*config.ServerConfig, *logrus.Entry, error) {
	cfg, err := config.LoadServerConfig(flagConfig)
	if err != nil {
		return nil, nil, err
	}
	if flagDataDir != "" {
		cfg.Storage.DataDir = flagDataDir
	}
	if flagLogLevel != "" {
		cfg.Logging.Level = flagLogLevel
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	return cfg, logrus.WithField("component", "docsearch"), nil
}
