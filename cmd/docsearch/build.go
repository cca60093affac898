package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gcbaptista/docsearch/config"
	internalErrors "github.com/gcbaptista/docsearch/internal/errors"
	"github.com/gcbaptista/docsearch/internal/engine"
	"github.com/gcbaptista/docsearch/internal/ingest"
	"github.com/gcbaptista/docsearch/internal/logging"
)

var (
	flagBuildIndex     string
	flagSplitCamelCase bool
	flagStem           bool
	flagTypoTolerance  bool
)

var buildCmd = &cobra.Command{
	Use:   "build <table>",
	Short: "Build and persist an index from a record table",
	Long: `Build reads a record table (a JSON array, an object with a "docs" array,
or a Documenter search_index.js file) and persists a new snapshot of the
named index. The index is created with default settings when missing.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		rows, err := ingest.LoadFile(args[0])
		if err != nil {
			return err
		}

		eng := engine.NewEngine(cfg.Storage.DataDir, engine.WithLogger(logging.Component(logger, "engine")))
		defer eng.Close()

		settings := config.NewDefaultSettings(flagBuildIndex)
		settings.SplitCamelCase = flagSplitCamelCase
		settings.Stem = flagStem
		settings.TypoTolerance = flagTypoTolerance
		if err := eng.CreateIndex(*settings); err != nil && !errors.Is(err, internalErrors.ErrIndexAlreadyExists) {
			return err
		}

		start := time.Now()
		report, err := eng.Build(cmd.Context(), flagBuildIndex, rows)
		if err != nil {
			return err
		}

		accessor, err := eng.GetIndex(flagBuildIndex)
		if err != nil {
			return err
		}
		stats := accessor.Stats()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Built index %q in %s\n", flagBuildIndex, time.Since(start).Round(time.Millisecond))
		fmt.Fprintf(out, "  Records: %d accepted, %d skipped\n", report.Accepted, report.Skipped)
		fmt.Fprintf(out, "  Terms:   %d\n", stats.TermCount)
		for _, sample := range report.Samples {
			fmt.Fprintf(out, "  skipped: %s\n", sample)
		}
		return nil
	},
}

func init() {
	buildCmd.Flags().StringVar(&flagBuildIndex, "index", "", "name of the index to build")
	buildCmd.Flags().BoolVar(&flagSplitCamelCase, "split-camel-case", false, "also index camelCase components (new indexes only)")
	buildCmd.Flags().BoolVar(&flagStem, "stem", false, "apply English stemming (new indexes only)")
	buildCmd.Flags().BoolVar(&flagTypoTolerance, "typo-tolerance", true, "match query terms with typos (new indexes only)")
	_ = buildCmd.MarkFlagRequired("index")
	rootCmd.AddCommand(buildCmd)
}
