package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gcbaptista/docsearch/config"
	"github.com/gcbaptista/docsearch/internal/engine"
	"github.com/gcbaptista/docsearch/internal/indexing"
	"github.com/gcbaptista/docsearch/internal/ingest"
	"github.com/gcbaptista/docsearch/internal/logging"
	"github.com/gcbaptista/docsearch/internal/search"
	"github.com/gcbaptista/docsearch/model"
	"github.com/gcbaptista/docsearch/services"
)

var (
	flagQueryIndex string
	flagLimit      int
	flagJSON       bool
)

var queryCmd = &cobra.Command{
	Use:   `query [table] "query"`,
	Short: "Search a persisted index or a record table",
	Long: `Query searches the persisted index named by --index, or builds a
throwaway index from the given record table and searches that.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		var result services.SearchResult
		switch {
		case flagQueryIndex != "" && len(args) == 1:
			result, err = queryPersisted(cfg, logger, args[0])
		case flagQueryIndex == "" && len(args) == 2:
			result, err = queryTable(cmd, logger, args[0], args[1])
		default:
			return errors.New(`give either --index and a query, or a table and a query`)
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if flagJSON {
			data, err := json.MarshalIndent(result.Hits, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(data))
			return nil
		}
		printHits(out, result.Hits)
		return nil
	},
}

func queryPersisted(cfg *config.ServerConfig, logger *logrus.Entry, query string) (services.SearchResult, error) {
	eng := engine.NewEngine(cfg.Storage.DataDir, engine.WithLogger(logging.Component(logger, "engine")))
	defer eng.Close()
	return eng.Search(flagQueryIndex, services.SearchQuery{Query: query, Limit: flagLimit})
}

func queryTable(cmd *cobra.Command, logger *logrus.Entry, tablePath, query string) (services.SearchResult, error) {
	rows, err := ingest.LoadFile(tablePath)
	if err != nil {
		return services.SearchResult{}, err
	}
	settings := config.NewDefaultSettings("cli")
	settings.TypoTolerance = true

	idx, _, err := indexing.NewBuilder(settings, logging.Component(logger, "indexing")).BuildFromRaw(cmd.Context(), rows)
	if err != nil {
		return services.SearchResult{}, err
	}
	svc, err := search.NewService(idx, logging.Component(logger, "search"))
	if err != nil {
		return services.SearchResult{}, err
	}
	return svc.Search(services.SearchQuery{Query: query, Limit: flagLimit})
}

func printHits(out io.Writer, hits []model.QueryResult) {
	if len(hits) == 0 {
		fmt.Fprintln(out, "no results")
		return
	}
	for i, hit := range hits {
		fmt.Fprintf(out, "%2d. %-30s %8.3f  %s\n", i+1, hit.Location, hit.Score, hit.Title)
		if hit.Snippet != "" {
			fmt.Fprintf(out, "    %s\n", strings.ReplaceAll(hit.Snippet, "\n", " "))
		}
	}
}

func init() {
	queryCmd.Flags().StringVar(&flagQueryIndex, "index", "", "persisted index to search")
	queryCmd.Flags().IntVar(&flagLimit, "limit", config.DefaultLimit, "maximum number of results")
	queryCmd.Flags().BoolVar(&flagJSON, "json", false, "print results as JSON")
	rootCmd.AddCommand(queryCmd)
}
