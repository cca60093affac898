package search

import (
	"context"
	"fmt"
	"time"

	"github.com/gcbaptista/docsearch/services"
)

// MultiSearch executes multiple named search queries in parallel against
// the same snapshot.
func (s *Service) MultiSearch(ctx context.Context, multiQuery services.MultiSearchQuery) (*services.MultiSearchResult, error) {
	return MultiSearch(ctx, s, multiQuery)
}

// MultiSearch fans the named queries out to searcher and collects the
// results by name. A query without its own limit uses the request limit.
func MultiSearch(ctx context.Context, searcher services.Searcher, multiQuery services.MultiSearchQuery) (*services.MultiSearchResult, error) {
	startTime := time.Now()

	if len(multiQuery.Queries) == 0 {
		return nil, fmt.Errorf("at least one query is required")
	}
	seen := make(map[string]struct{}, len(multiQuery.Queries))
	for _, nq := range multiQuery.Queries {
		if nq.Name == "" {
			return nil, fmt.Errorf("each query must have a non-empty name")
		}
		if _, dup := seen[nq.Name]; dup {
			return nil, fmt.Errorf("duplicate query name '%s'", nq.Name)
		}
		seen[nq.Name] = struct{}{}
	}

	type queryResult struct {
		name   string
		result services.SearchResult
		err    error
	}

	resultChan := make(chan queryResult, len(multiQuery.Queries))

	for _, namedQuery := range multiQuery.Queries {
		go func(nq services.NamedSearchQuery) {
			limit := nq.Limit
			if limit == 0 {
				limit = multiQuery.Limit
			}
			result, err := searcher.Search(services.SearchQuery{
				Query:      nq.Query,
				Limit:      limit,
				Categories: nq.Categories,
				Pages:      nq.Pages,
			})
			resultChan <- queryResult{name: nq.Name, result: result, err: err}
		}(namedQuery)
	}

	results := make(map[string]services.SearchResult, len(multiQuery.Queries))
	for i := 0; i < len(multiQuery.Queries); i++ {
		select {
		case qr := <-resultChan:
			if qr.err != nil {
				return nil, fmt.Errorf("error executing query '%s': %w", qr.name, qr.err)
			}
			results[qr.name] = qr.result
		case <-ctx.Done():
			return nil, fmt.Errorf("multi-search cancelled: %w", ctx.Err())
		}
	}

	return &services.MultiSearchResult{
		Results:          results,
		TotalQueries:     len(multiQuery.Queries),
		ProcessingTimeMs: float64(time.Since(startTime).Nanoseconds()) / 1e6,
	}, nil
}
