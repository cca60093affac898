package services

import (
	"context"

	"github.com/gcbaptista/docsearch/config"
	"github.com/gcbaptista/docsearch/model"
)

// SearchQuery is one free-text query against an index.
type SearchQuery struct {
	Query      string   `json:"query"`
	Limit      int      `json:"limit"`                // Limit <= 0 yields no hits
	Categories []string `json:"categories,omitempty"` // Optional: keep only these record categories
	Pages      []string `json:"pages,omitempty"`      // Optional: keep only records from these pages
}

type SearchResult struct {
	Hits       []model.QueryResult `json:"hits"`
	Total      int                 `json:"total"`      // Matching records before the limit was applied
	Took       int64               `json:"took"`       // milliseconds
	QueryID    string              `json:"query_id"`   // unique UUID for this search query
	Generation uint64              `json:"generation"` // Snapshot the query ran against
	MatchType  model.MatchType     `json:"match_type"` // Best kind of term match that produced the hits
	Cached     bool                `json:"cached,omitempty"`
}

// MultiSearchQuery represents a request to execute multiple named search queries
type MultiSearchQuery struct {
	Queries []NamedSearchQuery `json:"queries"`
	Limit   int                `json:"limit,omitempty"`
}

// NamedSearchQuery represents a single named search query within a multi-search request
type NamedSearchQuery struct {
	Name       string   `json:"name"`
	Query      string   `json:"query"`
	Limit      int      `json:"limit,omitempty"` // Overrides the request-level limit when set
	Categories []string `json:"categories,omitempty"`
	Pages      []string `json:"pages,omitempty"`
}

// MultiSearchResult represents the response from a multi-search operation
type MultiSearchResult struct {
	Results          map[string]SearchResult `json:"results"`
	TotalQueries     int                     `json:"total_queries"`
	ProcessingTimeMs float64                 `json:"processing_time_ms"`
}

// Searcher defines operations for querying an index
type Searcher interface {
	Search(query SearchQuery) (SearchResult, error)
}

// MultiSearcher defines operations for performing multiple queries in a single request
type MultiSearcher interface {
	MultiSearch(ctx context.Context, query MultiSearchQuery) (*MultiSearchResult, error)
}

// IndexAccessor is a named index as seen by callers. Search fails with
// ErrIndexNotBuilt until the first snapshot has been built.
type IndexAccessor interface {
	Searcher
	MultiSearcher
	Settings() config.IndexSettings
	Stats() model.IndexStats
}

// IndexManager manages the lifecycle of indices
type IndexManager interface {
	CreateIndex(settings config.IndexSettings) error
	GetIndex(name string) (IndexAccessor, error)
	GetIndexSettings(name string) (config.IndexSettings, error)
	DeleteIndex(name string) error
	ListIndexes() []string
}

// IndexBuilder rebuilds indexes in the background. Each method returns the
// ID of the job doing the work.
type IndexBuilder interface {
	ReplaceRecordsAsync(name string, rows []model.RawRecord) (string, error)
	UpdateSettingsAsync(name string, settings config.IndexSettings) (string, error)
	RebuildAsync(name string) (string, error)
}

// JobManager defines operations for managing background jobs
type JobManager interface {
	GetJob(jobID string) (*model.Job, error)
	ListJobs(indexName string, status *model.JobStatus) []*model.Job
}
