// Package testing provides utilities and helpers for testing the search engine.
package testing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gcbaptista/docsearch/config"
	"github.com/gcbaptista/docsearch/internal/engine"
	"github.com/gcbaptista/docsearch/internal/ingest"
	"github.com/gcbaptista/docsearch/internal/logging"
	"github.com/gcbaptista/docsearch/model"
	"github.com/gcbaptista/docsearch/services"
)

// CreateTestEngine creates an engine persisting under t.TempDir(). It is
// closed when the test ends.
func CreateTestEngine(t *testing.T, opts ...engine.Option) *engine.Engine {
	t.Helper()
	opts = append([]engine.Option{engine.WithLogger(logging.Discard())}, opts...)
	eng := engine.NewEngine(t.TempDir(), opts...)
	t.Cleanup(func() {
		if err := eng.Close(); err != nil {
			t.Logf("Failed to close engine: %v", err)
		}
	})
	return eng
}

// ExampleTable returns a small documentation table. The first two rows are
// the canonical example: "svd" finds a#1 and "array" finds b#1.
func ExampleTable() []model.RawRecord {
	return []model.RawRecord{
		{"location": "a#1", "page": "a", "title": "SVD", "text": "singular value decomposition", "category": "method"},
		{"location": "b#1", "page": "b", "title": "BlockSparseArray", "text": "block sparse array type", "category": "type"},
		{"location": "c#1", "page": "c", "title": "Tensor contraction", "text": "contract two tensors along shared indices", "category": "section"},
		{"location": "c#2", "page": "c", "title": "contract", "text": "julia> contract(A, B)\n  compute a tensor contraction", "category": "function"},
		{"location": "d#1", "page": "d", "title": "svd!", "text": "in-place singular value decomposition", "category": "method"},
	}
}

// CreateTestIndex creates a test index with default settings
func CreateTestIndex(t *testing.T, eng *engine.Engine, indexName string) config.IndexSettings {
	t.Helper()
	settings := config.IndexSettings{
		Name:          indexName,
		TypoTolerance: true,
	}
	require.NoError(t, eng.CreateIndex(settings), "Failed to create test index")

	stored, err := eng.GetIndexSettings(indexName)
	require.NoError(t, err)
	return stored
}

// BuildTestIndex creates an index and builds it synchronously from rows
func BuildTestIndex(t *testing.T, eng *engine.Engine, indexName string, rows []model.RawRecord) ingest.Report {
	t.Helper()
	CreateTestIndex(t, eng, indexName)
	report, err := eng.Build(context.Background(), indexName, rows)
	require.NoError(t, err, "Failed to build test index")
	return report
}

// Locations returns the locations of the hits, in rank order
func Locations(result services.SearchResult) []string {
	locations := make([]string, 0, len(result.Hits))
	for _, hit := range result.Hits {
		locations = append(locations, hit.Location)
	}
	return locations
}

// JobPollingOptions configures job polling behavior
type JobPollingOptions struct {
	Timeout      time.Duration
	PollInterval time.Duration
	LogProgress  bool
}

// DefaultJobPollingOptions returns sensible defaults for job polling
func DefaultJobPollingOptions() JobPollingOptions {
	return JobPollingOptions{
		Timeout:      10 * time.Second,
		PollInterval: 10 * time.Millisecond,
		LogProgress:  false,
	}
}

// WaitForJobCompletion polls a job until it reaches a terminal status or
// times out, and returns it
func WaitForJobCompletion(t *testing.T, jobManager services.JobManager, jobID string, opts JobPollingOptions) *model.Job {
	t.Helper()
	timeout := time.After(opts.Timeout)
	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			t.Fatalf("Job %s did not complete within %v timeout", jobID, opts.Timeout)
			return nil
		case <-ticker.C:
			job, err := jobManager.GetJob(jobID)
			require.NoError(t, err, "Failed to get job status")

			if job.IsTerminal() {
				return job
			}
			if opts.LogProgress && job.Progress != nil {
				t.Logf("Job %s progress: %d/%d - %s",
					jobID,
					job.Progress.Current,
					job.Progress.Total,
					job.Progress.Message)
			}
		}
	}
}

// AssertJobCompleted verifies that a job completed successfully
func AssertJobCompleted(t *testing.T, job *model.Job, expectedType model.JobType, expectedIndex string) {
	t.Helper()
	assert.Equal(t, model.JobStatusCompleted, job.Status, "Job should be completed (error: %s)", job.Error)
	assert.Equal(t, expectedType, job.Type, "Job type should match")
	assert.Equal(t, expectedIndex, job.IndexName, "Job index name should match")
	assert.NotNil(t, job.CompletedAt, "Job should have completion timestamp")
	assert.Empty(t, job.Error, "Job should not have error")
}

// SearchTestCase represents a test case for search operations
type SearchTestCase struct {
	Name          string
	Query         services.SearchQuery
	ExpectedCount int
	ExpectedFirst string // Expected location of the first hit
	ValidateFunc  func(t *testing.T, results *services.SearchResult)
}

// RunSearchTests runs a suite of search tests against an index
func RunSearchTests(t *testing.T, indexAccessor services.IndexAccessor, tests []SearchTestCase) {
	for _, tt := range tests {
		t.Run(tt.Name, func(t *testing.T) {
			results, err := indexAccessor.Search(tt.Query)
			require.NoError(t, err, "Search should not fail")

			assert.Equal(t, tt.ExpectedCount, results.Total, "Result count should match")

			if tt.ExpectedFirst != "" {
				require.NotEmpty(t, results.Hits, "Expected at least one hit")
				assert.Equal(t, tt.ExpectedFirst, results.Hits[0].Location, "First result should match expected")
			}

			if tt.ValidateFunc != nil {
				tt.ValidateFunc(t, &results)
			}
		})
	}
}
