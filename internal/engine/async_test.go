package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gcbaptista/docsearch/config"
	internalErrors "github.com/gcbaptista/docsearch/internal/errors"
	"github.com/gcbaptista/docsearch/internal/logging"
	"github.com/gcbaptista/docsearch/model"
	"github.com/gcbaptista/docsearch/services"
)

func waitForJob(t *testing.T, e *Engine, jobID string) *model.Job {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	job, err := e.WaitForJob(ctx, jobID)
	if err != nil {
		t.Fatalf("Failed waiting for job %s: %v", jobID, err)
	}
	return job
}

func TestEngine_ReplaceRecordsAsync(t *testing.T) {
	engine := NewEngine(t.TempDir(), WithLogger(logging.Discard()))
	defer engine.Close()

	if err := engine.CreateIndex(config.IndexSettings{Name: "docs"}); err != nil {
		t.Fatalf("Failed to create test index: %v", err)
	}

	rows := append(exampleTable(), model.RawRecord{"title": "missing location"})
	jobID, err := engine.ReplaceRecordsAsync("docs", rows)
	if err != nil {
		t.Fatalf("Failed to start replace records job: %v", err)
	}
	if jobID == "" {
		t.Fatal("Expected non-empty job ID")
	}

	job := waitForJob(t, engine, jobID)
	if job.Status != model.JobStatusCompleted {
		t.Fatalf("Expected job to complete, got %s (error: %s)", job.Status, job.Error)
	}
	if job.Type != model.JobTypeReplaceRecords {
		t.Errorf("Expected job type %s, got %s", model.JobTypeReplaceRecords, job.Type)
	}
	if job.IndexName != "docs" {
		t.Errorf("Expected index name 'docs', got %s", job.IndexName)
	}
	if job.Metadata["record_count"] != "3" {
		t.Errorf("Expected record_count metadata 3, got %q", job.Metadata["record_count"])
	}
	if job.Progress == nil || !strings.Contains(job.Progress.Message, "skipped 1") {
		t.Errorf("Expected final progress to report the skipped row, got %+v", job.Progress)
	}

	res, err := engine.Search("docs", services.SearchQuery{Query: "svd", Limit: 10})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(res.Hits) != 1 || res.Hits[0].Location != "a#1" {
		t.Errorf("Expected a#1, got %v", locationsOf(res))
	}
}

func TestEngine_ReplaceRecordsAsyncEmptyTable(t *testing.T) {
	engine := NewEngine("", WithLogger(logging.Discard()))
	defer engine.Close()
	createBuiltIndex(t, engine, "docs", exampleTable())

	jobID, err := engine.ReplaceRecordsAsync("docs", []model.RawRecord{{"title": "no location"}})
	if err != nil {
		t.Fatalf("Failed to start replace records job: %v", err)
	}

	job := waitForJob(t, engine, jobID)
	if job.Status != model.JobStatusFailed {
		t.Fatalf("Expected job to fail, got %s", job.Status)
	}
	if job.Error == "" {
		t.Error("Expected failed job to carry an error message")
	}

	// The previous snapshot keeps serving
	res, err := engine.Search("docs", services.SearchQuery{Query: "svd", Limit: 10})
	if err != nil || len(res.Hits) != 1 {
		t.Errorf("Expected old snapshot to answer, got %v (err %v)", locationsOf(res), err)
	}
}

func TestEngine_UpdateSettingsAsync(t *testing.T) {
	engine := NewEngine(t.TempDir(), WithLogger(logging.Discard()))
	defer engine.Close()
	createBuiltIndex(t, engine, "docs", exampleTable())

	settings, err := engine.GetIndexSettings("docs")
	if err != nil {
		t.Fatalf("Failed to get settings: %v", err)
	}
	settings.Stem = true

	jobID, err := engine.UpdateSettingsAsync("docs", settings)
	if err != nil {
		t.Fatalf("Failed to start update settings job: %v", err)
	}

	job := waitForJob(t, engine, jobID)
	if job.Status != model.JobStatusCompleted {
		t.Fatalf("Expected job to complete, got %s (error: %s)", job.Status, job.Error)
	}
	if job.Type != model.JobTypeUpdateSettings {
		t.Errorf("Expected job type %s, got %s", model.JobTypeUpdateSettings, job.Type)
	}
	if job.Metadata["full_reindex"] != "true" {
		t.Errorf("Expected full_reindex metadata for a stemming change, got %v", job.Metadata)
	}

	updated, _ := engine.GetIndexSettings("docs")
	if !updated.Stem {
		t.Error("Expected stemming to be enabled after the job")
	}

	// "decompositions" stems to the same term as "decomposition"
	res, err := engine.Search("docs", services.SearchQuery{Query: "decompositions", Limit: 10})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(res.Hits) != 1 || res.Hits[0].Location != "a#1" {
		t.Errorf("Expected stemmed match on a#1, got %v", locationsOf(res))
	}
}

func TestEngine_UpdateSettingsAsyncValidation(t *testing.T) {
	engine := NewEngine("", WithLogger(logging.Discard()))
	defer engine.Close()
	createBuiltIndex(t, engine, "docs", exampleTable())

	_, err := engine.UpdateSettingsAsync("docs", config.IndexSettings{Name: "docs", PrefixPenalty: 3})
	if !errors.Is(err, internalErrors.ErrInvalidInput) {
		t.Errorf("Expected validation error, got %v", err)
	}
	if jobs := engine.ListJobs("docs", nil); len(jobs) != 0 {
		t.Errorf("Expected no job for rejected settings, got %d", len(jobs))
	}
}

func TestEngine_RebuildAsync(t *testing.T) {
	engine := NewEngine("", WithLogger(logging.Discard()))
	defer engine.Close()

	if err := engine.CreateIndex(config.IndexSettings{Name: "docs"}); err != nil {
		t.Fatalf("Failed to create test index: %v", err)
	}
	if _, err := engine.RebuildAsync("docs"); !errors.Is(err, internalErrors.ErrIndexNotBuilt) {
		t.Fatalf("Expected ErrIndexNotBuilt before the first build, got %v", err)
	}

	if _, err := engine.Build(context.Background(), "docs", exampleTable()); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	idx, _ := engine.GetIndex("docs")
	before := idx.Stats().Generation

	jobID, err := engine.RebuildAsync("docs")
	if err != nil {
		t.Fatalf("Failed to start rebuild job: %v", err)
	}
	job := waitForJob(t, engine, jobID)
	if job.Status != model.JobStatusCompleted {
		t.Fatalf("Expected job to complete, got %s (error: %s)", job.Status, job.Error)
	}

	stats := idx.Stats()
	if stats.Generation <= before {
		t.Errorf("Expected a newer generation after rebuild, got %d (was %d)", stats.Generation, before)
	}
	if stats.RecordCount != 2 {
		t.Errorf("Expected 2 records after rebuild, got %d", stats.RecordCount)
	}
}

func TestEngine_AsyncWithNonExistentIndex(t *testing.T) {
	engine := NewEngine("", WithLogger(logging.Discard()))
	defer engine.Close()

	if _, err := engine.ReplaceRecordsAsync("missing", exampleTable()); !errors.Is(err, internalErrors.ErrIndexNotFound) {
		t.Errorf("Expected ErrIndexNotFound, got %v", err)
	}
	if _, err := engine.UpdateSettingsAsync("missing", config.IndexSettings{}); !errors.Is(err, internalErrors.ErrIndexNotFound) {
		t.Errorf("Expected ErrIndexNotFound, got %v", err)
	}
	if _, err := engine.RebuildAsync("missing"); !errors.Is(err, internalErrors.ErrIndexNotFound) {
		t.Errorf("Expected ErrIndexNotFound, got %v", err)
	}
}

func TestEngine_ListJobsForIndex(t *testing.T) {
	engine := NewEngine("", WithLogger(logging.Discard()))
	defer engine.Close()

	for _, name := range []string{"first", "second"} {
		if err := engine.CreateIndex(config.IndexSettings{Name: name}); err != nil {
			t.Fatalf("Failed to create index %s: %v", name, err)
		}
	}

	var ids []string
	for _, name := range []string{"first", "first", "second"} {
		id, err := engine.ReplaceRecordsAsync(name, exampleTable())
		if err != nil {
			t.Fatalf("Failed to start job: %v", err)
		}
		ids = append(ids, id)
	}
	for _, id := range ids {
		waitForJob(t, engine, id)
	}

	if jobs := engine.ListJobs("first", nil); len(jobs) != 2 {
		t.Errorf("Expected 2 jobs for 'first', got %d", len(jobs))
	}
	if jobs := engine.ListJobs("second", nil); len(jobs) != 1 {
		t.Errorf("Expected 1 job for 'second', got %d", len(jobs))
	}

	completed := model.JobStatusCompleted
	if jobs := engine.ListJobs("", &completed); len(jobs) != 3 {
		t.Errorf("Expected 3 completed jobs overall, got %d", len(jobs))
	}

	metrics := engine.GetJobMetrics()
	if metrics.JobsCompleted != 3 {
		t.Errorf("Expected 3 completed jobs in metrics, got %d", metrics.JobsCompleted)
	}

	if _, err := engine.GetJob("unknown"); !errors.Is(err, internalErrors.ErrJobNotFound) {
		t.Errorf("Expected ErrJobNotFound, got %v", err)
	}
}
