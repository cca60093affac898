package engine

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gcbaptista/docsearch/config"
	"github.com/gcbaptista/docsearch/internal/errors"
	"github.com/gcbaptista/docsearch/internal/indexing"
	"github.com/gcbaptista/docsearch/model"
)

// ReplaceRecordsAsync rebuilds an index from a new record table in the
// background and returns the job ID.
func (e *Engine) ReplaceRecordsAsync(name string, rows []model.RawRecord) (string, error) {
	instance, err := e.instance(name)
	if err != nil {
		return "", err
	}

	jobID := e.jobManager.CreateJob(model.JobTypeReplaceRecords, name, map[string]string{
		"operation":    "replace_records",
		"record_count": strconv.Itoa(len(rows)),
	})

	err = e.jobManager.ExecuteJob(jobID, func(ctx context.Context, _ *model.Job) error {
		e.jobManager.UpdateJobProgress(jobID, 0, len(rows), "Validating records")
		report, err := instance.rebuildFromRaw(ctx, rows, e.progressReporter(jobID))
		if err != nil {
			return fmt.Errorf("failed to rebuild index '%s': %w", name, err)
		}
		e.jobManager.UpdateJobProgress(jobID, report.Accepted, len(rows),
			fmt.Sprintf("Indexed %d records, skipped %d malformed", report.Accepted, report.Skipped))
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to start replace records job: %w", err)
	}
	return jobID, nil
}

// UpdateSettingsAsync validates new settings synchronously, then applies
// them (rebuilding if needed) in the background and returns the job ID.
func (e *Engine) UpdateSettingsAsync(name string, settings config.IndexSettings) (string, error) {
	instance, err := e.instance(name)
	if err != nil {
		return "", err
	}
	prepared, err := prepareSettings(name, settings)
	if err != nil {
		return "", err
	}

	metadata := map[string]string{"operation": "update_settings"}
	if requiresFullReindexing(instance.currentSettings(), prepared) {
		metadata["full_reindex"] = "true"
	}
	jobID := e.jobManager.CreateJob(model.JobTypeUpdateSettings, name, metadata)

	err = e.jobManager.ExecuteJob(jobID, func(ctx context.Context, _ *model.Job) error {
		return instance.updateSettings(ctx, prepared, e.progressReporter(jobID))
	})
	if err != nil {
		return "", fmt.Errorf("failed to start update settings job: %w", err)
	}
	return jobID, nil
}

// RebuildAsync rebuilds an index from its current records in the
// background and returns the job ID.
func (e *Engine) RebuildAsync(name string) (string, error) {
	instance, err := e.instance(name)
	if err != nil {
		return "", err
	}
	if instance.Snapshot() == nil {
		return "", errors.NewIndexNotBuiltError(name)
	}

	jobID := e.jobManager.CreateJob(model.JobTypeRebuild, name, map[string]string{
		"operation": "rebuild",
	})
	err = e.jobManager.ExecuteJob(jobID, func(ctx context.Context, _ *model.Job) error {
		return instance.rebuild(ctx, e.progressReporter(jobID))
	})
	if err != nil {
		return "", fmt.Errorf("failed to start rebuild job: %w", err)
	}
	return jobID, nil
}

func (e *Engine) progressReporter(jobID string) indexing.ProgressFunc {
	return func(processed, total int, message string) {
		e.jobManager.UpdateJobProgress(jobID, processed, total, message)
	}
}
