package engine

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gcbaptista/docsearch/config"
	"github.com/gcbaptista/docsearch/index"
	"github.com/gcbaptista/docsearch/internal/errors"
	"github.com/gcbaptista/docsearch/internal/indexing"
	"github.com/gcbaptista/docsearch/internal/ingest"
	"github.com/gcbaptista/docsearch/model"
)

// Build validates rows, builds a new snapshot of the named index and swaps
// it in. Malformed rows are skipped and reported; the build fails only when
// no valid row remains, and then the previous snapshot stays live.
func (e *Engine) Build(ctx context.Context, name string, rows []model.RawRecord) (ingest.Report, error) {
	instance, err := e.instance(name)
	if err != nil {
		return ingest.Report{}, err
	}
	return instance.rebuildFromRaw(ctx, rows, nil)
}

// Rebuild rebuilds the named index from the records of its live snapshot
// with the current settings.
func (e *Engine) Rebuild(ctx context.Context, name string) error {
	instance, err := e.instance(name)
	if err != nil {
		return err
	}
	return instance.rebuild(ctx, nil)
}

func (i *IndexInstance) rebuildFromRaw(ctx context.Context, rows []model.RawRecord, progress indexing.ProgressFunc) (ingest.Report, error) {
	i.buildMu.Lock()
	defer i.buildMu.Unlock()

	start := time.Now()
	builder := i.newBuilder(i.currentSettings(), progress)
	idx, report, err := builder.BuildFromRaw(ctx, rows)
	if err != nil {
		i.observeBuild(nil, err, start)
		return report, err
	}
	if err := i.install(idx); err != nil {
		i.observeBuild(nil, err, start)
		return report, err
	}
	i.observeBuild(idx, nil, start)
	return report, nil
}

func (i *IndexInstance) rebuild(ctx context.Context, progress indexing.ProgressFunc) error {
	i.buildMu.Lock()
	defer i.buildMu.Unlock()
	return i.rebuildLocked(ctx, i.currentSettings(), progress)
}

// rebuildLocked re-indexes the live snapshot's records with settings.
// The caller holds buildMu.
func (i *IndexInstance) rebuildLocked(ctx context.Context, settings *config.IndexSettings, progress indexing.ProgressFunc) error {
	current := i.Snapshot()
	if current == nil {
		return errors.NewIndexNotBuiltError(i.name)
	}

	start := time.Now()
	idx, err := i.newBuilder(settings, progress).Build(ctx, current.Records.Records)
	if err != nil {
		i.observeBuild(nil, err, start)
		return err
	}
	idx.Skipped = current.Skipped
	if err := i.install(idx); err != nil {
		i.observeBuild(nil, err, start)
		return err
	}
	i.observeBuild(idx, nil, start)
	return nil
}

func (i *IndexInstance) newBuilder(settings *config.IndexSettings, progress indexing.ProgressFunc) *indexing.Builder {
	builder := indexing.NewBuilder(settings, i.logger.WithField("component", "indexer"))
	if progress != nil {
		builder = builder.WithProgress(progress)
	}
	return builder
}

func (i *IndexInstance) observeBuild(idx *index.Index, err error, start time.Time) {
	duration := time.Since(start)
	if err != nil {
		i.logger.WithError(err).WithField("duration", duration).Error("Index build failed")
		i.engine.metrics.ObserveBuild(i.name, err, 0, 0, 0, duration)
		return
	}
	i.logger.WithFields(logrus.Fields{
		"records":  idx.NumDocs(),
		"skipped":  idx.Skipped,
		"duration": duration,
	}).Debug("Index build observed")
	i.engine.metrics.ObserveBuild(i.name, nil, idx.NumDocs(), idx.Skipped, idx.TermCount(), duration)
}
