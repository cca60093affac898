// Package indexing builds immutable indexes from record tables.
package indexing

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/gcbaptista/docsearch/config"
	"github.com/gcbaptista/docsearch/index"
	internalErrors "github.com/gcbaptista/docsearch/internal/errors"
	"github.com/gcbaptista/docsearch/internal/ingest"
	"github.com/gcbaptista/docsearch/internal/tokenizer"
	"github.com/gcbaptista/docsearch/model"
	"github.com/gcbaptista/docsearch/store"
)

// ProgressFunc receives build progress. It may be called from several
// goroutines, one call per finished shard.
type ProgressFunc func(processed, total int, message string)

// Builder turns a validated record table into an index. A Builder is
// stateless between calls and safe for concurrent use.
type Builder struct {
	settings *config.IndexSettings
	logger   *logrus.Entry
	progress ProgressFunc
}

// NewBuilder creates a builder for the given settings. Defaults are applied
// to a copy, so the caller's settings are left untouched.
func NewBuilder(settings *config.IndexSettings, logger *logrus.Entry) *Builder {
	s := settings.Clone()
	s.ApplyDefaults()
	if logger == nil {
		logger = logrus.WithField("component", "indexer")
	}
	return &Builder{settings: s, logger: logger}
}

// WithProgress returns a copy of the builder that reports progress to fn.
func (b *Builder) WithProgress(fn ProgressFunc) *Builder {
	c := *b
	c.progress = fn
	return &c
}

// Settings returns the effective settings (defaults applied).
func (b *Builder) Settings() *config.IndexSettings {
	return b.settings
}

// BuildFromRaw validates raw rows and builds an index from the valid ones.
// Malformed rows are skipped and counted in the report; the build fails
// only when nothing valid remains.
func (b *Builder) BuildFromRaw(ctx context.Context, rows []model.RawRecord) (*index.Index, ingest.Report, error) {
	records, report := ingest.Validate(rows, b.logger)
	if len(records) == 0 {
		return nil, report, internalErrors.NewEmptyTableError(report.Skipped)
	}
	idx, err := b.Build(ctx, records)
	if err != nil {
		return nil, report, err
	}
	idx.Skipped = report.Skipped
	return idx, report, nil
}

// Build indexes records in table order. Each call reserves a fresh doc-id
// range, so ids are never reused across rebuilds.
func (b *Builder) Build(ctx context.Context, records []model.Record) (*index.Index, error) {
	if len(records) == 0 {
		return nil, internalErrors.NewEmptyTableError(0)
	}

	start := time.Now()
	baseID := index.ReserveDocIDs(len(records))
	tk := tokenizer.FromSettings(b.settings)
	ranges := splitShards(len(records), b.settings.Shards)

	b.logger.WithFields(logrus.Fields{
		"index":   b.settings.Name,
		"records": len(records),
		"shards":  len(ranges),
	}).Debug("Starting index build")

	partials := make([]*partialIndex, len(ranges))
	var processed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	for i, r := range ranges {
		g.Go(func() error {
			p, err := processShard(gctx, tk, records, r, baseID)
			if err != nil {
				return err
			}
			partials[i] = p
			done := int(processed.Add(int64(r.end - r.start)))
			if b.progress != nil {
				b.progress(done, len(records), fmt.Sprintf("Indexed %d/%d records", done, len(records)))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("index build aborted: %w", err)
	}

	merged := newPartialIndex()
	for _, p := range partials {
		merged = mergePartials(merged, p)
	}

	lengths := make([]index.FieldLengths, len(records))
	for row, fl := range merged.lengths {
		lengths[row] = fl
	}

	owned := make([]model.Record, len(records))
	copy(owned, records)
	idx, err := index.Assemble(b.settings.Name, b.settings, store.NewRecordStore(baseID, owned), merged.terms, lengths)
	if err != nil {
		return nil, fmt.Errorf("failed to assemble index: %w", err)
	}

	duration := time.Since(start)
	b.logger.WithFields(logrus.Fields{
		"index":      b.settings.Name,
		"records":    idx.NumDocs(),
		"terms":      idx.TermCount(),
		"generation": idx.Generation,
		"duration":   duration,
	}).Info("Index build completed")

	return idx, nil
}
