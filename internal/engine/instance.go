package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/gcbaptista/docsearch/config"
	"github.com/gcbaptista/docsearch/index"
	"github.com/gcbaptista/docsearch/internal/cache"
	"github.com/gcbaptista/docsearch/internal/errors"
	"github.com/gcbaptista/docsearch/internal/search"
	"github.com/gcbaptista/docsearch/model"
	"github.com/gcbaptista/docsearch/services"
)

var _ services.IndexAccessor = (*IndexInstance)(nil)

// IndexInstance is one named index. Its live snapshot is held behind an
// atomic pointer: queries load it once and keep using it even if a rebuild
// swaps in a newer one meanwhile.
type IndexInstance struct {
	engine *Engine
	name   string
	logger *logrus.Entry

	settingsMu sync.RWMutex
	settings   *config.IndexSettings

	buildMu sync.Mutex // Serializes rebuilds of this index

	searcher    atomic.Pointer[search.Service]
	searchCount atomic.Int64
}

func newIndexInstance(e *Engine, settings *config.IndexSettings) *IndexInstance {
	return &IndexInstance{
		engine:   e,
		name:     settings.Name,
		logger:   e.logger.WithField("index", settings.Name),
		settings: settings,
	}
}

// Name returns the index name.
func (i *IndexInstance) Name() string {
	return i.name
}

// Snapshot returns the live index snapshot, or nil before the first build.
func (i *IndexInstance) Snapshot() *index.Index {
	svc := i.searcher.Load()
	if svc == nil {
		return nil
	}
	return svc.Index()
}

// Search runs a query against the live snapshot, going through the result
// cache when one is configured.
func (i *IndexInstance) Search(query services.SearchQuery) (services.SearchResult, error) {
	svc := i.searcher.Load()
	if svc == nil {
		return services.SearchResult{}, errors.NewIndexNotBuiltError(i.name)
	}
	return i.searchWith(svc, query)
}

// MultiSearch runs several named queries against one snapshot.
func (i *IndexInstance) MultiSearch(ctx context.Context, query services.MultiSearchQuery) (*services.MultiSearchResult, error) {
	svc := i.searcher.Load()
	if svc == nil {
		return nil, errors.NewIndexNotBuiltError(i.name)
	}
	return search.MultiSearch(ctx, pinnedSearcher{instance: i, svc: svc}, query)
}

// pinnedSearcher searches a fixed snapshot through the instance's cache.
type pinnedSearcher struct {
	instance *IndexInstance
	svc      *search.Service
}

func (p pinnedSearcher) Search(query services.SearchQuery) (services.SearchResult, error) {
	return p.instance.searchWith(p.svc, query)
}

func (i *IndexInstance) searchWith(svc *search.Service, query services.SearchQuery) (services.SearchResult, error) {
	start := time.Now()
	i.searchCount.Add(1)

	var (
		result services.SearchResult
		err    error
	)
	if c := i.engine.cache; c != nil && query.Limit > 0 {
		key := cache.Key(i.name, svc.Index().Generation, query)
		result, _, err = c.GetOrCompute(context.Background(), key, func() (services.SearchResult, error) {
			return svc.Search(query)
		})
		if err == nil && result.Cached {
			result.QueryID = uuid.New().String()
			result.Took = time.Since(start).Milliseconds()
		}
	} else {
		result, err = svc.Search(query)
	}
	if err != nil {
		return services.SearchResult{}, err
	}

	i.engine.metrics.ObserveSearch(i.name, string(result.MatchType), result.Cached, len(result.Hits), time.Since(start))
	return result, nil
}

// Settings returns a copy of the index settings.
func (i *IndexInstance) Settings() config.IndexSettings {
	i.settingsMu.RLock()
	defer i.settingsMu.RUnlock()
	return *i.settings.Clone()
}

func (i *IndexInstance) currentSettings() *config.IndexSettings {
	i.settingsMu.RLock()
	defer i.settingsMu.RUnlock()
	return i.settings.Clone()
}

func (i *IndexInstance) setSettings(settings *config.IndexSettings) {
	i.settingsMu.Lock()
	defer i.settingsMu.Unlock()
	i.settings = settings
}

// Stats describes the live snapshot.
func (i *IndexInstance) Stats() model.IndexStats {
	stats := model.IndexStats{
		IndexName:   i.name,
		SearchCount: int(i.searchCount.Load()),
	}
	if idx := i.Snapshot(); idx != nil {
		builtAt := idx.BuiltAt
		stats.Built = true
		stats.RecordCount = idx.NumDocs()
		stats.SkippedRecords = idx.Skipped
		stats.TermCount = idx.TermCount()
		stats.Generation = idx.Generation
		stats.BuiltAt = &builtAt
	}
	return stats
}

// install persists idx and makes it the live snapshot. A failed write
// leaves the previous snapshot in place.
func (i *IndexInstance) install(idx *index.Index) error {
	if err := i.engine.saveSnapshot(idx); err != nil {
		return err
	}
	return i.activate(idx)
}

// activate swaps idx in as the live snapshot.
func (i *IndexInstance) activate(idx *index.Index) error {
	svc, err := search.NewService(idx, i.logger.WithField("component", "search"))
	if err != nil {
		return err
	}

	previous := i.searcher.Swap(svc)
	i.engine.invalidateCache(i.name)

	fields := logrus.Fields{
		"generation": idx.Generation,
		"records":    idx.NumDocs(),
		"terms":      idx.TermCount(),
	}
	if previous != nil {
		fields["previous_generation"] = previous.Index().Generation
	}
	i.logger.WithFields(fields).Info("Snapshot swapped in")
	return nil
}
