package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gcbaptista/docsearch/config"
	"github.com/gcbaptista/docsearch/internal/cache"
	internalErrors "github.com/gcbaptista/docsearch/internal/errors"
	"github.com/gcbaptista/docsearch/internal/logging"
	"github.com/gcbaptista/docsearch/internal/metrics"
	"github.com/gcbaptista/docsearch/model"
	"github.com/gcbaptista/docsearch/services"
)

func newTestEngine(t *testing.T, dataDir string, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithLogger(logging.Discard())}, opts...)
	e := NewEngine(dataDir, opts...)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func exampleTable() []model.RawRecord {
	return []model.RawRecord{
		{"location": "a#1", "page": "a", "title": "SVD", "text": "singular value decomposition", "category": "method"},
		{"location": "b#1", "page": "b", "title": "BlockSparseArray", "text": "block sparse array type", "category": "type"},
	}
}

func createBuiltIndex(t *testing.T, e *Engine, name string, rows []model.RawRecord) {
	t.Helper()
	require.NoError(t, e.CreateIndex(config.IndexSettings{Name: name, TypoTolerance: true}))
	_, err := e.Build(context.Background(), name, rows)
	require.NoError(t, err)
}

func locationsOf(res services.SearchResult) []string {
	out := make([]string, 0, len(res.Hits))
	for _, h := range res.Hits {
		out = append(out, h.Location)
	}
	return out
}

func TestEngine_CreateAndListIndexes(t *testing.T) {
	e := newTestEngine(t, "")

	require.NoError(t, e.CreateIndex(config.IndexSettings{Name: "zeta"}))
	require.NoError(t, e.CreateIndex(config.IndexSettings{Name: "alpha"}))

	err := e.CreateIndex(config.IndexSettings{Name: "alpha"})
	assert.True(t, errors.Is(err, internalErrors.ErrIndexAlreadyExists))

	for _, bad := range []string{"", "  ", "../etc", "a/b", "-leading"} {
		err := e.CreateIndex(config.IndexSettings{Name: bad})
		assert.True(t, errors.Is(err, internalErrors.ErrInvalidInput), "name %q", bad)
	}

	err = e.CreateIndex(config.IndexSettings{Name: "neg", TitleWeight: -1})
	assert.True(t, errors.Is(err, internalErrors.ErrInvalidInput))

	assert.Equal(t, []string{"alpha", "zeta"}, e.ListIndexes())

	settings, err := e.GetIndexSettings("alpha")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultTitleWeight, settings.TitleWeight, "defaults applied")

	_, err = e.GetIndex("missing")
	assert.True(t, errors.Is(err, internalErrors.ErrIndexNotFound))
}

func TestEngine_SearchBeforeBuild(t *testing.T) {
	e := newTestEngine(t, "")
	require.NoError(t, e.CreateIndex(config.IndexSettings{Name: "docs"}))

	_, err := e.Search("docs", services.SearchQuery{Query: "svd", Limit: 10})
	assert.True(t, errors.Is(err, internalErrors.ErrIndexNotBuilt))

	idx, err := e.GetIndex("docs")
	require.NoError(t, err)
	_, err = idx.MultiSearch(context.Background(), services.MultiSearchQuery{
		Queries: []services.NamedSearchQuery{{Name: "q", Query: "svd"}},
		Limit:   5,
	})
	assert.True(t, errors.Is(err, internalErrors.ErrIndexNotBuilt))
	assert.False(t, idx.Stats().Built)

	_, err = e.Search("missing", services.SearchQuery{Query: "svd", Limit: 10})
	assert.True(t, errors.Is(err, internalErrors.ErrIndexNotFound))
}

func TestEngine_BuildAndSearch(t *testing.T) {
	e := newTestEngine(t, "")
	createBuiltIndex(t, e, "docs", exampleTable())

	res, err := e.Search("docs", services.SearchQuery{Query: "svd", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"a#1"}, locationsOf(res))

	res, err = e.Search("docs", services.SearchQuery{Query: "array", Limit: 10})
	require.NoError(t, err)
	require.NotEmpty(t, res.Hits)
	assert.Equal(t, "b#1", res.Hits[0].Location)

	res, err = e.Search("docs", services.SearchQuery{Query: "", Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, res.Hits)

	idx, _ := e.GetIndex("docs")
	stats := idx.Stats()
	assert.True(t, stats.Built)
	assert.Equal(t, 2, stats.RecordCount)
	assert.Equal(t, 3, stats.SearchCount)
	assert.NotNil(t, stats.BuiltAt)
}

func TestEngine_BuildSkipsMalformedAndKeepsSnapshotOnFailure(t *testing.T) {
	e := newTestEngine(t, "")
	require.NoError(t, e.CreateIndex(config.IndexSettings{Name: "docs"}))

	rows := append(exampleTable(), model.RawRecord{"title": "no location"}, model.RawRecord{"location": 42})
	report, err := e.Build(context.Background(), "docs", rows)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Accepted)
	assert.Equal(t, 2, report.Skipped)

	idx, _ := e.GetIndex("docs")
	generation := idx.Stats().Generation
	assert.Equal(t, 2, idx.Stats().SkippedRecords)

	_, err = e.Build(context.Background(), "docs", []model.RawRecord{{"title": "bad"}})
	assert.True(t, errors.Is(err, internalErrors.ErrEmptyTable))
	assert.Equal(t, generation, idx.Stats().Generation, "failed build leaves the live snapshot")
}

func TestEngine_AtomicSnapshotSwap(t *testing.T) {
	e := newTestEngine(t, "")
	createBuiltIndex(t, e, "docs", exampleTable())

	instance, err := e.instance("docs")
	require.NoError(t, err)
	before := instance.Snapshot()

	replacement := []model.RawRecord{
		{"location": "c#1", "page": "c", "title": "QR", "text": "qr decomposition", "category": "method"},
	}
	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				res, err := e.Search("docs", services.SearchQuery{Query: "decomposition", Limit: 10})
				if !assert.NoError(t, err) {
					return
				}
				// Each query sees exactly one snapshot: the old or the new
				locs := locationsOf(res)
				assert.True(t, len(locs) == 1 && (locs[0] == "a#1" || locs[0] == "c#1"), "got %v", locs)
			}
		}()
	}

	_, err = e.Build(context.Background(), "docs", replacement)
	require.NoError(t, err)
	close(stop)
	wg.Wait()

	after := instance.Snapshot()
	assert.Greater(t, after.Generation, before.Generation)
	assert.Greater(t, after.Records.BaseID, before.Records.MaxDocID(), "doc ids are never reused")

	// The old snapshot is untouched and still searchable by whoever holds it
	_, ok := before.Lookup("svd")
	assert.True(t, ok)

	res, err := e.Search("docs", services.SearchQuery{Query: "svd", Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, res.Hits)
}

func TestEngine_DeleteIndex(t *testing.T) {
	dir := t.TempDir()
	e := newTestEngine(t, dir)
	createBuiltIndex(t, e, "docs", exampleTable())

	require.NoError(t, e.DeleteIndex("docs"))
	assert.Empty(t, e.ListIndexes())
	assert.True(t, errors.Is(e.DeleteIndex("docs"), internalErrors.ErrIndexNotFound))

	reopened := newTestEngine(t, dir)
	assert.Empty(t, reopened.ListIndexes())
}

func TestEngine_PersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	first := NewEngine(dir, WithLogger(logging.Discard()))
	require.NoError(t, first.CreateIndex(config.IndexSettings{Name: "built", CategoryBoosts: map[string]float64{"type": 2}}))
	_, err := first.Build(context.Background(), "built", exampleTable())
	require.NoError(t, err)
	require.NoError(t, first.CreateIndex(config.IndexSettings{Name: "empty"}))

	want, err := first.Search("built", services.SearchQuery{Query: "array", Limit: 10})
	require.NoError(t, err)
	builtIdx, _ := first.GetIndex("built")
	wantGeneration := builtIdx.Stats().Generation
	require.NoError(t, first.Close())

	second := newTestEngine(t, dir)
	assert.Equal(t, []string{"built", "empty"}, second.ListIndexes())

	got, err := second.Search("built", services.SearchQuery{Query: "array", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, locationsOf(want), locationsOf(got))
	assert.InDelta(t, want.Hits[0].Score, got.Hits[0].Score, 1e-9)

	settings, err := second.GetIndexSettings("built")
	require.NoError(t, err)
	assert.Equal(t, 2.0, settings.CategoryBoosts["type"])

	reloaded, _ := second.GetIndex("built")
	assert.Equal(t, wantGeneration, reloaded.Stats().Generation)

	_, err = second.Search("empty", services.SearchQuery{Query: "svd", Limit: 10})
	assert.True(t, errors.Is(err, internalErrors.ErrIndexNotBuilt))

	// A rebuild after reload gets a newer generation and fresh ids
	_, err = second.Build(context.Background(), "built", exampleTable())
	require.NoError(t, err)
	assert.Greater(t, reloaded.Stats().Generation, wantGeneration)
}

func TestEngine_UpdateIndexSettings(t *testing.T) {
	e := newTestEngine(t, "")
	createBuiltIndex(t, e, "docs", exampleTable())
	ctx := context.Background()

	idx, _ := e.GetIndex("docs")
	gen := idx.Stats().Generation

	t.Run("query-time change reuses postings", func(t *testing.T) {
		settings := idx.Settings()
		settings.CategoryBoosts = map[string]float64{"method": 100}
		require.NoError(t, e.UpdateIndexSettings(ctx, "docs", settings))

		assert.Greater(t, idx.Stats().Generation, gen)
		assert.Equal(t, 100.0, idx.Settings().CategoryBoosts["method"])

		res, err := e.Search("docs", services.SearchQuery{Query: "decomposition array", Limit: 10})
		require.NoError(t, err)
		require.Len(t, res.Hits, 2)
		assert.Equal(t, "a#1", res.Hits[0].Location)
	})

	t.Run("tokenizer change rebuilds", func(t *testing.T) {
		res, err := e.Search("docs", services.SearchQuery{Query: "sparse", Limit: 10})
		require.NoError(t, err)
		require.Len(t, res.Hits, 1)
		assert.Equal(t, []string{"sparse"}, res.Hits[0].MatchedTerms["text"])
		assert.Empty(t, res.Hits[0].MatchedTerms["title"])

		settings := idx.Settings()
		settings.SplitCamelCase = true
		require.NoError(t, e.UpdateIndexSettings(ctx, "docs", settings))

		res, err = e.Search("docs", services.SearchQuery{Query: "sparse", Limit: 10})
		require.NoError(t, err)
		require.Len(t, res.Hits, 1)
		assert.Equal(t, []string{"sparse"}, res.Hits[0].MatchedTerms["title"], "camel-case parts of the title are now indexed")
	})

	t.Run("invalid settings rejected", func(t *testing.T) {
		settings := idx.Settings()
		settings.PrefixPenalty = 2
		err := e.UpdateIndexSettings(ctx, "docs", settings)
		assert.True(t, errors.Is(err, internalErrors.ErrInvalidInput))

		settings = idx.Settings()
		settings.Name = "renamed"
		err = e.UpdateIndexSettings(ctx, "docs", settings)
		assert.True(t, errors.Is(err, internalErrors.ErrInvalidInput))
	})

	t.Run("unbuilt index only stores settings", func(t *testing.T) {
		require.NoError(t, e.CreateIndex(config.IndexSettings{Name: "fresh"}))
		require.NoError(t, e.UpdateIndexSettings(ctx, "fresh", config.IndexSettings{TitleWeight: 5}))
		settings, err := e.GetIndexSettings("fresh")
		require.NoError(t, err)
		assert.Equal(t, 5.0, settings.TitleWeight)
	})
}

func TestRequiresFullReindexing(t *testing.T) {
	base := config.NewDefaultSettings("docs")

	tests := []struct {
		name   string
		modify func(s *config.IndexSettings)
		want   bool
	}{
		{"no change", func(s *config.IndexSettings) {}, false},
		{"weights", func(s *config.IndexSettings) { s.TitleWeight = 2 }, false},
		{"prefix threshold", func(s *config.IndexSettings) { s.PrefixThreshold = 5 }, false},
		{"boosts", func(s *config.IndexSettings) { s.CategoryBoosts = map[string]float64{"type": 3} }, false},
		{"operator order", func(s *config.IndexSettings) { s.OperatorTokens = []string{"*", "!"} }, false},
		{"operators", func(s *config.IndexSettings) { s.OperatorTokens = []string{"!"} }, true},
		{"min term length", func(s *config.IndexSettings) { s.MinTermLength = 2 }, true},
		{"stemming", func(s *config.IndexSettings) { s.Stem = true }, true},
		{"stop words", func(s *config.IndexSettings) { s.RemoveStopWords = true }, true},
		{"camel case", func(s *config.IndexSettings) { s.SplitCamelCase = true }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			updated := base.Clone()
			tt.modify(updated)
			assert.Equal(t, tt.want, requiresFullReindexing(base, updated))
		})
	}
}

func TestEngine_ResultCache(t *testing.T) {
	m := metrics.New()
	c := cache.New(cache.NewMemoryStore(16), time.Minute, logging.Discard())
	e := newTestEngine(t, "", WithCache(c), WithMetrics(m))
	createBuiltIndex(t, e, "docs", exampleTable())

	q := services.SearchQuery{Query: "svd", Limit: 10}
	first, err := e.Search("docs", q)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := e.Search("docs", q)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Hits, second.Hits)
	assert.NotEqual(t, first.QueryID, second.QueryID)

	stats, ok := e.CacheStats()
	require.True(t, ok)
	assert.Equal(t, int64(1), stats.Hits)

	// A rebuild changes the generation, so the cached result is not reused
	_, err = e.Build(context.Background(), "docs", []model.RawRecord{
		{"location": "z#1", "title": "SVD", "text": "replacement", "category": "method"},
	})
	require.NoError(t, err)
	third, err := e.Search("docs", q)
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Equal(t, []string{"z#1"}, locationsOf(third))
}

func TestEngine_ResultCacheKeepsCaseSensitiveQueriesApart(t *testing.T) {
	rows := []model.RawRecord{
		{"location": "a#1", "title": "blocksparse", "text": "lower case identifier", "category": "section"},
		{"location": "b#1", "title": "BlockSparse", "text": "camel case identifier", "category": "type"},
		{"location": "c#1", "title": "Sparse", "text": "sparse storage", "category": "section"},
	}
	setup := func(opts ...Option) *Engine {
		e := newTestEngine(t, "", opts...)
		require.NoError(t, e.CreateIndex(config.IndexSettings{Name: "docs", SplitCamelCase: true}))
		_, err := e.Build(context.Background(), "docs", rows)
		require.NoError(t, err)
		return e
	}
	uncached := setup()
	cached := setup(WithCache(cache.New(cache.NewMemoryStore(16), time.Minute, logging.Discard())))

	// "BlockSparse" also yields block and sparse; "blocksparse" does not
	for _, q := range []string{"blocksparse", "BlockSparse", "BLOCKSPARSE"} {
		query := services.SearchQuery{Query: q, Limit: 10}
		want, err := uncached.Search("docs", query)
		require.NoError(t, err)
		got, err := cached.Search("docs", query)
		require.NoError(t, err)
		assert.False(t, got.Cached, "query %q", q)
		assert.Equal(t, locationsOf(want), locationsOf(got), "query %q", q)
	}

	lower, err := uncached.Search("docs", services.SearchQuery{Query: "blocksparse", Limit: 10})
	require.NoError(t, err)
	camel, err := uncached.Search("docs", services.SearchQuery{Query: "BlockSparse", Limit: 10})
	require.NoError(t, err)
	assert.NotEqual(t, locationsOf(lower), locationsOf(camel))
}
