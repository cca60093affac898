package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/gcbaptista/docsearch/config"
	"github.com/gcbaptista/docsearch/services"
)

const keyPrefix = "search:"

// Stats reports cache effectiveness.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// QueryCache caches search results. Keys include the index name and the
// snapshot generation, so a rebuilt index never serves results of the
// previous snapshot. Concurrent misses on one key are computed once.
type QueryCache struct {
	store  Store
	ttl    time.Duration
	group  singleflight.Group
	logger *logrus.Entry
	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a cache over store. A ttl <= 0 keeps entries until evicted.
func New(store Store, ttl time.Duration, logger *logrus.Entry) *QueryCache {
	if logger == nil {
		logger = logrus.WithField("component", "query-cache")
	}
	return &QueryCache{store: store, ttl: ttl, logger: logger}
}

// NewFromConfig picks the Redis store when an address is configured and
// the memory store otherwise. It returns nil when caching is disabled.
func NewFromConfig(cfg config.CacheConfig, logger *logrus.Entry) (*QueryCache, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.RedisAddr == "" {
		return New(NewMemoryStore(cfg.MaxEntries), cfg.TTL, logger), nil
	}
	store, err := NewRedisStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting result cache: %w", err)
	}
	return New(store, cfg.TTL, logger), nil
}

// Get returns a cached result. Backend and decoding failures count as
// misses.
func (c *QueryCache) Get(ctx context.Context, key string) (services.SearchResult, bool) {
	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Cache get failed")
		return services.SearchResult{}, false
	}
	if !ok {
		return services.SearchResult{}, false
	}
	var result services.SearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Cache entry could not be decoded")
		return services.SearchResult{}, false
	}
	return result, true
}

// Set stores a result. Failures are logged and otherwise ignored.
func (c *QueryCache) Set(ctx context.Context, key string, result services.SearchResult) {
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Cache entry could not be encoded")
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Cache set failed")
	}
}

// GetOrCompute returns the cached result for key, or computes and stores
// it. The boolean reports a cache hit. Errors from compute are not cached.
func (c *QueryCache) GetOrCompute(ctx context.Context, key string, compute func() (services.SearchResult, error)) (services.SearchResult, bool, error) {
	if result, ok := c.Get(ctx, key); ok {
		c.hits.Add(1)
		result.Cached = true
		return result, true, nil
	}
	c.misses.Add(1)

	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if result, ok := c.Get(ctx, key); ok {
			return result, nil
		}
		result, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, result)
		return result, nil
	})
	if err != nil {
		return services.SearchResult{}, false, err
	}
	return val.(services.SearchResult), false, nil
}

// InvalidateIndex drops every cached result of an index.
func (c *QueryCache) InvalidateIndex(ctx context.Context, indexName string) error {
	deleted, err := c.store.DeletePrefix(ctx, indexPrefix(indexName))
	if err != nil {
		return fmt.Errorf("invalidating cache for index '%s': %w", indexName, err)
	}
	c.logger.WithFields(logrus.Fields{
		"index":        indexName,
		"keys_deleted": deleted,
	}).Debug("Cache invalidated")
	return nil
}

// Stats returns hit and miss counts.
func (c *QueryCache) Stats() Stats {
	hits, misses := c.hits.Load(), c.misses.Load()
	stats := Stats{Hits: hits, Misses: misses}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}
	return stats
}

// Close releases the backend.
func (c *QueryCache) Close() error {
	return c.store.Close()
}

// Key builds the cache key of a query against one snapshot of an index.
// Queries differing only in whitespace share a key, and so do filters given
// in a different order. Case is kept: with camel-case splitting it changes
// the query terms.
func Key(indexName string, generation uint64, query services.SearchQuery) string {
	raw := fmt.Sprintf("%s|limit=%d|cat=%s|page=%s",
		normalizeQuery(query.Query),
		query.Limit,
		normalizeList(query.Categories, true),
		normalizeList(query.Pages, false),
	)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%d:%x", indexPrefix(indexName), generation, hash[:16])
}

func indexPrefix(indexName string) string {
	return keyPrefix + indexName + ":"
}

func normalizeQuery(query string) string {
	return strings.Join(strings.Fields(query), " ")
}

func normalizeList(values []string, fold bool) string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if fold {
			v = strings.ToLower(v)
		}
		if v != "" {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return strings.Join(out, ",")
}
