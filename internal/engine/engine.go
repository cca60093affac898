// Package engine manages named indexes. Each index holds an immutable
// snapshot that is swapped atomically when the index is rebuilt, so queries
// never observe a half-built index.
package engine

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gcbaptista/docsearch/config"
	"github.com/gcbaptista/docsearch/internal/cache"
	"github.com/gcbaptista/docsearch/internal/errors"
	"github.com/gcbaptista/docsearch/internal/jobs"
	"github.com/gcbaptista/docsearch/internal/metrics"
	"github.com/gcbaptista/docsearch/internal/persistence"
	"github.com/gcbaptista/docsearch/model"
	"github.com/gcbaptista/docsearch/services"
)

const (
	defaultJobWorkers   = 2
	defaultJobRetention = 24 * time.Hour
)

// Index names become directory names, so they are restricted.
var indexNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,127}$`)

var (
	_ services.IndexManager = (*Engine)(nil)
	_ services.IndexBuilder = (*Engine)(nil)
	_ services.JobManager   = (*Engine)(nil)
)

// Engine manages multiple search indexes.
type Engine struct {
	mu         sync.RWMutex
	indexes    map[string]*IndexInstance
	layout     persistence.Layout
	persist    bool
	jobManager *jobs.Manager
	cache      *cache.QueryCache
	metrics    *metrics.Metrics
	logger     *logrus.Entry

	jobWorkers   int
	jobRetention time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the parent log entry.
func WithLogger(logger *logrus.Entry) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithCache enables the result cache.
func WithCache(c *cache.QueryCache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithJobWorkers bounds the number of rebuilds running at once.
func WithJobWorkers(n int) Option {
	return func(e *Engine) { e.jobWorkers = n }
}

// WithJobRetention sets how long finished jobs stay queryable.
func WithJobRetention(d time.Duration) Option {
	return func(e *Engine) { e.jobRetention = d }
}

// NewEngine creates an engine and loads the indexes persisted under
// dataDir. An empty dataDir keeps everything in memory.
func NewEngine(dataDir string, opts ...Option) *Engine {
	e := &Engine{
		indexes:      make(map[string]*IndexInstance),
		layout:       persistence.Layout{DataDir: dataDir},
		persist:      dataDir != "",
		jobWorkers:   defaultJobWorkers,
		jobRetention: defaultJobRetention,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logrus.NewEntry(logrus.StandardLogger())
	}
	e.logger = e.logger.WithField("component", "engine")

	jobOpts := []jobs.Option{jobs.WithRetention(e.jobRetention)}
	if e.metrics != nil {
		jobOpts = append(jobOpts, jobs.WithObserver(e.metrics))
	}
	e.jobManager = jobs.NewManager(e.jobWorkers, e.logger.WithField("component", "jobs"), jobOpts...)
	e.jobManager.Start()

	if e.persist {
		e.loadIndexesFromDisk()
	}
	return e
}

// Close stops background jobs and releases the cache.
func (e *Engine) Close() error {
	e.jobManager.Stop()
	if e.cache != nil {
		return e.cache.Close()
	}
	return nil
}

// CreateIndex registers an empty, not yet built index.
func (e *Engine) CreateIndex(settings config.IndexSettings) error {
	if err := validateIndexName(settings.Name); err != nil {
		return err
	}
	prepared, err := prepareSettings(settings.Name, settings)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.indexes[settings.Name]; exists {
		return errors.NewIndexAlreadyExistsError(settings.Name)
	}
	if err := e.saveSettings(prepared); err != nil {
		return err
	}

	e.indexes[settings.Name] = newIndexInstance(e, prepared)
	e.logger.WithField("index", settings.Name).Info("Index created")
	return nil
}

// GetIndex returns an index by name.
func (e *Engine) GetIndex(name string) (services.IndexAccessor, error) {
	return e.instance(name)
}

// GetIndexSettings returns a copy of the settings of an index.
func (e *Engine) GetIndexSettings(name string) (config.IndexSettings, error) {
	instance, err := e.instance(name)
	if err != nil {
		return config.IndexSettings{}, err
	}
	return instance.Settings(), nil
}

// DeleteIndex removes an index from memory and disk. Queries already
// running against its snapshot finish normally.
func (e *Engine) DeleteIndex(name string) error {
	e.mu.Lock()
	if _, exists := e.indexes[name]; !exists {
		e.mu.Unlock()
		return errors.NewIndexNotFoundError(name)
	}
	delete(e.indexes, name)
	e.mu.Unlock()

	if e.persist {
		if err := e.layout.RemoveIndex(name); err != nil {
			return err
		}
	}
	e.invalidateCache(name)
	e.metrics.ForgetIndex(name)
	e.logger.WithField("index", name).Info("Index deleted")
	return nil
}

// ListIndexes returns the names of all indexes in ascending order.
func (e *Engine) ListIndexes() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.indexes))
	for name := range e.indexes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Search runs a query against the named index. It fails with
// ErrIndexNotBuilt until the index has a snapshot.
func (e *Engine) Search(name string, query services.SearchQuery) (services.SearchResult, error) {
	instance, err := e.instance(name)
	if err != nil {
		return services.SearchResult{}, err
	}
	return instance.Search(query)
}

// GetJob returns a background job by ID.
func (e *Engine) GetJob(jobID string) (*model.Job, error) {
	return e.jobManager.GetJob(jobID)
}

// ListJobs returns the jobs of an index, newest first.
func (e *Engine) ListJobs(indexName string, status *model.JobStatus) []*model.Job {
	return e.jobManager.ListJobs(indexName, status)
}

// WaitForJob blocks until a job finishes or ctx is done.
func (e *Engine) WaitForJob(ctx context.Context, jobID string) (*model.Job, error) {
	return e.jobManager.Wait(ctx, jobID)
}

// GetJobMetrics returns job counters.
func (e *Engine) GetJobMetrics() jobs.JobMetricsData {
	return e.jobManager.GetMetrics()
}

// CacheStats returns result cache counters, or false when caching is off.
func (e *Engine) CacheStats() (cache.Stats, bool) {
	if e.cache == nil {
		return cache.Stats{}, false
	}
	return e.cache.Stats(), true
}

func (e *Engine) instance(name string) (*IndexInstance, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	instance, exists := e.indexes[name]
	if !exists {
		return nil, errors.NewIndexNotFoundError(name)
	}
	return instance, nil
}

func (e *Engine) invalidateCache(name string) {
	if e.cache == nil {
		return
	}
	if err := e.cache.InvalidateIndex(context.Background(), name); err != nil {
		e.logger.WithError(err).WithField("index", name).Warn("Failed to invalidate result cache")
	}
}

func validateIndexName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.NewValidationError("name", "index name cannot be empty")
	}
	if !indexNamePattern.MatchString(name) {
		return errors.NewValidationError("name", fmt.Sprintf("index name '%s' must start with a letter or digit and contain only letters, digits, '-' or '_' (max 128)", name))
	}
	return nil
}
