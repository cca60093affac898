// Package analytics records search events and aggregates them into the
// dashboard served by the API.
package analytics

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"github.com/gcbaptista/docsearch/internal/persistence"
	"github.com/gcbaptista/docsearch/model"
	"github.com/gcbaptista/docsearch/services"
)

const (
	defaultMaxEvents = 10000 // Keep last 10k events for performance
	topSearchesLimit = 10
	dashboardWindow  = 24 * time.Hour
	popularityWindow = 7 * 24 * time.Hour
	defaultSaveEvery = 30 * time.Second
)

// Service implements analytics tracking and reporting
type Service struct {
	mu        sync.RWMutex
	events    []model.SearchEvent
	dirty     bool
	maxEvents int

	indexManager services.IndexManager
	dataFilePath string // Empty disables persistence
	saveMu       sync.Mutex
	logger       *logrus.Entry
	now          func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithDataFile persists events as JSON at path.
func WithDataFile(path string) Option {
	return func(s *Service) { s.dataFilePath = path }
}

// WithLogger sets the logger.
func WithLogger(logger *logrus.Entry) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMaxEvents caps the number of retained events.
func WithMaxEvents(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxEvents = n
		}
	}
}

// NewService creates a new analytics service. Existing events are loaded
// from the data file when one is configured.
func NewService(indexManager services.IndexManager, opts ...Option) *Service {
	s := &Service{
		events:       make([]model.SearchEvent, 0),
		maxEvents:    defaultMaxEvents,
		indexManager: indexManager,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logrus.WithField("component", "analytics")
	}

	if err := s.loadData(); err != nil {
		s.logger.WithError(err).Warn("Failed to load analytics data")
	}
	return s
}

// TrackSearchEvent records a new search event
func (s *Service) TrackSearchEvent(event model.SearchEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	s.events = append(s.events, event)

	// Keep only the latest events to prevent unbounded growth
	if len(s.events) > s.maxEvents {
		s.events = s.events[len(s.events)-s.maxEvents:]
	}
	s.dirty = true
}

// Run flushes new events to the data file every interval until ctx is
// done, then flushes once more.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultSaveEvery
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.Flush(); err != nil {
				s.logger.WithError(err).Warn("Failed to save analytics data")
			}
		case <-ctx.Done():
			if err := s.Flush(); err != nil {
				s.logger.WithError(err).Warn("Failed to save analytics data")
			}
			return
		}
	}
}

// Flush writes the events to the data file if any were recorded since the
// last flush.
func (s *Service) Flush() error {
	if s.dataFilePath == "" {
		return nil
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	events := make([]model.SearchEvent, len(s.events))
	copy(events, s.events)
	s.dirty = false
	s.mu.Unlock()

	err := persistence.WriteAtomic(s.dataFilePath, func(w io.Writer) error {
		return json.NewEncoder(w).Encode(events)
	})
	if err != nil {
		s.mu.Lock()
		s.dirty = true
		s.mu.Unlock()
		return fmt.Errorf("failed to write analytics file: %w", err)
	}
	return nil
}

// GetDashboardData returns complete analytics dashboard data
func (s *Service) GetDashboardData() model.AnalyticsDashboard {
	s.mu.RLock()
	now := s.now()
	recent := filterEventsSince(s.events, now.Add(-dashboardWindow))
	week := filterEventsSince(s.events, now.Add(-popularityWindow))
	s.mu.RUnlock()

	usage := s.getIndexUsage()
	totalRecords := 0
	for _, stats := range usage {
		totalRecords += stats.RecordCount
	}

	return model.AnalyticsDashboard{
		TotalSearches:            len(recent),
		AvgResponseTime:          avgResponseTimeMs(recent),
		CacheHitRate:             cacheHitRate(recent),
		ActiveIndexes:            len(usage),
		TotalRecords:             totalRecords,
		PopularSearches:          topQueries(week, func(model.SearchEvent) bool { return true }),
		ZeroResultSearches:       topQueries(week, func(e model.SearchEvent) bool { return e.ResultCount == 0 }),
		IndexUsage:               usage,
		ResponseTimeDistribution: responseTimeDistribution(recent),
		MatchTypes:               matchTypeStats(recent),
	}
}

func filterEventsSince(events []model.SearchEvent, after time.Time) []model.SearchEvent {
	filtered := make([]model.SearchEvent, 0)
	for _, event := range events {
		if event.Timestamp.After(after) {
			filtered = append(filtered, event)
		}
	}
	return filtered
}

func avgResponseTimeMs(events []model.SearchEvent) float64 {
	if len(events) == 0 {
		return 0
	}
	var total time.Duration
	for _, event := range events {
		total += event.ResponseTime
	}
	return float64(total.Microseconds()) / float64(len(events)) / 1000
}

func cacheHitRate(events []model.SearchEvent) float64 {
	if len(events) == 0 {
		return 0
	}
	hits := 0
	for _, event := range events {
		if event.Cached {
			hits++
		}
	}
	return float64(hits) / float64(len(events))
}

// topQueries counts normalized queries among the events accepted by keep
// and returns the most frequent ones. Ties are broken alphabetically.
func topQueries(events []model.SearchEvent, keep func(model.SearchEvent) bool) []model.PopularSearch {
	counts := make(map[string]int)
	for _, event := range events {
		query := strings.Join(strings.Fields(strings.ToLower(event.Query)), " ")
		if query == "" || !keep(event) {
			continue
		}
		counts[query]++
	}

	popular := make([]model.PopularSearch, 0, len(counts))
	for query, count := range counts {
		popular = append(popular, model.PopularSearch{Query: query, SearchCount: count})
	}
	sort.Slice(popular, func(i, j int) bool {
		if popular[i].SearchCount != popular[j].SearchCount {
			return popular[i].SearchCount > popular[j].SearchCount
		}
		return popular[i].Query < popular[j].Query
	})
	if len(popular) > topSearchesLimit {
		popular = popular[:topSearchesLimit]
	}
	return popular
}

// getIndexUsage returns the live statistics of every index
func (s *Service) getIndexUsage() []model.IndexStats {
	usage := make([]model.IndexStats, 0)
	if s.indexManager == nil {
		return usage
	}
	for _, name := range s.indexManager.ListIndexes() {
		accessor, err := s.indexManager.GetIndex(name)
		if err != nil {
			// Deleted between listing and lookup
			continue
		}
		usage = append(usage, accessor.Stats())
	}
	return usage
}

func responseTimeDistribution(events []model.SearchEvent) model.ResponseTimeDistribution {
	dist := model.ResponseTimeDistribution{TotalMeasured: len(events)}
	for _, event := range events {
		switch d := event.ResponseTime; {
		case d < time.Millisecond:
			dist.Bucket0To1ms++
		case d < 10*time.Millisecond:
			dist.Bucket1To10ms++
		case d < 50*time.Millisecond:
			dist.Bucket10To50ms++
		default:
			dist.Bucket50msPlus++
		}
	}
	return dist
}

func matchTypeStats(events []model.SearchEvent) model.MatchTypeStats {
	var stats model.MatchTypeStats
	for _, event := range events {
		switch event.MatchType {
		case model.MatchTypeExact:
			stats.Exact++
		case model.MatchTypePrefix:
			stats.Prefix++
		case model.MatchTypeTypo:
			stats.Typo++
		default:
			stats.NoResult++
		}
	}
	return stats
}

// loadData loads analytics data from file
func (s *Service) loadData() error {
	if s.dataFilePath == "" {
		return nil
	}
	data, err := os.ReadFile(s.dataFilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // File doesn't exist yet, that's okay
		}
		return fmt.Errorf("failed to read analytics file: %w", err)
	}

	var events []model.SearchEvent
	if err := json.Unmarshal(data, &events); err != nil {
		return fmt.Errorf("failed to unmarshal analytics data: %w", err)
	}
	if len(events) > s.maxEvents {
		events = events[len(events)-s.maxEvents:]
	}
	s.events = events
	s.logger.WithField("events", len(events)).Debug("Loaded analytics data")
	return nil
}
