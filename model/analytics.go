package model

import "time"

// MatchType describes how a query found its hits, for analytics.
type MatchType string

const (
	MatchTypeExact    MatchType = "exact"
	MatchTypePrefix   MatchType = "prefix"
	MatchTypeTypo     MatchType = "typo"
	MatchTypeNoResult MatchType = "no_result"
)

// SearchEvent represents a single search event for analytics tracking
type SearchEvent struct {
	IndexName    string        `json:"index_name"`
	Query        string        `json:"query"`
	MatchType    MatchType     `json:"match_type"`
	ResponseTime time.Duration `json:"response_time"`
	ResultCount  int           `json:"result_count"`
	Cached       bool          `json:"cached"`
	Timestamp    time.Time     `json:"timestamp"`
}

// PopularSearch represents aggregated data for popular search terms
type PopularSearch struct {
	Query       string `json:"query"`
	SearchCount int    `json:"search_count"`
}

// IndexStats represents statistics for a specific index
type IndexStats struct {
	IndexName      string     `json:"index_name"`
	Built          bool       `json:"built"`
	RecordCount    int        `json:"record_count"`
	SkippedRecords int        `json:"skipped_records"`
	TermCount      int        `json:"term_count"`
	SearchCount    int        `json:"search_count"`
	Generation     uint64     `json:"generation"`
	BuiltAt        *time.Time `json:"built_at,omitempty"`
}

// ResponseTimeDistribution represents response time distribution buckets
type ResponseTimeDistribution struct {
	Bucket0To1ms   int `json:"bucket_0_1ms"`
	Bucket1To10ms  int `json:"bucket_1_10ms"`
	Bucket10To50ms int `json:"bucket_10_50ms"`
	Bucket50msPlus int `json:"bucket_50ms_plus"`
	TotalMeasured  int `json:"total_measured"`
}

// MatchTypeStats counts searches per MatchType
type MatchTypeStats struct {
	Exact    int `json:"exact"`
	Prefix   int `json:"prefix"`
	Typo     int `json:"typo"`
	NoResult int `json:"no_result"`
}

// AnalyticsDashboard represents the complete analytics dashboard data
type AnalyticsDashboard struct {
	TotalSearches   int     `json:"total_searches"`
	AvgResponseTime float64 `json:"avg_response_time_ms"`
	CacheHitRate    float64 `json:"cache_hit_rate"`
	ActiveIndexes   int     `json:"active_indexes"`
	TotalRecords    int     `json:"total_records"`

	PopularSearches          []PopularSearch          `json:"popular_searches"`
	ZeroResultSearches       []PopularSearch          `json:"zero_result_searches"`
	IndexUsage               []IndexStats             `json:"index_usage"`
	ResponseTimeDistribution ResponseTimeDistribution `json:"response_time_distribution"`
	MatchTypes               MatchTypeStats           `json:"match_types"`
}
