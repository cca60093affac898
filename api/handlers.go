// Package api exposes the search engine over HTTP with gin.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/gcbaptista/docsearch/internal/analytics"
	"github.com/gcbaptista/docsearch/internal/cache"
	"github.com/gcbaptista/docsearch/internal/jobs"
	"github.com/gcbaptista/docsearch/internal/metrics"
	"github.com/gcbaptista/docsearch/services"
)

// Engine is what the HTTP surface needs from the search engine.
type Engine interface {
	services.IndexManager
	services.IndexBuilder
	services.JobManager
	GetJobMetrics() jobs.JobMetricsData
	CacheStats() (cache.Stats, bool)
}

// API holds dependencies for API handlers, primarily the search engine.
type API struct {
	engine    Engine
	analytics *analytics.Service
	metrics   *metrics.Metrics
	logger    *logrus.Entry
	started   time.Time
}

// Option configures an API.
type Option func(*API)

// WithAnalytics records search events in the given service.
func WithAnalytics(s *analytics.Service) Option {
	return func(a *API) { a.analytics = s }
}

// WithMetrics enables HTTP metrics and the /metrics endpoint.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *API) { a.metrics = m }
}

// WithLogger sets the request logger.
func WithLogger(logger *logrus.Entry) Option {
	return func(a *API) { a.logger = logger }
}

// NewAPI creates a new API handler structure. Without WithAnalytics an
// in-memory analytics service is used.
func NewAPI(engine Engine, opts ...Option) *API {
	api := &API{engine: engine, started: time.Now()}
	for _, opt := range opts {
		opt(api)
	}
	if api.logger == nil {
		api.logger = logrus.WithField("component", "api")
	}
	if api.analytics == nil {
		api.analytics = analytics.NewService(engine, analytics.WithLogger(api.logger))
	}
	return api
}

// SetupRoutes defines all the API routes for the search engine and returns
// the API serving them.
func SetupRoutes(router *gin.Engine, engine Engine, opts ...Option) *API {
	apiHandler := NewAPI(engine, opts...)
	apiHandler.RegisterRoutes(router)
	return apiHandler
}

// RegisterRoutes attaches middleware and routes to router.
func (api *API) RegisterRoutes(router *gin.Engine) {
	router.Use(RequestIDMiddleware(), LoggingMiddleware(api.logger), MetricsMiddleware(api.metrics))

	router.GET("/health", api.HealthCheckHandler)
	router.GET("/analytics", api.GetAnalyticsHandler)
	if api.metrics != nil {
		router.GET("/metrics", gin.WrapH(api.metrics.Handler()))
	}

	// Job management routes
	jobRoutes := router.Group("/jobs")
	{
		jobRoutes.GET("", api.ListAllJobsHandler)           // List jobs of every index
		jobRoutes.GET("/metrics", api.GetJobMetricsHandler) // Get job performance metrics
		jobRoutes.GET("/:jobId", api.GetJobHandler)         // Get job status by ID
	}

	// Index management routes
	indexRoutes := router.Group("/indexes")
	{
		indexRoutes.POST("", api.CreateIndexHandler)                              // Create a new index
		indexRoutes.GET("", api.ListIndexesHandler)                               // List all indexes
		indexRoutes.GET("/:indexName", api.GetIndexHandler)                       // Get settings and stats
		indexRoutes.DELETE("/:indexName", api.DeleteIndexHandler)                 // Delete an index
		indexRoutes.PATCH("/:indexName/settings", api.UpdateIndexSettingsHandler) // Update settings (async)
		indexRoutes.GET("/:indexName/stats", api.GetIndexStatsHandler)            // Get index statistics
		indexRoutes.GET("/:indexName/jobs", api.ListJobsHandler)                  // List jobs for an index
		indexRoutes.PUT("/:indexName/records", api.ReplaceRecordsHandler)         // Replace the record table (async)
		indexRoutes.POST("/:indexName/rebuild", api.RebuildIndexHandler)          // Rebuild from current records (async)

		indexRoutes.POST("/:indexName/_search", api.SearchHandler)
		indexRoutes.POST("/:indexName/_multi_search", api.MultiSearchHandler)
	}
}

// HealthCheckHandler provides a simple health check endpoint
func (api *API) HealthCheckHandler(c *gin.Context) {
	response := gin.H{
		"status":         "healthy",
		"service":        "docsearch",
		"timestamp":      time.Now().Unix(),
		"uptime_seconds": int64(time.Since(api.started).Seconds()),
		"indexes":        len(api.engine.ListIndexes()),
	}
	if stats, ok := api.engine.CacheStats(); ok {
		response["cache"] = stats
	}
	c.JSON(http.StatusOK, response)
}
