package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/gcbaptista/docsearch/api"
	"github.com/gcbaptista/docsearch/internal/analytics"
	"github.com/gcbaptista/docsearch/internal/cache"
	"github.com/gcbaptista/docsearch/internal/engine"
	"github.com/gcbaptista/docsearch/internal/logging"
	"github.com/gcbaptista/docsearch/internal/metrics"
)

const analyticsFlushInterval = 30 * time.Second

var flagPort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP search API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		if flagPort != 0 {
			cfg.Server.Port = flagPort
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		resultCache, err := cache.NewFromConfig(cfg.Cache, logging.Component(logger, "cache"))
		if err != nil {
			return err
		}

		var m *metrics.Metrics
		if cfg.Metrics.Enabled {
			m = metrics.New()
		}

		opts := []engine.Option{
			engine.WithLogger(logging.Component(logger, "engine")),
			engine.WithMetrics(m),
			engine.WithJobWorkers(cfg.Jobs.MaxConcurrent),
			engine.WithJobRetention(cfg.Jobs.Retention),
		}
		if resultCache != nil {
			opts = append(opts, engine.WithCache(resultCache))
		}
		eng := engine.NewEngine(cfg.Storage.DataDir, opts...)
		defer func() {
			if err := eng.Close(); err != nil {
				logger.WithError(err).Warn("Failed to close engine")
			}
		}()

		tracker := analytics.NewService(eng,
			analytics.WithDataFile(filepath.Join(cfg.Storage.DataDir, "analytics.json")),
			analytics.WithLogger(logging.Component(logger, "analytics")),
		)
		analyticsDone := make(chan struct{})
		go func() {
			defer close(analyticsDone)
			tracker.Run(ctx, analyticsFlushInterval)
		}()

		gin.SetMode(gin.ReleaseMode)
		router := gin.New()
		router.Use(gin.Recovery())
		router.Use(api.RequestSizeLimitMiddleware(cfg.Server.MaxRequestBytes))
		router.Use(api.CORSMiddleware())
		api.SetupRoutes(router, eng,
			api.WithAnalytics(tracker),
			api.WithMetrics(m),
			api.WithLogger(logging.Component(logger, "api")),
		)

		srv := &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}

		serveErr := make(chan error, 1)
		go func() {
			logger.WithField("addr", srv.Addr).WithField("data_dir", cfg.Storage.DataDir).Info("Starting server")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
			close(serveErr)
		}()

		select {
		case err := <-serveErr:
			stop()
			<-analyticsDone
			return err
		case <-ctx.Done():
		}

		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("Server shutdown failed")
		}
		<-analyticsDone
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&flagPort, "port", 0, "port to listen on (overrides the config)")
	rootCmd.AddCommand(serveCmd)
}
