// Command aggregator runs the hourly rollup jobs and cache warmers of
// spec.md §4.11: endpoint/exception/log-volume metrics, per-project
// bottleneck metrics, and the top-errors/error-rate/log-volume/usage-stats
// cache snapshots the query service reads through.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"

	"github.com/loganalytics/platform/internal/aggregation"
	"github.com/loganalytics/platform/internal/gateway/handlers"
	"github.com/loganalytics/platform/internal/platform/config"
	"github.com/loganalytics/platform/internal/platform/kv"
	"github.com/loganalytics/platform/internal/platform/logging"
	"github.com/loganalytics/platform/internal/platform/metrics"
	"github.com/loganalytics/platform/internal/platform/migrations"
	"github.com/loganalytics/platform/internal/platform/server"
	"github.com/loganalytics/platform/internal/platform/sqlstore"
	"github.com/loganalytics/platform/pkg/version"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New("aggregator", cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := sqlstore.Open(ctx, cfg.PostgresDSN, cfg.SQLMaxOpenConns, cfg.SQLMaxIdleConns, int(cfg.SQLConnMaxLifetime.Seconds()))
	cancel()
	if err != nil {
		logger.WithError(err).Fatal("connect to postgres")
	}
	defer store.Close()

	if err := migrations.Apply(store.DB().DB); err != nil {
		logger.WithError(err).Fatal("apply migrations")
	}

	redisCtx, redisCancel := context.WithTimeout(context.Background(), 10*time.Second)
	redis, err := kv.New(redisCtx, kv.Config{
		Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB, PoolSize: cfg.RedisPoolSize,
	})
	redisCancel()
	if err != nil {
		logger.WithError(err).Fatal("connect to redis")
	}
	defer redis.Close()

	if cfg.MetricsEnabled {
		metrics.Init("aggregator")
	}

	jobs := aggregation.New(store, redis, logger)
	scheduler := aggregation.NewScheduler(jobs)
	if cfg.EnableAggregationScheduler {
		if err := scheduler.Start(context.Background()); err != nil {
			logger.WithError(err).Fatal("start aggregation scheduler")
		}
	}

	router := mux.NewRouter()
	health := handlers.NewHealthChecker(version.FullVersion())
	health.RegisterCheck("postgres", func() error { return store.DB().PingContext(context.Background()) })
	router.HandleFunc("/health", health.Handler())
	router.HandleFunc("/livez", handlers.LivenessHandler())

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.AggregatorPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	shutdown := server.NewGracefulShutdown(httpServer, 30*time.Second)
	shutdown.OnShutdown(func() { scheduler.Stop() })
	shutdown.ListenForSignals()

	logger.WithFields(map[string]interface{}{"port": cfg.AggregatorPort}).Info("aggregator service listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.WithError(err).Fatal("aggregator service stopped unexpectedly")
	}

	shutdown.Wait()
}
