// Command ingestion runs the ingestion service: REST and RPC accept
// endpoints, the per-project FIFO queue, the storage worker pool that
// drains it, and the partition manager that keeps log_events topped up
// (§4.7, §4.8, §4.9, §4.10, §6.1, §6.5).
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"google.golang.org/grpc"

	"github.com/loganalytics/platform/internal/gateway/handlers"
	gatewaymiddleware "github.com/loganalytics/platform/internal/gateway/middleware"
	"github.com/loganalytics/platform/internal/ingestion"
	"github.com/loganalytics/platform/internal/ingestion/partition"
	"github.com/loganalytics/platform/internal/ingestion/rpc"
	"github.com/loganalytics/platform/internal/ingestion/validate"
	"github.com/loganalytics/platform/internal/ingestion/worker"
	"github.com/loganalytics/platform/internal/notify"
	"github.com/loganalytics/platform/internal/platform/config"
	"github.com/loganalytics/platform/internal/platform/kv"
	"github.com/loganalytics/platform/internal/platform/logging"
	"github.com/loganalytics/platform/internal/platform/metrics"
	"github.com/loganalytics/platform/internal/platform/migrations"
	"github.com/loganalytics/platform/internal/platform/server"
	"github.com/loganalytics/platform/internal/platform/sqlstore"
	"github.com/loganalytics/platform/internal/proto"
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

	logger := logging.New("ingestion", cfg.LogLevel, cfg.LogFormat)

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
		metrics.Init("ingestion")
	}

	bus := notify.New(store.DB().DB, cfg.PostgresDSN, func(channel string, err error) {
		logger.WithError(err).WithFields(map[string]interface{}{"channel": channel}).Error("notification listener error")
	})
	defer bus.Close()
	publisher := notify.NewPublisher(bus, logger)

	partitions := partition.New(store.DB().DB, logger)
	if cfg.EnablePartitionScheduler {
		if err := partitions.StartScheduler(context.Background(), cfg.PartitionMonthsAhead); err != nil {
			logger.WithError(err).Fatal("start partition scheduler")
		}
		defer partitions.Stop()
	}

	validator := validate.New(validate.Options{
		MaxMessageLength:    cfg.MaxMessageLength,
		FutureTimestampSkew: cfg.FutureTimestampSkew,
	})
	queue := worker.NewQueue(redis, cfg.QueueMaxDepth)
	svc := ingestion.NewService(validator, queue, logger)
	ingestionHandlers := ingestion.NewHandlers(svc, logger)

	pool := worker.NewPool(worker.PoolConfig{
		WorkerCount: cfg.StorageWorkerCount,
		Queue:       queue,
		Store:       store,
		Partitions:  partitions,
		Publisher:   publisher,
		Logger:      logger,
		BatchSize:   cfg.StorageBatchSize,
	})
	if err := pool.Start(context.Background()); err != nil {
		logger.WithError(err).Fatal("start storage worker pool")
	}
	defer pool.Stop()

	rpcServer := grpc.NewServer()
	proto.RegisterIngestionServiceServer(rpcServer, rpc.NewServer(svc))

	_, rpcPort, err := net.SplitHostPort(cfg.IngestionServiceAddr)
	if err != nil {
		logger.WithError(err).Fatal("parse INGESTION_SERVICE_ADDR")
	}
	rpcListener, err := net.Listen("tcp", ":"+rpcPort)
	if err != nil {
		logger.WithError(err).Fatal("listen for ingestion RPC")
	}
	go func() {
		logger.WithFields(map[string]interface{}{"port": rpcPort}).Info("ingestion RPC listening")
		if err := rpcServer.Serve(rpcListener); err != nil {
			logger.WithError(err).Error("ingestion RPC server stopped")
		}
	}()

	router := mux.NewRouter()
	router.Use(gatewaymiddleware.TrustIdentityHeaders)
	ingestionHandlers.Register(router)

	health := handlers.NewHealthChecker(version.FullVersion())
	health.RegisterCheck("postgres", func() error { return store.DB().PingContext(context.Background()) })
	router.HandleFunc("/health", health.Handler())
	router.HandleFunc("/livez", handlers.LivenessHandler())

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.IngestionPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	shutdown := server.NewGracefulShutdown(httpServer, 30*time.Second)
	shutdown.OnShutdown(func() { rpcServer.GracefulStop() })
	shutdown.ListenForSignals()

	logger.WithFields(map[string]interface{}{"port": cfg.IngestionPort}).Info("ingestion service listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.WithError(err).Fatal("ingestion service stopped unexpectedly")
	}

	shutdown.Wait()
}
