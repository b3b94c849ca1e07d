// Command query runs the query service: REST and RPC reads over log
// events and aggregated metrics, plus the SSE notification stream
// (§4.12, §4.13, §6.1, §6.6).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"google.golang.org/grpc"

	"github.com/loganalytics/platform/internal/gateway/handlers"
	gatewaymiddleware "github.com/loganalytics/platform/internal/gateway/middleware"
	"github.com/loganalytics/platform/internal/notify"
	"github.com/loganalytics/platform/internal/notify/sse"
	"github.com/loganalytics/platform/internal/platform/config"
	"github.com/loganalytics/platform/internal/platform/kv"
	"github.com/loganalytics/platform/internal/platform/logging"
	"github.com/loganalytics/platform/internal/platform/metrics"
	"github.com/loganalytics/platform/internal/platform/migrations"
	"github.com/loganalytics/platform/internal/platform/server"
	"github.com/loganalytics/platform/internal/platform/sqlstore"
	"github.com/loganalytics/platform/internal/proto"
	"github.com/loganalytics/platform/internal/query"
	queryrpc "github.com/loganalytics/platform/internal/query/rpc"
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

	logger := logging.New("query", cfg.LogLevel, cfg.LogFormat)

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
		metrics.Init("query")
	}

	bus := notify.New(store.DB().DB, cfg.PostgresDSN, func(channel string, err error) {
		logger.WithError(err).WithFields(map[string]interface{}{"channel": channel}).Error("notification listener error")
	})
	defer bus.Close()

	svc := query.NewService(store, redis, logger)
	queryHandlers := query.NewHandlers(svc, logger)
	sseHandler := sse.NewHandler(bus, store, logger, 30*time.Second)

	rpcServer := grpc.NewServer()
	proto.RegisterQueryServiceServer(rpcServer, queryrpc.NewServer(svc))

	_, rpcPort, err := net.SplitHostPort(cfg.QueryServiceAddr)
	if err != nil {
		logger.WithError(err).Fatal("parse QUERY_SERVICE_ADDR")
	}
	rpcListener, err := net.Listen("tcp", ":"+rpcPort)
	if err != nil {
		logger.WithError(err).Fatal("listen for query RPC")
	}
	go func() {
		logger.WithFields(map[string]interface{}{"port": rpcPort}).Info("query RPC listening")
		if err := rpcServer.Serve(rpcListener); err != nil {
			logger.WithError(err).Error("query RPC server stopped")
		}
	}()

	router := mux.NewRouter()
	router.Use(gatewaymiddleware.TrustIdentityHeaders)
	queryHandlers.Register(router)
	router.Handle("/notifications/stream", sseHandler).Methods("GET")
	router.HandleFunc("/notifications/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}).Methods("GET")

	health := handlers.NewHealthChecker(version.FullVersion())
	health.RegisterCheck("postgres", func() error { return store.DB().PingContext(context.Background()) })
	router.HandleFunc("/health", health.Handler())
	router.HandleFunc("/livez", handlers.LivenessHandler())

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.QueryPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // the SSE stream holds the connection open indefinitely
	}

	shutdown := server.NewGracefulShutdown(httpServer, 30*time.Second)
	shutdown.OnShutdown(func() { rpcServer.GracefulStop() })
	shutdown.ListenForSignals()

	logger.WithFields(map[string]interface{}{"port": cfg.QueryPort}).Info("query service listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.WithError(err).Fatal("query service stopped unexpectedly")
	}

	shutdown.Wait()
}
