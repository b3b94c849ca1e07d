// Command account runs the account service: registration, login, project
// management, and API key issuance (§6.2).
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

	"github.com/loganalytics/platform/internal/account"
	"github.com/loganalytics/platform/internal/gateway/handlers"
	gatewaymiddleware "github.com/loganalytics/platform/internal/gateway/middleware"
	"github.com/loganalytics/platform/internal/platform/config"
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

	logger := logging.New("account", cfg.LogLevel, cfg.LogFormat)

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

	if cfg.MetricsEnabled {
		metrics.Init("account")
	}

	svc := account.NewService(store, logger, cfg.JWTSecret, cfg.JWTExpiry)
	accountHandlers := account.NewHandlers(svc, logger)

	rpcServer := grpc.NewServer()
	proto.RegisterAccountServiceServer(rpcServer, account.NewRPCServer(store))

	_, rpcPort, err := net.SplitHostPort(cfg.AccountServiceAddr)
	if err != nil {
		logger.WithError(err).Fatal("parse ACCOUNT_SERVICE_ADDR")
	}
	rpcListener, err := net.Listen("tcp", ":"+rpcPort)
	if err != nil {
		logger.WithError(err).Fatal("listen for account RPC")
	}
	go func() {
		logger.WithFields(map[string]interface{}{"port": rpcPort}).Info("account RPC listening")
		if err := rpcServer.Serve(rpcListener); err != nil {
			logger.WithError(err).Error("account RPC server stopped")
		}
	}()

	router := mux.NewRouter()
	router.Use(gatewaymiddleware.TrustIdentityHeaders)
	accountHandlers.Register(router)

	health := handlers.NewHealthChecker(version.FullVersion())
	health.RegisterCheck("postgres", func() error { return store.DB().PingContext(context.Background()) })
	router.HandleFunc("/health", health.Handler())
	router.HandleFunc("/livez", handlers.LivenessHandler())

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.AccountPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	shutdown := server.NewGracefulShutdown(httpServer, 30*time.Second)
	shutdown.OnShutdown(func() { rpcServer.GracefulStop() })
	shutdown.ListenForSignals()

	logger.WithFields(map[string]interface{}{"port": cfg.AccountPort}).Info("account service listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.WithError(err).Fatal("account service stopped unexpectedly")
	}

	shutdown.Wait()
}
