// Command gateway runs the edge HTTP gateway: the single public entry
// point that authenticates, rate-limits, and routes requests to the
// ingestion and query services (§4, §6.1).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/loganalytics/platform/internal/gateway/accountclient"
	"github.com/loganalytics/platform/internal/gateway/handlers"
	gatewaymiddleware "github.com/loganalytics/platform/internal/gateway/middleware"
	"github.com/loganalytics/platform/internal/platform/apikeycache"
	"github.com/loganalytics/platform/internal/platform/circuitbreaker"
	"github.com/loganalytics/platform/internal/platform/config"
	"github.com/loganalytics/platform/internal/platform/kv"
	"github.com/loganalytics/platform/internal/platform/logging"
	"github.com/loganalytics/platform/internal/platform/metrics"
	"github.com/loganalytics/platform/internal/platform/ratelimit"
	"github.com/loganalytics/platform/internal/platform/rpcpool"
	"github.com/loganalytics/platform/internal/platform/server"
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

	logger := logging.New("gateway", cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	redis, err := kv.New(ctx, kv.Config{
		Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB, PoolSize: cfg.RedisPoolSize,
	})
	cancel()
	if err != nil {
		logger.WithError(err).Fatal("connect to redis")
	}

	dialCtx, dialCancel := context.WithTimeout(context.Background(), 15*time.Second)
	accountPool, err := rpcpool.New(dialCtx, rpcpool.Config{
		ServiceName: "account", Address: cfg.AccountServiceAddr,
		PoolSize: cfg.RPCPoolSize, DialTimeout: cfg.RPCDialTimeout,
	})
	dialCancel()
	if err != nil {
		logger.WithError(err).Fatal("dial account service")
	}
	defer accountPool.Close()

	breaker := circuitbreaker.New(circuitbreaker.Config{
		MaxFailures: cfg.CircuitMaxFailures,
		Timeout:     cfg.CircuitTimeout,
		HalfOpenMax: cfg.CircuitHalfOpenMax,
		OnStateChange: func(from, to circuitbreaker.State) {
			logger.WithFields(map[string]interface{}{"from": from.String(), "to": to.String()}).
				Warn("account service circuit breaker state changed")
			metrics.Global().SetCircuitBreakerState("account", int(to))
		},
	})

	validator := accountclient.New(accountPool, breaker)
	keyCache := apikeycache.New(redis)
	limiter := ratelimit.New(redis)

	if cfg.MetricsEnabled {
		metrics.Init("gateway")
	}

	router := buildRouter(cfg, logger, keyCache, validator, limiter)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.GatewayPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	shutdown := server.NewGracefulShutdown(httpServer, 30*time.Second)
	shutdown.OnShutdown(func() { _ = accountPool.Close() })
	shutdown.ListenForSignals()

	if cfg.MetricsEnabled {
		go func() {
			metricsMux := http.NewServeMux()
			metricsMux.Handle("/metrics", promhttp.Handler())
			addr := fmt.Sprintf(":%d", cfg.MetricsPort)
			logger.WithFields(map[string]interface{}{"port": cfg.MetricsPort}).Info("metrics server listening")
			if err := http.ListenAndServe(addr, metricsMux); err != nil && err != http.ErrServerClosed {
				logger.WithError(err).Error("metrics server stopped")
			}
		}()
	}

	logger.WithFields(map[string]interface{}{"port": cfg.GatewayPort}).Info("gateway listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.WithError(err).Fatal("gateway stopped unexpectedly")
	}

	shutdown.Wait()
}

func buildRouter(
	cfg *config.Config,
	logger *logging.Logger,
	keyCache *apikeycache.Cache,
	validator gatewaymiddleware.APIKeyValidator,
	limiter *ratelimit.Limiter,
) *mux.Router {
	router := mux.NewRouter()

	health := handlers.NewHealthChecker(version.FullVersion())
	router.HandleFunc("/health", health.Handler())
	router.HandleFunc("/livez", handlers.LivenessHandler())

	publicPaths := []string{"/health", "/livez", "/api/v1/accounts/register", "/api/v1/accounts/login"}

	recovery := gatewaymiddleware.NewRecoveryMiddleware(logger)
	auth := gatewaymiddleware.NewAuthMiddleware(logger, keyCache, validator, cfg.JWTSecret, publicPaths...)
	rateLimit := gatewaymiddleware.NewRateLimitMiddleware(logger, limiter)
	timeoutMW := gatewaymiddleware.NewTimeoutMiddleware(30 * time.Second)
	cors := gatewaymiddleware.NewCORSMiddleware(&gatewaymiddleware.CORSConfig{AllowedOrigins: cfg.CORSOrigins})
	bodyLimit := gatewaymiddleware.NewBodyLimitMiddleware(0)
	security := gatewaymiddleware.NewSecurityHeadersMiddleware(nil)

	router.Use(recovery.Handler)
	router.Use(gatewaymiddleware.LoggingMiddleware(logger))
	router.Use(gatewaymiddleware.MetricsMiddleware("gateway", metrics.Global()))
	router.Use(security.Handler)
	router.Use(cors.Handler)
	router.Use(bodyLimit.Handler)
	router.Use(timeoutMW.Handler)
	router.Use(auth.Handler)
	if cfg.RateLimitEnabled {
		router.Use(rateLimit.Handler)
	}

	registerProxyRoutes(router, cfg, logger)

	return router
}
