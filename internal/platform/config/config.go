// Package config provides environment-aware configuration loading for
// every service binary in the platform (cmd/gateway, cmd/ingestion,
// cmd/query, cmd/account, cmd/aggregator), covering the options named in
// spec.md §6.8.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment represents the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Testing     Environment = "testing"
	Production  Environment = "production"
)

func parseEnvironment(s string) (Environment, bool) {
	switch Environment(s) {
	case Development, Testing, Production:
		return Environment(s), true
	}
	return "", false
}

// Config holds every tunable named in spec.md §6.8.
type Config struct {
	Env Environment

	// Service ports
	GatewayPort    int
	AccountPort    int
	IngestionPort  int
	QueryPort      int
	AggregatorPort int

	// Downstream RPC addresses, dialed through internal/platform/rpcpool
	AccountServiceAddr   string
	IngestionServiceAddr string
	QueryServiceAddr     string

	// Downstream HTTP addresses the gateway reverse-proxies requests to
	AccountHTTPAddr   string
	IngestionHTTPAddr string
	QueryHTTPAddr     string

	// Postgres
	PostgresDSN        string
	SQLMaxOpenConns    int
	SQLMaxIdleConns    int
	SQLConnMaxLifetime time.Duration

	// Redis / KV (internal/platform/kv)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPoolSize int

	// RPC channel pool (§4.6)
	RPCPoolSize    int
	RPCDialTimeout time.Duration
	RPCCallTimeout time.Duration

	// Circuit breaker (§4.3)
	CircuitMaxFailures int
	CircuitTimeout     time.Duration
	CircuitHalfOpenMax int

	// API key cache (§4.1)
	APIKeyCacheTTL         time.Duration
	APIKeyRefreshThreshold time.Duration

	// Ingestion validation and buffering (§4.7, §4.8, §4.9)
	MaxMessageLength      int
	MaxAttributeCount     int
	FutureTimestampSkew   time.Duration
	QueueMaxDepth         int64
	StorageWorkerCount    int
	StorageBatchSize      int
	IngestionBatchTimeout time.Duration

	// Partition manager (§4.10)
	PartitionMonthsAhead    int
	EnablePartitionScheduler bool

	// Aggregation scheduler (§4.11)
	EnableAggregationScheduler bool

	// Security
	JWTSecret  string
	JWTExpiry  time.Duration
	BcryptCost int

	// Logging
	LogLevel  string
	LogFormat string

	// Features
	RateLimitEnabled     bool
	EnableDebugEndpoints bool
	MetricsEnabled       bool
	MetricsPort          int
	CORSOrigins          []string
}

// Load reads APP_ENV (defaulting to development), optionally loads
// config/<env>.env via godotenv, then populates every field from the
// environment.
func Load() (*Config, error) {
	envStr := os.Getenv("APP_ENV")
	if envStr == "" {
		envStr = string(Development)
	}
	env, ok := parseEnvironment(envStr)
	if !ok {
		return nil, fmt.Errorf("invalid APP_ENV: %s (must be development, testing, or production)", envStr)
	}

	configFile := filepath.Join("config", fmt.Sprintf("%s.env", env))
	if err := godotenv.Load(configFile); err != nil {
		// Config file is optional; only warn on non-"file not found" errors
		// (e.g. parse errors) to avoid noisy logs during tests and CI runs.
		if !errors.Is(err, os.ErrNotExist) {
			fmt.Printf("Warning: Could not load %s: %v\n", configFile, err)
		}
	}

	cfg := &Config{Env: env}
	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// loadFromEnv loads configuration from environment variables.
func (c *Config) loadFromEnv() error {
	c.GatewayPort = getIntEnv("GATEWAY_PORT", 8080)
	c.AccountPort = getIntEnv("ACCOUNT_PORT", 8081)
	c.IngestionPort = getIntEnv("INGESTION_PORT", 8082)
	c.QueryPort = getIntEnv("QUERY_PORT", 8083)
	c.AggregatorPort = getIntEnv("AGGREGATOR_PORT", 8084)

	c.AccountServiceAddr = getEnv("ACCOUNT_SERVICE_ADDR", "localhost:9081")
	c.IngestionServiceAddr = getEnv("INGESTION_SERVICE_ADDR", "localhost:9082")
	c.QueryServiceAddr = getEnv("QUERY_SERVICE_ADDR", "localhost:9083")

	c.AccountHTTPAddr = getEnv("ACCOUNT_HTTP_ADDR", fmt.Sprintf("localhost:%d", getIntEnv("ACCOUNT_PORT", 8081)))
	c.IngestionHTTPAddr = getEnv("INGESTION_HTTP_ADDR", fmt.Sprintf("localhost:%d", getIntEnv("INGESTION_PORT", 8082)))
	c.QueryHTTPAddr = getEnv("QUERY_HTTP_ADDR", fmt.Sprintf("localhost:%d", getIntEnv("QUERY_PORT", 8083)))

	c.PostgresDSN = getEnv("POSTGRES_DSN", "")
	if c.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required")
	}
	c.SQLMaxOpenConns = getIntEnv("SQL_MAX_OPEN_CONNS", 20)
	c.SQLMaxIdleConns = getIntEnv("SQL_MAX_IDLE_CONNS", 10)
	var err error
	if c.SQLConnMaxLifetime, err = getDurationEnv("SQL_CONN_MAX_LIFETIME", "30m"); err != nil {
		return err
	}

	c.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	c.RedisPassword = getEnv("REDIS_PASSWORD", "")
	c.RedisDB = getIntEnv("REDIS_DB", 0)
	c.RedisPoolSize = getIntEnv("REDIS_POOL_SIZE", 50)

	c.RPCPoolSize = getIntEnv("RPC_POOL_SIZE", 10)
	if c.RPCDialTimeout, err = getDurationEnv("RPC_DIAL_TIMEOUT", "5s"); err != nil {
		return err
	}
	if c.RPCCallTimeout, err = getDurationEnv("RPC_CALL_TIMEOUT", "5s"); err != nil {
		return err
	}

	c.CircuitMaxFailures = getIntEnv("CIRCUIT_MAX_FAILURES", 5)
	if c.CircuitTimeout, err = getDurationEnv("CIRCUIT_TIMEOUT", "30s"); err != nil {
		return err
	}
	c.CircuitHalfOpenMax = getIntEnv("CIRCUIT_HALF_OPEN_MAX", 3)

	if c.APIKeyCacheTTL, err = getDurationEnv("API_KEY_CACHE_TTL", "5m"); err != nil {
		return err
	}
	if c.APIKeyRefreshThreshold, err = getDurationEnv("API_KEY_REFRESH_THRESHOLD", "60s"); err != nil {
		return err
	}

	c.MaxMessageLength = getIntEnv("MAX_MESSAGE_LENGTH", 8192)
	c.MaxAttributeCount = getIntEnv("MAX_ATTRIBUTE_COUNT", 64)
	if c.FutureTimestampSkew, err = getDurationEnv("FUTURE_TIMESTAMP_SKEW", "5m"); err != nil {
		return err
	}
	c.QueueMaxDepth = int64(getIntEnv("QUEUE_MAX_DEPTH", 10000))
	c.StorageWorkerCount = getIntEnv("STORAGE_WORKER_COUNT", 5)
	c.StorageBatchSize = getIntEnv("STORAGE_BATCH_SIZE", 500)
	if c.IngestionBatchTimeout, err = getDurationEnv("INGESTION_BATCH_TIMEOUT", "10s"); err != nil {
		return err
	}

	c.PartitionMonthsAhead = getIntEnv("PARTITION_MONTHS_AHEAD", 6)
	c.EnablePartitionScheduler = getBoolEnv("ENABLE_PARTITION_SCHEDULER", true)
	c.EnableAggregationScheduler = getBoolEnv("ENABLE_AGGREGATION_SCHEDULER", true)

	c.JWTSecret = getEnv("JWT_SECRET", "")
	if c.JWTSecret == "" && c.Env == Production {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	if c.JWTExpiry, err = getDurationEnv("JWT_EXPIRY", "15m"); err != nil {
		return err
	}
	c.BcryptCost = getIntEnv("BCRYPT_COST", 12)

	c.LogLevel = getEnv("LOG_LEVEL", "info")
	c.LogFormat = getEnv("LOG_FORMAT", "json")

	c.RateLimitEnabled = getBoolEnv("RATE_LIMIT_ENABLED", true)
	c.EnableDebugEndpoints = getBoolEnv("ENABLE_DEBUG_ENDPOINTS", false)
	c.MetricsEnabled = getBoolEnv("METRICS_ENABLED", c.Env == Production)
	c.MetricsPort = getIntEnv("METRICS_PORT", 9090)
	c.CORSOrigins = strings.Split(getEnv("CORS_ALLOWED_ORIGINS", "*"), ",")

	return nil
}

// IsDevelopment returns true if running in development environment.
func (c *Config) IsDevelopment() bool { return c.Env == Development }

// IsTesting returns true if running in testing environment.
func (c *Config) IsTesting() bool { return c.Env == Testing }

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool { return c.Env == Production }

// Validate enforces the production-only invariants of §6.8.
func (c *Config) Validate() error {
	if c.IsProduction() {
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
		}
		if c.EnableDebugEndpoints {
			return fmt.Errorf("ENABLE_DEBUG_ENDPOINTS must be false in production")
		}
		if !c.RateLimitEnabled {
			return fmt.Errorf("RATE_LIMIT_ENABLED must be true in production")
		}
	}

	ports := []int{c.GatewayPort, c.AccountPort, c.IngestionPort, c.QueryPort, c.AggregatorPort}
	for _, port := range ports {
		if port < 1024 || port > 65535 {
			return fmt.Errorf("invalid port number: %d (must be between 1024 and 65535)", port)
		}
	}
	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getDurationEnv(key, defaultValue string) (time.Duration, error) {
	value := getEnv(key, defaultValue)
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
