package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func withEnv(t *testing.T, kv map[string]string) {
	t.Helper()
	for k, v := range kv {
		old, had := os.LookupEnv(k)
		require.NoError(t, os.Setenv(k, v))
		t.Cleanup(func() {
			if had {
				os.Setenv(k, old)
			} else {
				os.Unsetenv(k)
			}
		})
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	withEnv(t, map[string]string{
		"APP_ENV":      "development",
		"POSTGRES_DSN": "postgres://localhost/test",
	})

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, Development, cfg.Env)
	require.Equal(t, 8080, cfg.GatewayPort)
	require.Equal(t, int64(10000), cfg.QueueMaxDepth)
	require.Equal(t, 5, cfg.StorageWorkerCount)
}

func TestLoadRequiresPostgresDSN(t *testing.T) {
	withEnv(t, map[string]string{"APP_ENV": "development", "POSTGRES_DSN": ""})
	os.Unsetenv("POSTGRES_DSN")

	_, err := Load()
	require.Error(t, err)
}

func TestValidateRejectsWeakProductionSecret(t *testing.T) {
	cfg := &Config{
		Env:            Production,
		JWTSecret:      "short",
		RateLimitEnabled: true,
		GatewayPort:    8080, AccountPort: 8081, IngestionPort: 8082, QueryPort: 8083, AggregatorPort: 8084,
	}
	err := cfg.Validate()
	require.Error(t, err)
}

func TestValidateRejectsInvalidPort(t *testing.T) {
	cfg := &Config{
		Env:         Development,
		GatewayPort: 80,
	}
	err := cfg.Validate()
	require.Error(t, err)
}
