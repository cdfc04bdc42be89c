package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoadDefaults(t *testing.T) {
	var cfg API
	require.NoError(t, Load(&cfg, "order-api", noEnvFile(t)))

	assert.Equal(t, "order-api", cfg.ServiceName)
	assert.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 10*time.Second, cfg.GatewayTimeout)
	assert.Equal(t, 5*time.Second, cfg.ReconnectDelay)
	assert.Equal(t, 30*time.Second, cfg.PendingGrace)
	assert.Equal(t, []string{"P4"}, cfg.RestockAllowList)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("RESTOCK_ALLOW_LIST", "P4,P9")
	t.Setenv("RECONNECT_DELAY", "250ms")
	t.Setenv("SERVICE_NAME", "orders-eu")

	var cfg API
	require.NoError(t, Load(&cfg, "order-api", noEnvFile(t)))

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, []string{"P4", "P9"}, cfg.RestockAllowList)
	assert.Equal(t, 250*time.Millisecond, cfg.ReconnectDelay)
	assert.Equal(t, "orders-eu", cfg.ServiceName)
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("WAREHOUSE_STEP_DELAY=2s\nWAREHOUSE_WORKERS=7\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("WAREHOUSE_STEP_DELAY")
		os.Unsetenv("WAREHOUSE_WORKERS")
	})

	var cfg Warehouse
	require.NoError(t, Load(&cfg, "warehouse", path))
	assert.Equal(t, 2*time.Second, cfg.StepDelay)
	assert.Equal(t, 7, cfg.Workers)
	assert.Equal(t, "warehouse", cfg.ServiceName)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("GATEWAY_TIMEOUT", "soon")
	var cfg API
	assert.Error(t, Load(&cfg, "order-api", noEnvFile(t)))
}
