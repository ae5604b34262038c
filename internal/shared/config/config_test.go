package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SERVICE_NAME", "")
	cfg, err := Load("ledger-service")
	require.NoError(t, err)

	assert.Equal(t, "ledger-service", cfg.ServiceName)
	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, "8083", cfg.HTTPPort)
	assert.Equal(t, "9099", cfg.MetricsPort)
	assert.Equal(t, "ledger_events", cfg.TopicLedgerEvents)
	assert.Equal(t, "pool_updates_broadcast", cfg.RedisPubSubChannel)
	assert.True(t, cfg.RunMigrations)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVICE_NAME", "wallet-service")
	t.Setenv("HTTP_PORT_WALLET", "18082")
	t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("RUN_MIGRATIONS", "false")

	cfg, err := Load("ignored")
	require.NoError(t, err)

	assert.Equal(t, "wallet-service", cfg.ServiceName)
	assert.Equal(t, "18082", cfg.HTTPPort)
	assert.Equal(t, "9098", cfg.MetricsPort)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Brokers())
	assert.False(t, cfg.RunMigrations)
}

func TestLoadWorkerHasNoHTTPPort(t *testing.T) {
	t.Setenv("SERVICE_NAME", "pool-projector-worker")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, cfg.HTTPPort)
	assert.Equal(t, "9097", cfg.MetricsPort)
}

func TestLoadInvalidBool(t *testing.T) {
	t.Setenv("RUN_MIGRATIONS", "maybe")
	_, err := Load("ledger-service")
	assert.Error(t, err)
}
