package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_YAMLWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "local.yaml")

	yaml := []byte(`
env: dev
http:
  port: ":4000"
kafka:
  brokers: ["kafka-1:9092", "kafka-2:9092"]
cart:
  instance_id: "node-a"
`)
	require.NoError(t, os.WriteFile(path, yaml, 0o600))

	t.Setenv("CART_INSTANCE_ID", "node-b")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "dev", cfg.Env)
	require.Equal(t, ":4000", cfg.HTTP.Port)
	require.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	require.Equal(t, "node-b", cfg.Cart.InstanceID)
	require.Equal(t, 10*time.Minute, cfg.Redis.CacheTTL)
	require.Equal(t, "localhost:50052", cfg.Services.CatalogRPC)
	require.Equal(t, 30*time.Minute, cfg.Cart.IdleTTL)
	require.Equal(t, time.Minute, cfg.Cart.EvictInterval)
}

func TestTracerConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "local.yaml")

	yaml := []byte(`
env: prod
tracing:
  endpoint: "otel-collector:4318"
  sample_ratio: 0.25
`)
	require.NoError(t, os.WriteFile(path, yaml, 0o600))

	t.Setenv("OTEL_INSECURE", "false")

	cfg, err := Load(path)
	require.NoError(t, err)

	tc := cfg.TracerConfig("catalog-service")
	require.Equal(t, "catalog-service", tc.ServiceName)
	require.Equal(t, "prod", tc.Env)
	require.Equal(t, "otel-collector:4318", tc.Endpoint)
	require.False(t, tc.Insecure)
	require.InDelta(t, 0.25, tc.SampleRatio, 1e-9)
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	require.Nil(t, cfg)
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	logger, err := NewLogger(LoggerConfig{Level: "loud", Env: "dev"})
	require.Error(t, err)
	require.Nil(t, logger)

	logger, err = NewLogger(LoggerConfig{Env: "prod"})
	require.NoError(t, err)
	require.NotNil(t, logger)
}
