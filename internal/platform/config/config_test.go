package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.HTTPAddr)
	assert.Equal(t, "file", cfg.LedgerBackend)
	assert.Equal(t, 30, cfg.AnomalyWindow)
	assert.Equal(t, "fluxmap", cfg.KafkaTopicPrefix)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.False(t, cfg.AdminEnabled())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("FLUXMAP_HTTP_ADDR", ":9999")
	t.Setenv("FLUXMAP_LEDGER_BACKEND", "memory")
	t.Setenv("FLUXMAP_KAFKA_BROKERS", "localhost:9092, localhost:9093")
	t.Setenv("FLUXMAP_ANOMALY_WINDOW", "14")
	t.Setenv("FLUXMAP_RESCAN_INTERVAL", "15m")
	t.Setenv("FLUXMAP_JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, "memory", cfg.LedgerBackend)
	assert.Equal(t, []string{"localhost:9092", "localhost:9093"}, cfg.KafkaBrokers)
	assert.Equal(t, 14, cfg.AnomalyWindow)
	assert.Equal(t, 15*time.Minute, cfg.RescanInterval)
	assert.True(t, cfg.AdminEnabled())
}

func TestLoadYAMLFileWithEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fluxmap.yaml")
	body := `
http_addr: ":7070"
data_dir: /var/lib/fluxmap
ledger_backend: redis
redis_url: redis://localhost:6379/2
rescan_interval: 30m
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	t.Setenv("FLUXMAP_CONFIG", path)
	t.Setenv("FLUXMAP_HTTP_ADDR", ":7071")

	cfg, err := Load()
	require.NoError(t, err)

	// env wins over file, file wins over default
	assert.Equal(t, ":7071", cfg.HTTPAddr)
	assert.Equal(t, "/var/lib/fluxmap", cfg.DataDir)
	assert.Equal(t, "redis", cfg.LedgerBackend)
	assert.Equal(t, 30*time.Minute, cfg.RescanInterval)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "postgres backend without dsn",
			mutate:  func(c *Config) { c.LedgerBackend = "postgres" },
			wantErr: "postgres_dsn",
		},
		{
			name:    "redis backend without url",
			mutate:  func(c *Config) { c.LedgerBackend = "redis" },
			wantErr: "redis_url",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.LedgerBackend = "etcd" },
			wantErr: "unknown ledger_backend",
		},
		{
			name:    "zero anomaly window",
			mutate:  func(c *Config) { c.AnomalyWindow = 0 },
			wantErr: "anomaly_window",
		},
		{
			name:    "fetch interval without url",
			mutate:  func(c *Config) { c.FetchInterval = time.Hour },
			wantErr: "fetch_url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
