package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, "pgx", cfg.Driver)
	require.Equal(t, 1000, cfg.BatchSize)
	require.Equal(t, []string{RegistryEnv}, cfg.Registry.Kinds)
	require.False(t, cfg.Observability.Tracing.Enabled)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pgrun.json")
	data := `{
  "driver": "pq",
  "batch_size": 250,
  "registry": {"kinds": ["env", "file"], "path": "/etc/pgrun/connections.yaml"},
  "observability": {"logging": {"level": "debug"}}
}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	require.Equal(t, "pq", cfg.Driver)
	require.Equal(t, 250, cfg.BatchSize)
	require.Equal(t, []string{"env", "file"}, cfg.Registry.Kinds)
	require.Equal(t, "debug", cfg.Observability.Logging.Level)
	// Unset fields keep their defaults.
	require.Equal(t, "text", cfg.Observability.Logging.Format)
	require.Equal(t, "PGRUN_CONN_", cfg.Registry.EnvPrefix)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromFileErrors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.json"))
	require.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	_, err = LoadFromFile(path)
	require.Error(t, err)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PGRUN_DRIVER", "sqlite")
	t.Setenv("PGRUN_BATCH_SIZE", "50")
	t.Setenv("PGRUN_REGISTRY", "env, redis ,postgres")
	t.Setenv("PGRUN_REDIS_ADDR", "redis:6380")
	t.Setenv("PGRUN_REDIS_DB", "2")
	t.Setenv("PGRUN_REGISTRY_DSN", "postgres://meta@db/meta")
	t.Setenv("PGRUN_LOG_FORMAT", "json")
	t.Setenv("PGRUN_OTLP_ENDPOINT", "collector:4318")

	cfg := DefaultConfig()
	require.NoError(t, LoadFromEnv(cfg))
	require.Equal(t, "sqlite", cfg.Driver)
	require.Equal(t, 50, cfg.BatchSize)
	require.Equal(t, []string{"env", "redis", "postgres"}, cfg.Registry.Kinds)
	require.Equal(t, "redis:6380", cfg.Registry.Redis.Addr)
	require.Equal(t, 2, cfg.Registry.Redis.DB)
	require.Equal(t, "postgres://meta@db/meta", cfg.Registry.Postgres.DSN)
	require.Equal(t, "json", cfg.Observability.Logging.Format)
	require.True(t, cfg.Observability.Tracing.Enabled)
	require.Equal(t, "collector:4318", cfg.Observability.Tracing.Endpoint)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnvBadNumber(t *testing.T) {
	t.Setenv("PGRUN_BATCH_SIZE", "lots")
	require.Error(t, LoadFromEnv(DefaultConfig()))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Driver = "mysql" }},
		{"unknown registry", func(c *Config) { c.Registry.Kinds = []string{"consul"} }},
		{"file without path", func(c *Config) { c.Registry.Kinds = []string{RegistryFile} }},
		{"postgres without dsn", func(c *Config) { c.Registry.Kinds = []string{RegistryPostgres} }},
		{"redis without addr", func(c *Config) {
			c.Registry.Kinds = []string{RegistryRedis}
			c.Registry.Redis.Addr = ""
		}},
		{"two key sources", func(c *Config) {
			c.Secrets.Key = "00"
			c.Secrets.KeyFile = "/key"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
