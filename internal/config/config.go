package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/oriys/pgrun/internal/observability"
	"github.com/oriys/pgrun/internal/query"
)

// Registry kinds.
const (
	RegistryEnv      = "env"
	RegistryFile     = "file"
	RegistryRedis    = "redis"
	RegistryPostgres = "postgres"
)

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// PostgresConfig holds the metadata database settings
type PostgresConfig struct {
	DSN string `json:"dsn"`
}

// RegistryConfig selects where symbolic connection ids are looked up.
// Kinds are tried in order and the first hit wins.
type RegistryConfig struct {
	Kinds     []string       `json:"kinds"`
	EnvPrefix string         `json:"env_prefix"`
	Path      string         `json:"path"`
	Redis     RedisConfig    `json:"redis"`
	Postgres  PostgresConfig `json:"postgres"`
}

// SecretsConfig holds the secrets cipher key
type SecretsConfig struct {
	Key     string `json:"key"`
	KeyFile string `json:"key_file"`
}

// LoggingConfig holds operational log settings
type LoggingConfig struct {
	Format string `json:"format"` // text, json
	Level  string `json:"level"`
}

// ObservabilityConfig groups logging, tracing and metrics settings
type ObservabilityConfig struct {
	Logging LoggingConfig        `json:"logging"`
	Tracing observability.Config `json:"tracing"`
	// AuditLog is a file receiving one JSON line per executor call.
	AuditLog string `json:"audit_log"`
}

// Config is the central configuration struct embedding all component configs
type Config struct {
	Driver        string              `json:"driver"` // pgx, pq, sqlite
	BatchSize     int                 `json:"batch_size"`
	Registry      RegistryConfig      `json:"registry"`
	Secrets       SecretsConfig       `json:"secrets"`
	Observability ObservabilityConfig `json:"observability"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Driver:    "pgx",
		BatchSize: query.DefaultBatchSize,
		Registry: RegistryConfig{
			Kinds:     []string{RegistryEnv},
			EnvPrefix: "PGRUN_CONN_",
			Redis: RedisConfig{
				Addr: "localhost:6379",
			},
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Format: "text",
				Level:  "info",
			},
			Tracing: observability.Config{
				Exporter:    "otlp-http",
				Endpoint:    "localhost:4318",
				ServiceName: "pgrun",
				SampleRate:  1.0,
			},
		},
	}
}

// LoadFromFile loads configuration from a JSON file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromEnv applies environment variable overrides to the config
func LoadFromEnv(cfg *Config) error {
	if v := os.Getenv("PGRUN_DRIVER"); v != "" {
		cfg.Driver = v
	}
	if v := os.Getenv("PGRUN_BATCH_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PGRUN_BATCH_SIZE: %w", err)
		}
		cfg.BatchSize = n
	}
	if v := os.Getenv("PGRUN_REGISTRY"); v != "" {
		cfg.Registry.Kinds = splitList(v)
	}
	if v := os.Getenv("PGRUN_REGISTRY_FILE"); v != "" {
		cfg.Registry.Path = v
	}
	if v := os.Getenv("PGRUN_REDIS_ADDR"); v != "" {
		cfg.Registry.Redis.Addr = v
	}
	if v := os.Getenv("PGRUN_REDIS_PASSWORD"); v != "" {
		cfg.Registry.Redis.Password = v
	}
	if v := os.Getenv("PGRUN_REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PGRUN_REDIS_DB: %w", err)
		}
		cfg.Registry.Redis.DB = n
	}
	if v := os.Getenv("PGRUN_REGISTRY_DSN"); v != "" {
		cfg.Registry.Postgres.DSN = v
	}
	if v := os.Getenv("PGRUN_SECRETS_KEY"); v != "" {
		cfg.Secrets.Key = v
	}
	if v := os.Getenv("PGRUN_SECRETS_KEY_FILE"); v != "" {
		cfg.Secrets.KeyFile = v
	}
	if v := os.Getenv("PGRUN_LOG_LEVEL"); v != "" {
		cfg.Observability.Logging.Level = v
	}
	if v := os.Getenv("PGRUN_LOG_FORMAT"); v != "" {
		cfg.Observability.Logging.Format = v
	}
	if v := os.Getenv("PGRUN_OTLP_ENDPOINT"); v != "" {
		cfg.Observability.Tracing.Enabled = true
		cfg.Observability.Tracing.Endpoint = v
	}
	return nil
}

// Validate reports settings the CLI cannot act on.
func (c *Config) Validate() error {
	switch c.Driver {
	case "pgx", "pq", "postgres", "sqlite":
	default:
		return fmt.Errorf("invalid driver %q (valid: pgx, pq, sqlite)", c.Driver)
	}
	for _, k := range c.Registry.Kinds {
		switch k {
		case RegistryEnv:
		case RegistryFile:
			if c.Registry.Path == "" {
				return fmt.Errorf("registry %q requires a path", k)
			}
		case RegistryRedis:
			if c.Registry.Redis.Addr == "" {
				return fmt.Errorf("registry %q requires an address", k)
			}
		case RegistryPostgres:
			if c.Registry.Postgres.DSN == "" {
				return fmt.Errorf("registry %q requires a dsn", k)
			}
		default:
			return fmt.Errorf("invalid registry kind %q", k)
		}
	}
	if c.Secrets.Key != "" && c.Secrets.KeyFile != "" {
		return fmt.Errorf("secrets key and key_file are mutually exclusive")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
