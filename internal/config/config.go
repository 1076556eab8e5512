package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const configPathEnv = "ALLOC_CONFIG_PATH"

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type GRPCConfig struct {
	Addr string `yaml:"addr"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// RedisConfig configures the idempotency store. An empty Addr disables it.
type RedisConfig struct {
	Addr           string        `yaml:"addr"`
	PoolSize       int           `yaml:"pool_size"`
	IdempotencyTTL time.Duration `yaml:"idempotency_ttl"`
}

type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

type Config struct {
	Env      string         `yaml:"env"`
	HTTP     HTTPConfig     `yaml:"http"`
	GRPC     GRPCConfig     `yaml:"grpc"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

func Default() *Config {
	return &Config{
		Env: "development",
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: 5 * time.Second,
		},
		GRPC: GRPCConfig{Addr: ":50051"},
		Database: DatabaseConfig{
			Driver: "mysql",
			DSN:    "root:root@tcp(localhost:3306)/allocation?parseTime=true",
		},
		Redis: RedisConfig{
			Addr:           "localhost:6379",
			PoolSize:       100,
			IdempotencyTTL: 24 * time.Hour,
		},
		Tracing: TracingConfig{ServiceName: "allocation"},
	}
}

// Load reads the YAML file at path (or $ALLOC_CONFIG_PATH when path is empty)
// over the defaults, then applies ALLOC_* environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = strings.TrimSpace(os.Getenv(configPathEnv))
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := strings.TrimSpace(os.Getenv("ALLOC_ENV")); v != "" {
		cfg.Env = v
	}
	if v := strings.TrimSpace(os.Getenv("ALLOC_HTTP_ADDR")); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("ALLOC_GRPC_ADDR")); v != "" {
		cfg.GRPC.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("ALLOC_DB_DRIVER")); v != "" {
		cfg.Database.Driver = v
	}
	if v := strings.TrimSpace(os.Getenv("ALLOC_DB_DSN")); v != "" {
		cfg.Database.DSN = v
	}
	// Set but empty turns the idempotency store off.
	if v, ok := os.LookupEnv("ALLOC_REDIS_ADDR"); ok {
		cfg.Redis.Addr = strings.TrimSpace(v)
	}
	if v := strings.TrimSpace(os.Getenv("ALLOC_TRACING_ENABLED")); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("ALLOC_TRACING_ENABLED: %w", err)
		}
		cfg.Tracing.Enabled = enabled
	}
	return nil
}

func (c *Config) validate() error {
	switch strings.ToLower(c.Database.Driver) {
	case "mysql", "postgres", "postgresql", "pgx":
	default:
		return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("database.dsn is required")
	}
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		return errors.New("http.addr is required")
	}
	if strings.TrimSpace(c.GRPC.Addr) == "" {
		return errors.New("grpc.addr is required")
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		c.HTTP.ShutdownTimeout = 5 * time.Second
	}
	if c.Redis.IdempotencyTTL <= 0 {
		c.Redis.IdempotencyTTL = 24 * time.Hour
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "allocation"
	}
	return nil
}
