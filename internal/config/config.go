// Package config loads the service configuration from YAML with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// ConfigPathEnv names the environment variable holding the config path.
const ConfigPathEnv = "STOREFRONT_CONFIG"

// DefaultConfigPath is used when neither a flag nor the environment names a file.
const DefaultConfigPath = "config.yaml"

// AppConfig holds command-line level settings.
type AppConfig struct {
	ConfigPath string
}

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	JWT      JWTConfig      `yaml:"jwt"`
	Logging  LoggingConfig  `yaml:"logging"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Wallet   WalletConfig   `yaml:"wallet"`
	Notify   NotifyConfig   `yaml:"notify"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig selects the store. Postgres URLs and SQLite paths are both accepted.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	SlowQuery       time.Duration `yaml:"slow_query"`
}

// JWTConfig holds the bearer token verification settings.
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// LoggingConfig configures logrus output and file rotation.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // text or json
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// RedisConfig enables the shared idempotency store when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// KafkaConfig enables event publishing when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
}

// TracingConfig enables Jaeger export when JaegerEndpoint is set.
type TracingConfig struct {
	ServiceName    string `yaml:"service_name"`
	JaegerEndpoint string `yaml:"jaeger_endpoint"`
}

// WalletConfig bounds wallet top-ups.
type WalletConfig struct {
	MaxTopUp string `yaml:"max_top_up"`
}

// NotifyConfig bounds post-commit side effects.
type NotifyConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// MaxTopUpAmount parses the configured top-up cap.
func (w WalletConfig) MaxTopUpAmount() (decimal.Decimal, error) {
	raw := strings.TrimSpace(w.MaxTopUp)
	if raw == "" {
		return decimal.NewFromInt(1000), nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("config: wallet.max_top_up: %w", err)
	}
	return d, nil
}

// Default returns the configuration used for unset keys.
func Default() Config {
	return Config{
		Server:  ServerConfig{Addr: ":8080", ShutdownTimeout: 15 * time.Second},
		JWT:     JWTConfig{Expiry: 24 * time.Hour},
		Logging: LoggingConfig{Level: "info", Format: "text", MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 30},
		Tracing: TracingConfig{ServiceName: "storefront"},
		Wallet:  WalletConfig{MaxTopUp: "1000.00"},
		Notify:  NotifyConfig{Timeout: 5 * time.Second},
	}
}

// ResolveConfigPath picks the flag value, then the environment, then the default.
func ResolveConfigPath(path string) string {
	if p := strings.TrimSpace(path); p != "" {
		return p
	}
	if p := strings.TrimSpace(os.Getenv(ConfigPathEnv)); p != "" {
		return p
	}
	return DefaultConfigPath
}

// Load reads path over the defaults and applies environment overrides. A
// missing file is tolerated so the service can run from the environment alone.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if errParse := yaml.Unmarshal(data, &cfg); errParse != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, errParse)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	applyEnv(&cfg)
	return &cfg, nil
}

// Validate reports missing settings required to serve traffic.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("config: database.dsn is required")
	}
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return errors.New("config: jwt.secret is required")
	}
	if _, err := c.Wallet.MaxTopUpAmount(); err != nil {
		return err
	}
	return nil
}

func applyEnv(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	setString("SERVER_ADDR", &cfg.Server.Addr)
	setString("DATABASE_DSN", &cfg.Database.DSN)
	setString("JWT_SECRET", &cfg.JWT.Secret)
	setString("LOG_LEVEL", &cfg.Logging.Level)
	setString("REDIS_ADDR", &cfg.Redis.Addr)
	setString("JAEGER_ENDPOINT", &cfg.Tracing.JaegerEndpoint)
	if v := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); v != "" {
		cfg.Kafka.Brokers = splitCSV(v)
	}
}

func splitCSV(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
