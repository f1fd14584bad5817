// Package main provides the Vibranic Central hub CLI.
package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the hub configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Alerting  AlertingConfig  `yaml:"alerting"`
	Verbose   bool            `yaml:"-"` // set via CLI flag
}

// ServerConfig contains HTTP listener settings.
type ServerConfig struct {
	Address        string `yaml:"address"`         // API listen address (default: :8080)
	MetricsAddress string `yaml:"metrics_address"` // Prometheus listen address (default: :9090)
}

// DatabaseConfig contains metadata database settings.
type DatabaseConfig struct {
	Path string `yaml:"path"` // SQLite database file (default: data/central.db)
}

// TelemetryConfig selects and configures the telemetry backend.
type TelemetryConfig struct {
	Backend    string           `yaml:"backend"` // "sqlite" or "clickhouse" (default: sqlite)
	Path       string           `yaml:"path"`    // SQLite telemetry file (default: data/telemetry.db)
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
}

// ClickHouseConfig contains ClickHouse connection settings.
type ClickHouseConfig struct {
	Addresses     []string `yaml:"addresses"`
	Database      string   `yaml:"database"`
	Username      string   `yaml:"username"`
	Password      string   `yaml:"password"`
	Compression   bool     `yaml:"compression"`
	RetentionDays int      `yaml:"retention_days"`
}

// AuthConfig contains admin authentication settings. The secret can be
// set via the VIBRANIC_ADMIN_SECRET environment variable instead.
type AuthConfig struct {
	AdminSecret string `yaml:"admin_secret"`
	TokenTTL    string `yaml:"token_ttl"` // Go duration string (default: 24h)
}

// TokenTTLDuration returns the parsed token TTL. Call Validate first.
func (c *AuthConfig) TokenTTLDuration() time.Duration {
	d, err := time.ParseDuration(c.TokenTTL)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// RateLimitConfig contains ingestion rate limit settings.
type RateLimitConfig struct {
	PerKey float64 `yaml:"per_key"` // sustained requests per second per API key
	Burst  int     `yaml:"burst"`
}

// AlertingConfig contains alert rule provisioning settings.
type AlertingConfig struct {
	RulesFile string `yaml:"rules_file"` // optional YAML provisioning file
}

// LoadConfig loads configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// setDefaults sets default values for missing config fields.
func (c *Config) setDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.MetricsAddress == "" {
		c.Server.MetricsAddress = ":9090"
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/central.db"
	}
	if c.Telemetry.Backend == "" {
		c.Telemetry.Backend = "sqlite"
	}
	if c.Telemetry.Path == "" {
		c.Telemetry.Path = "data/telemetry.db"
	}
	if c.Auth.TokenTTL == "" {
		c.Auth.TokenTTL = "24h"
	}
	if c.Auth.AdminSecret == "" {
		c.Auth.AdminSecret = os.Getenv("VIBRANIC_ADMIN_SECRET")
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Telemetry.Backend {
	case "sqlite":
	case "clickhouse":
		if len(c.Telemetry.ClickHouse.Addresses) == 0 {
			return fmt.Errorf("telemetry.clickhouse.addresses is required when backend is clickhouse")
		}
		if c.Telemetry.ClickHouse.Database == "" {
			return fmt.Errorf("telemetry.clickhouse.database is required when backend is clickhouse")
		}
	default:
		return fmt.Errorf("telemetry.backend must be sqlite or clickhouse, got %q", c.Telemetry.Backend)
	}
	if _, err := time.ParseDuration(c.Auth.TokenTTL); err != nil {
		return fmt.Errorf("invalid auth.token_ttl: %w", err)
	}
	if c.RateLimit.PerKey < 0 {
		return fmt.Errorf("ratelimit.per_key must not be negative")
	}
	if c.RateLimit.Burst < 0 {
		return fmt.Errorf("ratelimit.burst must not be negative")
	}
	return nil
}
