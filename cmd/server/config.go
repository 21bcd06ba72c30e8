// Package main provides the RFPHub server CLI.
package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Notify   NotifyConfig   `yaml:"notify"`
	Verbose  bool           `yaml:"-"` // set via CLI flag
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Address          string        `yaml:"address"`             // HTTP listen address (default: :8080)
	AccessTokenTTL   time.Duration `yaml:"access_token_ttl"`    // JWT lifetime (default: 15m)
	RateLimitPerIP   int           `yaml:"rate_limit_per_ip"`   // login/signup attempts per minute
	RateLimitPerUser int           `yaml:"rate_limit_per_user"` // authenticated requests per minute
	SweepInterval    time.Duration `yaml:"sweep_interval"`      // RFP expiry sweep period (default: 1m)
}

// DatabaseConfig contains storage settings.
type DatabaseConfig struct {
	Path string `yaml:"path"` // SQLite database path
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"` // metrics listen address (default: :9090)
}

// NotifyConfig contains out-of-band notification delivery settings.
// In-app notification rows are always written; these channels are
// layered on top.
type NotifyConfig struct {
	Email   EmailNotifyConfig   `yaml:"email"`
	Webhook WebhookNotifyConfig `yaml:"webhook"`
}

// EmailNotifyConfig contains SMTP delivery settings.
type EmailNotifyConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"` // 465 for implicit TLS, 587 for STARTTLS
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// WebhookNotifyConfig contains operations-channel webhook settings.
type WebhookNotifyConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
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
	if c.Server.AccessTokenTTL == 0 {
		c.Server.AccessTokenTTL = 15 * time.Minute
	}
	if c.Server.RateLimitPerIP == 0 {
		c.Server.RateLimitPerIP = 10
	}
	if c.Server.RateLimitPerUser == 0 {
		c.Server.RateLimitPerUser = 100
	}
	if c.Server.SweepInterval == 0 {
		c.Server.SweepInterval = time.Minute
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/rfphub.db"
	}
	if c.Metrics.Address == "" {
		c.Metrics.Address = ":9090"
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Server.SweepInterval < time.Second {
		return fmt.Errorf("server.sweep_interval must be at least 1s")
	}
	return nil
}
