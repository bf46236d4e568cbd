package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all shell configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Registry  RegistryConfig
	Plugins   PluginConfig
	Boot      BootConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8000"`
	Host            string        `envconfig:"HOST" default:"0.0.0.0"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	AllowedOrigins  []string      `envconfig:"CORS_ORIGINS" default:"*"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%s", s.Host, s.Port)
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// RegistryConfig holds registry persistence configuration.
type RegistryConfig struct {
	Path            string        `envconfig:"REGISTRY_PATH" default:"data/registry.json"`
	PersistInterval time.Duration `envconfig:"REGISTRY_PERSIST_INTERVAL" default:"30s"`
	SeedDir         string        `envconfig:"REGISTRY_SEED_DIR" default:""`
}

// PluginConfig holds plugin discovery configuration.
type PluginConfig struct {
	Dir      string `envconfig:"PLUGIN_DIR" default:"plugins"`
	Discover bool   `envconfig:"PLUGIN_DISCOVER" default:"true"`
}

// BootConfig controls what happens once the core is wired.
type BootConfig struct {
	AutoStart bool `envconfig:"BOOT_AUTOSTART" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8000",
			Host:            "0.0.0.0",
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Registry: RegistryConfig{
			Path:            "data/registry.json",
			PersistInterval: 30 * time.Second,
		},
		Plugins: PluginConfig{
			Dir:      "plugins",
			Discover: true,
		},
		Boot: BootConfig{
			AutoStart: true,
		},
	}
}
