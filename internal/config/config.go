// Package config loads the YAML configuration for the analysis
// server: storage backend selection, session backend selection,
// transport, and telemetry endpoints.
package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/aptgraph/aptgraph/internal/safefile"
)

// Config is the top-level server configuration.
type Config struct {
	Version   string          `yaml:"version"`
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Session   SessionConfig   `yaml:"session"`
	Whitelist WhitelistConfig `yaml:"whitelist"`
	Telemetry TelemetryConfig `yaml:"telemetry,omitempty"`
}

// ServerConfig holds general server settings. Port is validated and
// Bind defaulted, but the stdio MCP transport listens on neither.
type ServerConfig struct {
	Port     int    `yaml:"port"`
	Bind     string `yaml:"bind"` // address to bind (default 127.0.0.1)
	LogLevel string `yaml:"log_level"`
}

// StoreConfig selects and configures the graph store backend.
type StoreConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "postgres"
	Path   string `yaml:"path,omitempty"`
	DSN    string `yaml:"dsn,omitempty"`
}

// SessionConfig selects and configures the per-session stage cache
// backend.
type SessionConfig struct {
	Backend   string `yaml:"backend"` // "memory" or "redis"
	RedisAddr string `yaml:"redis_addr,omitempty"`
	TTLMinute int    `yaml:"ttl_minutes,omitempty"`
}

// WhitelistConfig configures the persistent whitelist file.
type WhitelistConfig struct {
	Path string `yaml:"path"`
}

// TelemetryConfig configures OpenTelemetry tracing and Prometheus
// metrics exposition.
type TelemetryConfig struct {
	MetricsBind   string `yaml:"metrics_bind,omitempty"`
	TraceExporter string `yaml:"trace_exporter,omitempty"` // "stdout" or "" (disabled)
	ServiceName   string `yaml:"service_name,omitempty"`
}

// Load reads and parses a server config file, applying defaults for
// any zero-valued field Unmarshal leaves untouched.
func Load(path string) (*Config, error) {
	data, err := safefile.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Session.TTLMinute == 0 {
		cfg.Session.TTLMinute = 30
	}

	return cfg, nil
}

// Defaults returns a config with sensible defaults: SQLite store at
// ./graphs.db, in-memory sessions, no telemetry.
func Defaults() *Config {
	return &Config{
		Version: "1",
		Server: ServerConfig{
			Port:     8090,
			Bind:     "127.0.0.1",
			LogLevel: "info",
		},
		Store: StoreConfig{
			Driver: "sqlite",
			Path:   "./graphs.db",
		},
		Session: SessionConfig{
			Backend:   "memory",
			TTLMinute: 30,
		},
		Whitelist: WhitelistConfig{
			Path: "./whitelist.txt",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "aptgraph",
		},
	}
}

// Save writes the config to path as YAML, atomically.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return safefile.WriteFileAtomic(path, data, 0o644)
}

// Validate checks the config for internal consistency.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	switch c.Session.Backend {
	case "memory":
	case "redis":
		if c.Session.RedisAddr == "" {
			return fmt.Errorf("session.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown session backend %q", c.Session.Backend)
	}
	return nil
}
