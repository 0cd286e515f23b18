package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// GathererConfig is the root configuration for a stream gatherer instance.
type GathererConfig struct {
	Instance InstanceConfig `yaml:"instance"`
	API      APIConfig      `yaml:"api"`
	Stream   StreamConfig   `yaml:"stream"`
	Database DatabaseConfig `yaml:"database"`
	Router   RouterConfig   `yaml:"router"`
	Writers  WritersConfig  `yaml:"writers"`
	Wards    WardsConfig    `yaml:"wards"`
}

// InstanceConfig identifies this gatherer.
type InstanceConfig struct {
	ID     string `yaml:"id"`
	Region string `yaml:"region"`
}

// APIConfig holds REST API settings for the intelligence backend.
type APIConfig struct {
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// StreamConfig holds settings for strategist stream connections.
type StreamConfig struct {
	BaseURL            string        `yaml:"base_url"`  // Stream endpoint base, defaults to api.base_url
	Transport          string        `yaml:"transport"` // "sse" or "websocket"
	Depth              string        `yaml:"depth"`     // quick, standard, deep
	Context            string        `yaml:"context"`   // Analysis context hint
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
	MaxReconnects      int           `yaml:"max_reconnects"`
	HeartbeatWarnAfter time.Duration `yaml:"heartbeat_warn_after"`
	HeartbeatCritAfter time.Duration `yaml:"heartbeat_critical_after"`
	HeartbeatInterval  time.Duration `yaml:"heartbeat_check_interval"`
	BufferSize         int           `yaml:"buffer_size"`
}

// DatabaseConfig holds the Postgres archive connection.
type DatabaseConfig struct {
	Postgres DBConfig `yaml:"postgres"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// RouterConfig holds event router buffer sizes.
type RouterConfig struct {
	AnalysisBufferSize   int `yaml:"analysis_buffer_size"`
	ProgressBufferSize   int `yaml:"progress_buffer_size"`
	CompletionBufferSize int `yaml:"completion_buffer_size"`
}

// WritersConfig holds batch writer settings.
type WritersConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// WardsConfig selects which wards to stream.
type WardsConfig struct {
	IDs               []string      `yaml:"ids"`  // Explicit ward list; empty = all active from catalog
	City              string        `yaml:"city"` // Optional catalog filter
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*GathererConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand ${VAR} environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg GathererConfig
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	return &cfg, nil
}

// LoadWithDefaults loads config and applies default values.
func LoadWithDefaults(path string) (*GathererConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadAndValidate loads config, applies defaults, and validates.
func LoadAndValidate(path string) (*GathererConfig, error) {
	cfg, err := LoadWithDefaults(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}
