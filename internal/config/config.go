package config

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration for a ledger run
type Config struct {
	Partitions PartitionsConfig `mapstructure:"partitions" yaml:"partitions"`
	Engine     EngineConfig     `mapstructure:"engine" yaml:"engine"`
	Metrics    MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`
	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging"`
}

// PartitionsConfig holds store layout configuration
type PartitionsConfig struct {
	Count               int `mapstructure:"count" yaml:"count"` // 0 = max(4, NumCPU)
	TransactionCapacity int `mapstructure:"transaction_capacity" yaml:"transaction_capacity"`
}

// EngineConfig holds dispatch configuration
type EngineConfig struct {
	Workers     int           `mapstructure:"workers" yaml:"workers"` // <= 1 dispatches sequentially
	QueueSize   int           `mapstructure:"queue_size" yaml:"queue_size"`
	StopTimeout time.Duration `mapstructure:"stop_timeout" yaml:"stop_timeout"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port" yaml:"port"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// DefaultConfig returns the configuration used when nothing is overridden
func DefaultConfig() *Config {
	return &Config{
		Partitions: PartitionsConfig{
			Count:               0,
			TransactionCapacity: 100000,
		},
		Engine: EngineConfig{
			Workers:     1,
			QueueSize:   1024,
			StopTimeout: 30 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "json",
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Partitions.Count < 0 {
		return fmt.Errorf("partitions.count must be >= 0")
	}
	if c.Partitions.TransactionCapacity < 1 {
		return fmt.Errorf("partitions.transaction_capacity must be >= 1")
	}
	if c.Engine.Workers < 0 {
		return fmt.Errorf("engine.workers must be >= 0")
	}
	if c.Engine.QueueSize < 1 {
		return fmt.Errorf("engine.queue_size must be >= 1")
	}
	if c.Engine.StopTimeout <= 0 {
		return fmt.Errorf("engine.stop_timeout must be positive")
	}
	if c.Metrics.Enabled {
		if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be between 1 and 65535")
		}
		if !strings.HasPrefix(c.Metrics.Path, "/") {
			return fmt.Errorf("metrics.path must start with /")
		}
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

// YAML renders the configuration as YAML
func (c *Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to render config: %w", err)
	}
	return out, nil
}
