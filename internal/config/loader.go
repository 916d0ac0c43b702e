package config

import (
	"strings"

	"github.com/spf13/viper"

	ledgererrors "github.com/devrev/toypay/internal/errors"
)

// EnvPrefix prefixes environment overrides, e.g. TOYPAY_ENGINE_WORKERS
const EnvPrefix = "TOYPAY"

// Load builds the configuration from defaults, an optional YAML file,
// environment variables and any flags already bound to v. Later sources
// take precedence. v may be nil. Failures carry ErrCodeConfig.
func Load(configPath string, v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}

	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, ledgererrors.ConfigError("failed to read config file", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, ledgererrors.ConfigError("failed to unmarshal config", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, ledgererrors.ConfigError("invalid configuration", err)
	}

	return cfg, nil
}

// setDefaults registers every key so environment overrides are seen by Unmarshal
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("partitions.count", d.Partitions.Count)
	v.SetDefault("partitions.transaction_capacity", d.Partitions.TransactionCapacity)

	v.SetDefault("engine.workers", d.Engine.Workers)
	v.SetDefault("engine.queue_size", d.Engine.QueueSize)
	v.SetDefault("engine.stop_timeout", d.Engine.StopTimeout)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.port", d.Metrics.Port)
	v.SetDefault("metrics.path", d.Metrics.Path)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}
