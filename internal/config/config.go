// Package config defines process configuration for the exchange daemon.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// deploy-specific fields overridable via PREDICTX_* environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file
// structure.
type Config struct {
	Listen   ListenConfig   `mapstructure:"listen"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
}

// ListenConfig controls the newline-JSON TCP collaborator.
type ListenConfig struct {
	Address string `mapstructure:"address"`
	Port    int    `mapstructure:"port"`
	// MaxConnWorkers caps the number of connections served concurrently;
	// the accept loop blocks once this many are open rather than spawn
	// past it.
	MaxConnWorkers int `mapstructure:"max_conn_workers"`
}

// LoggingConfig controls zerolog's global level and output format.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SnapshotConfig controls where persistent state is read/written.
type SnapshotConfig struct {
	Path         string `mapstructure:"path"`
	SaveInterval string `mapstructure:"save_interval"`
}

// Load reads config from a YAML file with env var overrides for deploy-
// specific fields (listen address/port, snapshot path).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("PREDICTX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("listen.address", "0.0.0.0")
	v.SetDefault("listen.port", 7890)
	v.SetDefault("listen.max_conn_workers", 10)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("snapshot.path", "predictx.snapshot.json")
	v.SetDefault("snapshot.save_interval", "5m")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.Listen.Port <= 0 {
		return fmt.Errorf("listen.port must be > 0")
	}
	if c.Listen.MaxConnWorkers <= 0 {
		return fmt.Errorf("listen.max_conn_workers must be > 0")
	}
	if c.Snapshot.Path == "" {
		return fmt.Errorf("snapshot.path is required")
	}
	return nil
}
