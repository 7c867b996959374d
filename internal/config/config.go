// Package config loads the server configuration from an optional YAML
// file with environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Addr              string `yaml:"addr"`
	DataDir           string `yaml:"data_dir"`
	TickIntervalMS    int    `yaml:"tick_interval_ms"`
	WatchdogSweepSec  int    `yaml:"watchdog_sweep_sec"`
	IdleTimeoutSec    int    `yaml:"idle_timeout_sec"`
	ExportLimit       int    `yaml:"export_limit"`
	DefaultDifficulty string `yaml:"default_difficulty"`
	DefaultMode       string `yaml:"default_mode"`
}

// Default returns the production defaults.
func Default() Config {
	return Config{
		Addr:              "0.0.0.0:8080",
		DataDir:           "data",
		TickIntervalMS:    650,
		WatchdogSweepSec:  15,
		IdleTimeoutSec:    120,
		ExportLimit:       500,
		DefaultDifficulty: "NORMAL",
		DefaultMode:       "NORMAL",
	}
}

// Load reads the config file at path when it exists, applies defaults
// for anything omitted, then applies environment overrides. An empty
// path skips the file entirely.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if v := os.Getenv("RAILMISSION_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("RAILMISSION_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	if cfg.TickIntervalMS <= 0 {
		cfg.TickIntervalMS = 650
	}
	if cfg.WatchdogSweepSec <= 0 {
		cfg.WatchdogSweepSec = 15
	}
	if cfg.IdleTimeoutSec <= 0 {
		cfg.IdleTimeoutSec = 120
	}
	if cfg.ExportLimit <= 0 {
		cfg.ExportLimit = 500
	}

	return cfg, nil
}

// TickInterval returns the simulation cadence as a duration.
func (c Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMS) * time.Millisecond
}

// WatchdogSweep returns the watchdog period as a duration.
func (c Config) WatchdogSweep() time.Duration {
	return time.Duration(c.WatchdogSweepSec) * time.Second
}

// IdleTimeout returns the mid-flow staleness window as a duration.
func (c Config) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutSec) * time.Second
}
