// Package config loads the console's bootstrap configuration from an
// optional YAML file with environment variable overrides. Runtime-mutable
// state (silence rules, skip overrides) lives in the settings store instead.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds everything needed to construct a console.
type Config struct {
	Enabled  bool   `yaml:"enabled"`
	Capacity int    `yaml:"capacity"`
	DataDir  string `yaml:"data_dir"`
	LogLevel string `yaml:"log_level"`

	Sink SinkConfig `yaml:"sink"`
}

// SinkConfig controls the on-disk sink consuming the raw record stream.
type SinkConfig struct {
	Enabled  bool   `yaml:"enabled"`
	MaxSize  int64  `yaml:"max_size"` // rotation threshold in bytes, 0 disables rotation
	Compress bool   `yaml:"compress"` // zstd-compress rotated files
	Path     string `yaml:"path"`     // defaults to <data_dir>/console.ndjson
}

// Default returns the configuration used when no file and no environment
// overrides are present.
func Default() Config {
	return Config{
		Enabled:  true,
		DataDir:  ".logdeck",
		LogLevel: "info",
		Sink: SinkConfig{
			MaxSize:  8 * 1024 * 1024,
			Compress: true,
		},
	}
}

// Load reads path (if non-empty and existing), then applies LOGDECK_*
// environment overrides. A missing file is not an error; a malformed file
// is.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return cfg, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)
	if cfg.Capacity < 0 {
		cfg.Capacity = 0
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("LOGDECK_ENABLED"); v != "" {
		cfg.Enabled = parseBool(v, cfg.Enabled)
	}
	if v := os.Getenv("LOGDECK_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Capacity = n
		}
	}
	if v := os.Getenv("LOGDECK_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("LOGDECK_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LOGDECK_SINK"); v != "" {
		cfg.Sink.Enabled = parseBool(v, cfg.Sink.Enabled)
	}
	if v := os.Getenv("LOGDECK_SINK_PATH"); v != "" {
		cfg.Sink.Path = v
	}
}

func parseBool(v string, fallback bool) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
