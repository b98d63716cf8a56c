package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the dwconv configuration file (~/.config/dwconv/config.yaml).
// Numeric fields are pointers so we can distinguish "not set" from zero values.
type Config struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Execution
	Workers        *int `yaml:"workers"`
	PoolMaxBuffers *int `yaml:"pool_max_buffers"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "dwconv", "config.yaml")
}

// LoadConfig reads the config file. Returns a zero Config if the file doesn't exist.
func LoadConfig() (Config, error) {
	path := configPath()
	if path == "" {
		return Config{}, nil
	}
	return loadConfigFile(path)
}

func loadConfigFile(path string) (Config, error) {
	//nolint:gosec // G304: the config path is derived from the user's config dir
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// applyLoggingConfig applies config file defaults to the logging flags when
// the corresponding CLI flag was not explicitly set.
func applyLoggingConfig(c *cli.Command, cfg Config) {
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// applyExecConfig applies config file defaults to the execution flags. A nil
// destination marks a flag the command does not have.
func applyExecConfig(c *cli.Command, cfg Config, workers, poolMax *int) {
	if workers != nil && cfg.Workers != nil && !c.IsSet("workers") {
		*workers = *cfg.Workers
	}
	if poolMax != nil && cfg.PoolMaxBuffers != nil && !c.IsSet("pool-max-buffers") {
		*poolMax = *cfg.PoolMaxBuffers
	}
}
