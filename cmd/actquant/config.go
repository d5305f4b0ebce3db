package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the actquant configuration file
// (~/.config/actquant/config.yaml). Pointers distinguish "not set" from zero.
type Config struct {
	Precision string `yaml:"precision"`
	Jobs      *int64 `yaml:"jobs"`
	OutDir    string `yaml:"out_dir"`
	Format    string `yaml:"format"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	ServerAddress string `yaml:"server_address"`
	MaxRuns       *int64 `yaml:"max_runs"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "actquant", "config.yaml")
}

// LoadConfig reads the config file at path. A missing file yields a zero
// Config; a malformed one is an error.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// applyLoggingConfig applies config file defaults to the global logging
// flags when they were not set on the command line.
func applyLoggingConfig(c *cli.Command, cfg Config) {
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

func applyQuantizeConfig(c *cli.Command, cfg Config, precision, outDir, format *string, jobs *int64) {
	if cfg.Precision != "" && !c.IsSet("precision") {
		*precision = cfg.Precision
	}
	if cfg.OutDir != "" && !c.IsSet("out-dir") {
		*outDir = cfg.OutDir
	}
	if cfg.Format != "" && !c.IsSet("format") {
		*format = cfg.Format
	}
	if cfg.Jobs != nil && !c.IsSet("jobs") {
		*jobs = *cfg.Jobs
	}
}

func applyServeConfig(c *cli.Command, cfg Config, precision, addr *string, maxRuns *int64) {
	if cfg.Precision != "" && !c.IsSet("precision") {
		*precision = cfg.Precision
	}
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
	if cfg.MaxRuns != nil && !c.IsSet("max-runs") {
		*maxRuns = *cfg.MaxRuns
	}
}
