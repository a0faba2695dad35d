package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the nerloop configuration file (~/.config/nerloop/config.yaml).
// Pointer fields distinguish "not set" from zero values.
type Config struct {
	ModelsDir string `yaml:"models_dir"`
	OutDir    string `yaml:"out_dir"`

	// Training defaults
	Iterations   *int64   `yaml:"iterations"`
	MaxTokens    *int64   `yaml:"max_tokens"`
	MinPrecision *float64 `yaml:"min_precision"`

	// Remote model used by export
	Endpoint string         `yaml:"endpoint"`
	Timeout  *time.Duration `yaml:"timeout"`

	// Output
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Server
	ServerAddress string `yaml:"server_address"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "nerloop", "config.yaml")
}

// LoadConfig reads the config file at path, or the default location when
// path is empty. A missing default file yields a zero Config; a missing
// explicit file is an error.
func LoadConfig(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = configPath()
		if path == "" {
			return Config{}, nil
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

type configKey struct{}

func withConfig(ctx context.Context, cfg Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

func configFromContext(ctx context.Context) Config {
	cfg, _ := ctx.Value(configKey{}).(Config)
	return cfg
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

func applyModelConfig(c *cli.Command, cfg Config) {
	if cfg.ModelsDir != "" && !c.IsSet("models-dir") {
		modelsDir = cfg.ModelsDir
	}
}

// applyTrainConfig applies config file defaults to train command variables.
func applyTrainConfig(c *cli.Command, cfg Config, iterations, maxTokens *int64, minPrecision *float64) {
	if cfg.Iterations != nil && !c.IsSet("iterations") {
		*iterations = *cfg.Iterations
	}
	if cfg.MaxTokens != nil && !c.IsSet("max-tokens") {
		*maxTokens = *cfg.MaxTokens
	}
	if cfg.MinPrecision != nil && !c.IsSet("min-precision") {
		*minPrecision = *cfg.MinPrecision
	}
}

// applyExportConfig applies config file defaults to export command variables.
func applyExportConfig(c *cli.Command, cfg Config, endpoint *string, timeout *time.Duration) {
	applyModelConfig(c, cfg)
	if cfg.Endpoint != "" && !c.IsSet("endpoint") && !c.IsSet("model") {
		*endpoint = cfg.Endpoint
	}
	if cfg.Timeout != nil && !c.IsSet("timeout") {
		*timeout = *cfg.Timeout
	}
}

// applyServeConfig applies config file defaults to serve command variables.
func applyServeConfig(c *cli.Command, cfg Config, addr *string) {
	applyModelConfig(c, cfg)
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
}
