package main

import (
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the tokenlens configuration file
// (~/.config/tokenlens/config.yaml). Pointer fields distinguish "not set"
// from zero values.
type Config struct {
	// Stepping defaults
	TopK        *int64   `yaml:"top_k"`
	Mode        string   `yaml:"mode"`
	Temperature *float64 `yaml:"temperature"`
	TopP        *float64 `yaml:"top_p"`
	Steps       *int64   `yaml:"steps"`
	Seed        *int64   `yaml:"seed"`

	// Model
	VocabSize  *int64 `yaml:"vocab_size"`
	HiddenSize *int64 `yaml:"hidden_size"`
	ContextCap *int64 `yaml:"context_cap"`
	TopKMin    *int64 `yaml:"top_k_min"`
	TopKMax    *int64 `yaml:"top_k_max"`

	// Output
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Server
	ServerAddress string   `yaml:"server_address"`
	RatePerSecond *float64 `yaml:"rate_per_second"`
	CORSOrigin    string   `yaml:"cors_origin"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "tokenlens", "config.yaml")
}

// applyModelConfig applies config file defaults to the shared model flags
// when the corresponding CLI flag was not explicitly set.
func applyModelConfig(c *cli.Command, cfg Config) {
	if cfg.VocabSize != nil && !c.IsSet("vocab-size") {
		vocabSize = *cfg.VocabSize
	}
	if cfg.HiddenSize != nil && !c.IsSet("hidden-size") {
		hiddenSize = *cfg.HiddenSize
	}
	if cfg.ContextCap != nil && !c.IsSet("context-cap") && !c.IsSet("ctx") {
		contextCap = *cfg.ContextCap
	}
	if cfg.TopKMin != nil && !c.IsSet("top-k-min") {
		topKMin = *cfg.TopKMin
	}
	if cfg.TopKMax != nil && !c.IsSet("top-k-max") {
		topKMax = *cfg.TopKMax
	}
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// applyStepConfig applies config file defaults to step command variables.
func applyStepConfig(c *cli.Command, cfg Config,
	topK *int64, mode *string, temp *float64, topP *float64, steps *int64, seed *int64,
) {
	if cfg.TopK != nil && !c.IsSet("top-k") && !c.IsSet("top_k") {
		*topK = *cfg.TopK
	}
	if cfg.Mode != "" && !c.IsSet("mode") {
		*mode = cfg.Mode
	}
	if cfg.Temperature != nil && !c.IsSet("temp") && !c.IsSet("temperature") {
		*temp = *cfg.Temperature
	}
	if cfg.TopP != nil && !c.IsSet("top-p") && !c.IsSet("top_p") {
		*topP = *cfg.TopP
	}
	if cfg.Steps != nil && !c.IsSet("steps") {
		*steps = *cfg.Steps
	}
	if cfg.Seed != nil && !c.IsSet("seed") {
		*seed = *cfg.Seed
	}
}

// applyServeConfig applies config file defaults to serve command variables.
func applyServeConfig(c *cli.Command, cfg Config, addr *string, ratePerSecond *float64, corsOrigin *string) {
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
	if cfg.RatePerSecond != nil && !c.IsSet("rate-limit") {
		*ratePerSecond = *cfg.RatePerSecond
	}
	if cfg.CORSOrigin != "" && !c.IsSet("cors-origin") {
		*corsOrigin = cfg.CORSOrigin
	}
}

// LoadConfig reads the config file. Returns a zero Config if the file
// doesn't exist or fails to parse.
func LoadConfig() Config {
	path := configPath()
	if path == "" {
		return Config{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}
	}
	return cfg
}
