// sgdmf - Biased SGD Matrix Factorization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sgdmf

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/sgdmf/internal/factorization"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"sgdmf.yaml",
	"sgdmf.yml",
	"/etc/sgdmf/config.yaml",
	"/etc/sgdmf/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// envPrefix is stripped from every environment variable before mapping.
const envPrefix = "SGDMF_"

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	model := factorization.DefaultConfig()

	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Model: ModelConfig{
			Epochs:             model.Epochs,
			Factors:            model.Factors,
			Lambda:             model.Lambda,
			LearningRate:       model.LearningRate,
			BiasMuRatio:        model.BiasMuRatio,
			BiasLambdaRatio:    model.BiasLambdaRatio,
			DecayFactor:        model.DecayFactor,
			StepOffset:         model.StepOffset,
			ForgettingExponent: model.ForgettingExponent,
			Noise:              model.Noise,
			Seed:               model.Seed,
			Sampling:           string(model.Sampling),
			MeanEstimate:       string(model.MeanEstimate),
			ProgressInterval:   model.ProgressInterval,
		},
		Data: DataConfig{
			Path:      "",
			Delimiter: ",",
			HasHeader: false,
			EvalLimit: 30000,
		},
		Store: StoreConfig{
			Path:         "/data/sgdmf",
			ModelName:    "default",
			KeepVersions: 5,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimitReqs:   600,
			RateLimitWindow: time.Minute,
			MaxBatchSize:    1000,
		},
	}
}

// Default returns the built-in configuration without consulting files or the environment.
func Default() *Config {
	return defaultConfig()
}

// Load resolves the configuration from defaults, a YAML file and the
// environment, then validates it. An empty path searches CONFIG_PATH and
// DefaultConfigPaths; a non-empty path must exist.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file
	configPath := path
	if configPath == "" {
		configPath = findConfigFile()
	}
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment
	if err := k.Load(env.Provider(envPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first config file found, or "" to run on defaults.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// envMappings maps lower-cased, unprefixed variable names to koanf paths.
var envMappings = map[string]string{
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	"epochs":              "model.epochs",
	"factors":             "model.factors",
	"lambda":              "model.lambda",
	"learning_rate":       "model.learning_rate",
	"bias_mu_ratio":       "model.bias_mu_ratio",
	"bias_lambda_ratio":   "model.bias_lambda_ratio",
	"decay_factor":        "model.decay_factor",
	"step_offset":         "model.step_offset",
	"forgetting_exponent": "model.forgetting_exponent",
	"noise":               "model.noise",
	"seed":                "model.seed",
	"sampling":            "model.sampling",
	"mean_estimate":       "model.mean_estimate",
	"progress_interval":   "model.progress_interval",

	"data_path":       "data.path",
	"data_delimiter":  "data.delimiter",
	"data_has_header": "data.has_header",
	"eval_limit":      "data.eval_limit",

	"store_path":    "store.path",
	"model_name":    "store.model_name",
	"keep_versions": "store.keep_versions",

	"http_host":           "server.host",
	"http_port":           "server.port",
	"http_read_timeout":   "server.read_timeout",
	"http_write_timeout":  "server.write_timeout",
	"shutdown_timeout":    "server.shutdown_timeout",
	"rate_limit_requests": "server.rate_limit_requests",
	"rate_limit_window":   "server.rate_limit_window",
	"max_batch_size":      "server.max_batch_size",
}

// envTransformFunc maps SGDMF_* variables to koanf paths. Unknown variables
// are dropped.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	return envMappings[key]
}
