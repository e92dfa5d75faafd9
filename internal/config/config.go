// sgdmf - Biased SGD Matrix Factorization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sgdmf

/*
Package config provides layered configuration for sgdmf.

# Configuration Sources

Configuration is resolved in order of increasing priority:

  - Built-in defaults (defaultConfig)
  - A YAML file: CONFIG_PATH, an explicit path, or the first of DefaultConfigPaths
  - SGDMF_* environment variables

# Environment Variables

Model hyperparameters:
  - SGDMF_EPOCHS, SGDMF_FACTORS, SGDMF_LAMBDA, SGDMF_LEARNING_RATE
  - SGDMF_BIAS_MU_RATIO, SGDMF_BIAS_LAMBDA_RATIO
  - SGDMF_DECAY_FACTOR, SGDMF_STEP_OFFSET, SGDMF_FORGETTING_EXPONENT
  - SGDMF_NOISE, SGDMF_SEED, SGDMF_SAMPLING, SGDMF_MEAN_ESTIMATE
  - SGDMF_PROGRESS_INTERVAL

Data, storage, server and logging:
  - SGDMF_DATA_PATH, SGDMF_DATA_DELIMITER, SGDMF_DATA_HAS_HEADER, SGDMF_EVAL_LIMIT
  - SGDMF_STORE_PATH, SGDMF_MODEL_NAME, SGDMF_KEEP_VERSIONS
  - SGDMF_HTTP_HOST, SGDMF_HTTP_PORT, SGDMF_HTTP_READ_TIMEOUT, SGDMF_HTTP_WRITE_TIMEOUT
  - SGDMF_SHUTDOWN_TIMEOUT, SGDMF_RATE_LIMIT_REQUESTS, SGDMF_RATE_LIMIT_WINDOW
  - SGDMF_MAX_BATCH_SIZE
  - SGDMF_LOG_LEVEL, SGDMF_LOG_FORMAT, SGDMF_LOG_CALLER

# Usage

	cfg, err := config.Load("")
	if err != nil {
	    return err
	}
	engineCfg := cfg.Model.ToFactorization()
*/
package config

import (
	"time"

	"github.com/tomtom215/sgdmf/internal/factorization"
)

// Config holds all application configuration.
type Config struct {
	Logging LoggingConfig `koanf:"logging"`
	Model   ModelConfig   `koanf:"model"`
	Data    DataConfig    `koanf:"data"`
	Store   StoreConfig   `koanf:"store"`
	Server  ServerConfig  `koanf:"server"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"required"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// ModelConfig holds the training hyperparameters.
type ModelConfig struct {
	Epochs             int     `koanf:"epochs"`
	Factors            int     `koanf:"factors"`
	Lambda             float64 `koanf:"lambda"`
	LearningRate       float64 `koanf:"learning_rate"`
	BiasMuRatio        float64 `koanf:"bias_mu_ratio"`
	BiasLambdaRatio    float64 `koanf:"bias_lambda_ratio"`
	DecayFactor        float64 `koanf:"decay_factor"`
	StepOffset         int     `koanf:"step_offset"`
	ForgettingExponent float64 `koanf:"forgetting_exponent"`
	Noise              float64 `koanf:"noise"`
	Seed               int64   `koanf:"seed"`
	Sampling           string  `koanf:"sampling"`
	MeanEstimate       string  `koanf:"mean_estimate"`
	ProgressInterval   int     `koanf:"progress_interval"`
}

// ToFactorization converts the hyperparameters to an engine config.
func (m *ModelConfig) ToFactorization() factorization.Config {
	return factorization.Config{
		Epochs:             m.Epochs,
		Factors:            m.Factors,
		Lambda:             m.Lambda,
		LearningRate:       m.LearningRate,
		BiasMuRatio:        m.BiasMuRatio,
		BiasLambdaRatio:    m.BiasLambdaRatio,
		DecayFactor:        m.DecayFactor,
		StepOffset:         m.StepOffset,
		ForgettingExponent: m.ForgettingExponent,
		Noise:              m.Noise,
		Seed:               m.Seed,
		Sampling:           factorization.SamplingMode(m.Sampling),
		MeanEstimate:       factorization.MeanEstimate(m.MeanEstimate),
		ProgressInterval:   m.ProgressInterval,
	}
}

// DataConfig describes the training log.
type DataConfig struct {
	// Path is the interaction log file.
	Path string `koanf:"path"`

	// Delimiter is the field separator: a single character or "tab".
	// Default: ","
	Delimiter string `koanf:"delimiter" validate:"required"`

	// HasHeader skips the first record.
	HasHeader bool `koanf:"has_header"`

	// EvalLimit caps the number of records read by evaluate.
	// Default: 30000
	EvalLimit int `koanf:"eval_limit" validate:"gte=0"`
}

// DelimiterRune returns the field separator as a rune.
func (d *DataConfig) DelimiterRune() rune {
	switch d.Delimiter {
	case "tab", "\\t", "\t":
		return '\t'
	case "":
		return ','
	}
	return []rune(d.Delimiter)[0]
}

// StoreConfig holds model store settings.
type StoreConfig struct {
	// Path is the BadgerDB directory. Empty keeps models in memory.
	Path string `koanf:"path"`

	// ModelName is the name models are saved and loaded under.
	ModelName string `koanf:"model_name" validate:"required,excludesall=/"`

	// KeepVersions bounds the versions retained after each save. Zero keeps all.
	KeepVersions int `koanf:"keep_versions" validate:"gte=0"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"gte=1,lte=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	RateLimitReqs   int           `koanf:"rate_limit_requests" validate:"gte=0"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
	MaxBatchSize    int           `koanf:"max_batch_size" validate:"gte=1"`
}
