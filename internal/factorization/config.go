// sgdmf - Biased SGD Matrix Factorization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sgdmf

package factorization

import (
	"fmt"
	"math"

	"github.com/tomtom215/sgdmf/internal/validation"
)

// SamplingMode selects how training samples are drawn within an epoch.
type SamplingMode string

const (
	// SamplingReplacement draws len(log) samples uniformly with replacement.
	SamplingReplacement SamplingMode = "replacement"

	// SamplingShuffle visits every observation once per epoch in shuffled order.
	SamplingShuffle SamplingMode = "shuffle"
)

// MeanEstimate selects how the global mean written to user slot 0 is computed.
type MeanEstimate string

const (
	// MeanGlobal averages the values of the whole log.
	MeanGlobal MeanEstimate = "global"

	// MeanPrefix averages only the first min(numUsers, len(log)) values.
	MeanPrefix MeanEstimate = "prefix"
)

// Config holds the hyperparameters of a fit.
type Config struct {
	// Epochs is the number of training epochs. Zero only initializes.
	// Default: 200
	Epochs int `json:"epochs" validate:"gte=0"`

	// Factors is the number of latent dimensions. The vector rank is Factors + 3.
	// Default: 200
	Factors int `json:"factors" validate:"gte=0"`

	// Lambda is the L2 regularization strength of the latent slots.
	// Default: 1e-6
	Lambda float64 `json:"lambda" validate:"gte=0"`

	// LearningRate is the initial step size mu0.
	// Default: 0.01
	LearningRate float64 `json:"learning_rate" validate:"gt=0"`

	// BiasMuRatio scales the learning rate for the bias slots.
	// Default: 0.5
	BiasMuRatio float64 `json:"bias_mu_ratio" validate:"gte=0"`

	// BiasLambdaRatio scales Lambda for the bias slots.
	// Default: 0.1
	BiasLambdaRatio float64 `json:"bias_lambda_ratio" validate:"gte=0"`

	// DecayFactor multiplies the learning rate once per epoch.
	// Default: 1.0
	DecayFactor float64 `json:"decay_factor" validate:"gt=0"`

	// StepOffset is added to the epoch index before the forgetting power.
	// Default: 0
	StepOffset int `json:"step_offset" validate:"gte=0"`

	// ForgettingExponent is the power applied to (epoch + StepOffset).
	// Negative values require StepOffset >= 1.
	// Default: 0
	ForgettingExponent float64 `json:"forgetting_exponent"`

	// Noise is the standard deviation of the latent slot initialization.
	// Default: 0.02
	Noise float64 `json:"noise" validate:"gte=0"`

	// Seed seeds the random source when no source is injected.
	// Zero seeds from the clock.
	// Default: 42
	Seed int64 `json:"seed"`

	// Sampling selects the per-epoch sampling strategy.
	// Default: replacement
	Sampling SamplingMode `json:"sampling" validate:"oneof=replacement shuffle"`

	// MeanEstimate selects how the global mean is computed.
	// Default: global
	MeanEstimate MeanEstimate `json:"mean_estimate" validate:"oneof=global prefix"`

	// ProgressInterval logs training progress every N epochs. Zero disables it.
	// Default: 10
	ProgressInterval int `json:"progress_interval" validate:"gte=0"`
}

// DefaultConfig returns the default hyperparameters.
func DefaultConfig() Config {
	return Config{
		Epochs:             200,
		Factors:            200,
		Lambda:             1e-6,
		LearningRate:       0.01,
		BiasMuRatio:        0.5,
		BiasLambdaRatio:    0.1,
		DecayFactor:        1.0,
		StepOffset:         0,
		ForgettingExponent: 0,
		Noise:              0.02,
		Seed:               42,
		Sampling:           SamplingReplacement,
		MeanEstimate:       MeanGlobal,
		ProgressInterval:   10,
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Factors < 0 {
		return fmt.Errorf("%w: factors must be non-negative, got %d", ErrInvalidDimensions, c.Factors)
	}
	if verr := validation.ValidateStruct(c); verr != nil {
		return fmt.Errorf("invalid factorization config: %w", verr)
	}
	if c.ForgettingExponent < 0 && c.StepOffset < 1 {
		return fmt.Errorf("invalid factorization config: forgetting_exponent %v requires step_offset >= 1", c.ForgettingExponent)
	}
	return nil
}

// Rank returns the vector length including the reserved slots.
func (c *Config) Rank() int {
	return c.Factors + reservedSlots
}

// LearningRateAt returns the step size of the given 0-based epoch.
func (c *Config) LearningRateAt(epoch int) float64 {
	rate := c.LearningRate * math.Pow(c.DecayFactor, float64(epoch-1))
	if c.ForgettingExponent != 0 {
		rate *= math.Pow(float64(epoch+c.StepOffset), c.ForgettingExponent)
	}
	return rate
}
