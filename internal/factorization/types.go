// sgdmf - Biased SGD Matrix Factorization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sgdmf

package factorization

import (
	"context"
	"errors"
)

var (
	// ErrInvalidDimensions is returned when an entity count is not positive,
	// the factor count is negative, or stored factors do not match their shape.
	ErrInvalidDimensions = errors.New("invalid dimensions")

	// ErrEmptyLog is returned when Fit or Initialize receive no observations.
	ErrEmptyLog = errors.New("empty interaction log")

	// ErrOutOfRange is returned when a user or item id falls outside the
	// dense ranges the engine was built with.
	ErrOutOfRange = errors.New("id out of range")

	// ErrNotTrained is returned by readers before any initialization.
	ErrNotTrained = errors.New("model not initialized")
)

// Observation is a single (user, item, value) event. The same pair may occur
// any number of times; each occurrence is an independent training sample.
type Observation struct {
	// UserID is the dense 0-based user index.
	UserID int `json:"user_id"`

	// ItemID is the dense 0-based item index.
	ItemID int `json:"item_id"`

	// Value is the observed interaction strength.
	Value float64 `json:"value"`
}

// EpochReport describes one finished training epoch.
type EpochReport struct {
	// Epoch is the 0-based epoch index.
	Epoch int `json:"epoch"`

	// Epochs is the total number of epochs of the run.
	Epochs int `json:"epochs"`

	// LearningRate is the rate used for every update of the epoch.
	LearningRate float64 `json:"learning_rate"`

	// Loss is the mean squared error measured before each update of the epoch.
	Loss float64 `json:"loss"`
}

// ContextCancelled checks if the context has been canceled.
func ContextCancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
