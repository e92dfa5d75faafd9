// sgdmf - Biased SGD Matrix Factorization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sgdmf

package factorization

import (
	"fmt"
	"time"
)

// Snapshot is a serializable copy of a trained model.
type Snapshot struct {
	Config      Config    `json:"config"`
	NumUsers    int       `json:"num_users"`
	NumItems    int       `json:"num_items"`
	Rank        int       `json:"rank"`
	MeanValue   float64   `json:"mean_value"`
	UserFactors []float64 `json:"user_factors"`
	ItemFactors []float64 `json:"item_factors"`
	Version     int       `json:"version"`
	TrainedAt   time.Time `json:"trained_at"`
}

// Snapshot copies the current model state.
func (e *Engine) Snapshot() (*Snapshot, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.userFactors == nil {
		return nil, ErrNotTrained
	}

	return &Snapshot{
		Config:      e.config,
		NumUsers:    e.numUsers,
		NumItems:    e.numItems,
		Rank:        e.rank,
		MeanValue:   e.meanValue,
		UserFactors: e.userFactors.Data(),
		ItemFactors: e.itemFactors.Data(),
		Version:     e.version,
		TrainedAt:   e.lastTrainedAt,
	}, nil
}

// FromSnapshot rebuilds an engine from a snapshot. The restored engine
// answers queries immediately and can be re-fit with the stored config.
func FromSnapshot(s *Snapshot, opts ...Option) (*Engine, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil snapshot", ErrInvalidDimensions)
	}
	if s.Rank != s.Config.Rank() {
		return nil, fmt.Errorf("%w: snapshot rank %d does not match %d factors",
			ErrInvalidDimensions, s.Rank, s.Config.Factors)
	}

	e, err := NewEngine(s.NumUsers, s.NumItems, s.Config, opts...)
	if err != nil {
		return nil, err
	}

	users, err := newFactorMatrixFrom(s.NumUsers, s.Rank, s.UserFactors)
	if err != nil {
		return nil, fmt.Errorf("user factors: %w", err)
	}
	items, err := newFactorMatrixFrom(s.NumItems, s.Rank, s.ItemFactors)
	if err != nil {
		return nil, fmt.Errorf("item factors: %w", err)
	}

	e.userFactors = users
	e.itemFactors = items
	e.meanValue = s.MeanValue
	e.version = s.Version
	e.lastTrainedAt = s.TrainedAt
	e.trained = s.Version > 0
	return e, nil
}
