// sgdmf - Biased SGD Matrix Factorization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sgdmf

package interactions

import (
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"
)

// Summary describes the shape and value distribution of a log.
type Summary struct {
	Observations  int     `json:"observations"`
	NumUsers      int     `json:"num_users"`
	NumItems      int     `json:"num_items"`
	DistinctUsers int     `json:"distinct_users"`
	DistinctItems int     `json:"distinct_items"`
	Density       float64 `json:"density"`
	MeanValue     float64 `json:"mean_value"`
	StdDevValue   float64 `json:"stddev_value"`
}

// Summarize computes a Summary of l.
func (l *Log) Summarize() Summary {
	s := Summary{
		Observations: len(l.Observations),
		NumUsers:     l.NumUsers,
		NumItems:     l.NumItems,
	}
	if len(l.Observations) == 0 {
		return s
	}

	users := make(map[int]struct{}, l.NumUsers)
	items := make(map[int]struct{}, l.NumItems)
	values := make([]float64, len(l.Observations))
	for i, obs := range l.Observations {
		users[obs.UserID] = struct{}{}
		items[obs.ItemID] = struct{}{}
		values[i] = obs.Value
	}

	s.DistinctUsers = len(users)
	s.DistinctItems = len(items)
	s.Density = float64(len(l.Observations)) / (float64(l.NumUsers) * float64(l.NumItems))
	if len(values) > 1 {
		s.MeanValue, s.StdDevValue = stat.MeanStdDev(values, nil)
	} else {
		s.MeanValue = values[0]
	}
	return s
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (s Summary) MarshalZerologObject(e *zerolog.Event) {
	e.Int("observations", s.Observations).
		Int("num_users", s.NumUsers).
		Int("num_items", s.NumItems).
		Int("distinct_users", s.DistinctUsers).
		Int("distinct_items", s.DistinctItems).
		Float64("density", s.Density).
		Float64("mean_value", s.MeanValue).
		Float64("stddev_value", s.StdDevValue)
}
