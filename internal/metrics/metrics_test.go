// sgdmf - Biased SGD Matrix Factorization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sgdmf

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordEpoch(t *testing.T) {
	epochsBefore := testutil.ToFloat64(TrainingEpochs)
	updatesBefore := testutil.ToFloat64(TrainingUpdates)

	RecordEpoch(120, 0.01, 0.75)

	if got := testutil.ToFloat64(TrainingEpochs) - epochsBefore; got != 1 {
		t.Errorf("epochs delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(TrainingUpdates) - updatesBefore; got != 120 {
		t.Errorf("updates delta = %v, want 120", got)
	}
	if got := testutil.ToFloat64(TrainingLoss); got != 0.75 {
		t.Errorf("loss = %v, want 0.75", got)
	}
	if got := testutil.ToFloat64(TrainingLearningRate); got != 0.01 {
		t.Errorf("learning rate = %v, want 0.01", got)
	}
}

func TestRecordTrainingRun(t *testing.T) {
	before := testutil.ToFloat64(TrainingRuns.WithLabelValues("success"))

	RecordTrainingRun("success", 250*time.Millisecond)

	if got := testutil.ToFloat64(TrainingRuns.WithLabelValues("success")) - before; got != 1 {
		t.Errorf("success runs delta = %v, want 1", got)
	}
}

func TestRecordPrediction(t *testing.T) {
	tests := []string{"ok", "out_of_range", "not_trained"}

	for _, result := range tests {
		t.Run(result, func(t *testing.T) {
			before := testutil.ToFloat64(Predictions.WithLabelValues(result))
			RecordPrediction(result)
			if got := testutil.ToFloat64(Predictions.WithLabelValues(result)) - before; got != 1 {
				t.Errorf("%s delta = %v, want 1", result, got)
			}
		})
	}
}

func TestRecordModelStore(t *testing.T) {
	okBefore := testutil.ToFloat64(ModelStoreOperations.WithLabelValues("save", "success"))
	errBefore := testutil.ToFloat64(ModelStoreOperations.WithLabelValues("save", "error"))

	RecordModelStore("save", nil)
	RecordModelStore("save", errors.New("disk full"))

	if got := testutil.ToFloat64(ModelStoreOperations.WithLabelValues("save", "success")) - okBefore; got != 1 {
		t.Errorf("success delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(ModelStoreOperations.WithLabelValues("save", "error")) - errBefore; got != 1 {
		t.Errorf("error delta = %v, want 1", got)
	}
}

func TestMetricGathering(t *testing.T) {
	RecordAPIRequest("GET", "/api/v1/predict", "200", time.Millisecond)

	problems, err := testutil.GatherAndLint(prometheus.DefaultGatherer)
	if err != nil {
		t.Logf("Lint errors (may be expected): %v", err)
	}
	for _, p := range problems {
		t.Logf("Metric lint problem: %s", p.Text)
	}
}
