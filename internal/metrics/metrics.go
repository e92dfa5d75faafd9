// sgdmf - Biased SGD Matrix Factorization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sgdmf

// Package metrics exposes Prometheus instrumentation for training, prediction,
// model storage and the HTTP surface.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Training Metrics
	TrainingRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sgdmf_training_runs_total",
			Help: "Total number of fit runs by outcome",
		},
		[]string{"status"}, // "success", "error", "canceled"
	)

	TrainingEpochs = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sgdmf_training_epochs_total",
			Help: "Total number of completed training epochs",
		},
	)

	TrainingUpdates = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sgdmf_training_updates_total",
			Help: "Total number of single-sample SGD updates applied",
		},
	)

	TrainingLoss = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sgdmf_training_loss",
			Help: "Mean squared pre-update error of the most recent epoch",
		},
	)

	TrainingLearningRate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sgdmf_training_learning_rate",
			Help: "Learning rate of the most recent epoch",
		},
	)

	TrainingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sgdmf_training_duration_seconds",
			Help:    "Duration of complete fit runs in seconds",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
		},
	)

	// Prediction Metrics
	Predictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sgdmf_predictions_total",
			Help: "Total number of point predictions by result",
		},
		[]string{"result"}, // "ok", "out_of_range", "not_trained"
	)

	// Model Storage Metrics
	ModelStoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sgdmf_model_store_operations_total",
			Help: "Total number of model store operations",
		},
		[]string{"operation", "status"},
	)

	ModelSizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sgdmf_model_size_bytes",
			Help: "Compressed size of the most recently saved model",
		},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sgdmf_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sgdmf_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5, 1},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordEpoch records one finished epoch.
func RecordEpoch(updates int, learningRate, loss float64) {
	TrainingEpochs.Inc()
	TrainingUpdates.Add(float64(updates))
	TrainingLearningRate.Set(learningRate)
	TrainingLoss.Set(loss)
}

// RecordTrainingRun records the outcome and duration of a fit run.
func RecordTrainingRun(status string, duration time.Duration) {
	TrainingRuns.WithLabelValues(status).Inc()
	TrainingDuration.Observe(duration.Seconds())
}

// RecordPrediction records a point prediction result.
func RecordPrediction(result string) {
	Predictions.WithLabelValues(result).Inc()
}

// RecordModelStore records a model store operation.
func RecordModelStore(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	ModelStoreOperations.WithLabelValues(operation, status).Inc()
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
