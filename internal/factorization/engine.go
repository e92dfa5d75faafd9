// sgdmf - Biased SGD Matrix Factorization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sgdmf

package factorization

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/tomtom215/sgdmf/internal/logging"
	"github.com/tomtom215/sgdmf/internal/metrics"
)

// Engine is a biased matrix factorization model trained with SGD.
type Engine struct {
	config   Config
	numUsers int
	numItems int
	rank     int

	logger   zerolog.Logger
	rng      *rand.Rand
	progress func(EpochReport)

	mu            sync.RWMutex
	userFactors   *FactorMatrix
	itemFactors   *FactorMatrix
	meanValue     float64
	trained       bool
	version       int
	lastTrainedAt time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for training progress.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithRand injects the random source used for initialization noise and
// sampling. It overrides Config.Seed.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) {
		e.rng = rng
	}
}

// WithProgress registers a callback invoked after every epoch. The callback
// runs while the training lock is held and must not call back into the engine.
func WithProgress(fn func(EpochReport)) Option {
	return func(e *Engine) {
		e.progress = fn
	}
}

// NewEngine creates an untrained engine for dense user ids [0, numUsers) and
// item ids [0, numItems).
func NewEngine(numUsers, numItems int, cfg Config, opts ...Option) (*Engine, error) {
	if numUsers <= 0 || numItems <= 0 {
		return nil, fmt.Errorf("%w: users=%d items=%d", ErrInvalidDimensions, numUsers, numItems)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		config:   cfg,
		numUsers: numUsers,
		numItems: numItems,
		rank:     cfg.Rank(),
		logger:   logging.WithComponent("factorization"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = newRand(cfg.Seed)
	}
	return e, nil
}

func newRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed)) //nolint:gosec // weak RNG is fine for SGD sampling
}

// Config returns the engine hyperparameters.
func (e *Engine) Config() Config {
	return e.config
}

// Dimensions returns the user count, item count and vector rank.
func (e *Engine) Dimensions() (numUsers, numItems, rank int) {
	return e.numUsers, e.numItems, e.rank
}

// Initialize resets both factor matrices for log without training.
// A freshly initialized model predicts the global mean plus a small
// latent noise term for every pair.
func (e *Engine) Initialize(log []Observation) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initializeLocked(log)
}

// initializeLocked must be called with mu held.
func (e *Engine) initializeLocked(log []Observation) error {
	if len(log) == 0 {
		return ErrEmptyLog
	}
	if err := e.checkRange(log); err != nil {
		return err
	}

	users, err := NewFactorMatrix(e.numUsers, e.rank)
	if err != nil {
		return err
	}
	items, err := NewFactorMatrix(e.numItems, e.rank)
	if err != nil {
		return err
	}

	mean := estimateMean(log, e.config.MeanEstimate, e.numUsers)
	noise := e.config.Noise

	for u := 0; u < e.numUsers; u++ {
		row := users.Row(u)
		row[meanSlot] = mean
		row[userBiasSlot] = 0
		row[itemBiasSlot] = 1
		for k := reservedSlots; k < e.rank; k++ {
			row[k] = e.rng.NormFloat64() * noise
		}
	}
	for i := 0; i < e.numItems; i++ {
		row := items.Row(i)
		row[meanSlot] = 1
		row[userBiasSlot] = 1
		row[itemBiasSlot] = 0
		for k := reservedSlots; k < e.rank; k++ {
			row[k] = e.rng.NormFloat64() * noise
		}
	}

	e.userFactors = users
	e.itemFactors = items
	e.meanValue = mean
	e.trained = false
	return nil
}

// checkRange rejects observations whose ids fall outside the engine ranges.
func (e *Engine) checkRange(log []Observation) error {
	for idx, obs := range log {
		if obs.UserID < 0 || obs.UserID >= e.numUsers || obs.ItemID < 0 || obs.ItemID >= e.numItems {
			return fmt.Errorf("%w: observation %d has user %d item %d (users %d, items %d)",
				ErrOutOfRange, idx, obs.UserID, obs.ItemID, e.numUsers, e.numItems)
		}
	}
	return nil
}

func estimateMean(log []Observation, mode MeanEstimate, numUsers int) float64 {
	n := len(log)
	if mode == MeanPrefix && numUsers < n {
		n = numUsers
	}
	values := make([]float64, n)
	for i := 0; i < n; i++ {
		values[i] = log[i].Value
	}
	return stat.Mean(values, nil)
}

// Fit initializes the model for log and runs Config.Epochs training epochs.
// The previous model state is discarded. If ctx is canceled between epochs
// Fit returns ctx.Err() and the model stays initialized but untrained.
func (e *Engine) Fit(ctx context.Context, log []Observation) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	runID := logging.RunIDFromContext(ctx)
	if runID == "" {
		runID = uuid.New().String()
	}
	logger := e.logger.With().Str("run_id", runID).Logger()

	if err := e.initializeLocked(log); err != nil {
		metrics.RecordTrainingRun("error", time.Since(start))
		return fmt.Errorf("initialize factors: %w", err)
	}

	logger.Info().
		Int("users", e.numUsers).
		Int("items", e.numItems).
		Int("observations", len(log)).
		Int("factors", e.config.Factors).
		Int("epochs", e.config.Epochs).
		Str("sampling", string(e.config.Sampling)).
		Float64("mean", e.meanValue).
		Msg("Starting training")

	var order []int
	if e.config.Sampling == SamplingShuffle {
		order = make([]int, len(log))
		for i := range order {
			order[i] = i
		}
	}

	for epoch := 0; epoch < e.config.Epochs; epoch++ {
		if ContextCancelled(ctx) {
			metrics.RecordTrainingRun("canceled", time.Since(start))
			logger.Warn().Int("epoch", epoch).Msg("Training canceled")
			return ctx.Err()
		}

		mu := e.config.LearningRateAt(epoch)
		var sumSq float64
		if order != nil {
			sumSq = e.shuffledEpoch(log, order, mu)
		} else {
			sumSq = e.sampledEpoch(log, mu)
		}

		report := EpochReport{
			Epoch:        epoch,
			Epochs:       e.config.Epochs,
			LearningRate: mu,
			Loss:         sumSq / float64(len(log)),
		}
		metrics.RecordEpoch(len(log), mu, report.Loss)

		if e.config.ProgressInterval > 0 && epoch%e.config.ProgressInterval == 0 {
			logger.Info().
				Int("epoch", epoch).
				Int("epochs", e.config.Epochs).
				Float64("learning_rate", mu).
				Float64("loss", report.Loss).
				Msg("Training progress")
		}
		if e.progress != nil {
			e.progress(report)
		}
	}

	e.markTrained()
	duration := time.Since(start)
	metrics.RecordTrainingRun("success", duration)

	logger.Info().
		Dur("duration", duration).
		Int("version", e.version).
		Msg("Training complete")

	return nil
}

// sampledEpoch applies len(log) updates drawn uniformly with replacement
// and returns the summed squared pre-update error.
func (e *Engine) sampledEpoch(log []Observation, mu float64) float64 {
	var sumSq float64
	n := len(log)
	for j := 0; j < n; j++ {
		obs := log[e.rng.Intn(n)]
		diff := e.update(e.userFactors.Row(obs.UserID), e.itemFactors.Row(obs.ItemID), obs.Value, mu)
		sumSq += diff * diff
	}
	return sumSq
}

// shuffledEpoch applies one update per observation in a fresh random order.
func (e *Engine) shuffledEpoch(log []Observation, order []int, mu float64) float64 {
	e.rng.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})

	var sumSq float64
	for _, idx := range order {
		obs := log[idx]
		diff := e.update(e.userFactors.Row(obs.UserID), e.itemFactors.Row(obs.ItemID), obs.Value, mu)
		sumSq += diff * diff
	}
	return sumSq
}

// update applies one SGD step to a user and an item vector and returns the
// pre-update error. Both latent sides move from their pre-update values.
// The constant slots are never written.
func (e *Engine) update(user, item []float64, value, mu float64) float64 {
	diff := value - floats.Dot(user, item)
	lambda := e.config.Lambda

	for k := reservedSlots; k < len(user); k++ {
		u, v := user[k], item[k]
		user[k] = u + mu*(diff*v-lambda*u)
		item[k] = v + mu*(diff*u-lambda*v)
	}

	biasMu := e.config.BiasMuRatio * mu
	biasLambda := e.config.BiasLambdaRatio * lambda
	user[userBiasSlot] += biasMu * (diff - biasLambda*user[userBiasSlot])
	item[itemBiasSlot] += biasMu * (diff - biasLambda*item[itemBiasSlot])

	return diff
}

// markTrained must be called with mu held.
func (e *Engine) markTrained() {
	e.trained = true
	e.version++
	e.lastTrainedAt = time.Now()
}

// Predict returns the predicted value for a user/item pair.
func (e *Engine) Predict(userID, itemID int) (float64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.userFactors == nil {
		metrics.RecordPrediction("not_trained")
		return 0, ErrNotTrained
	}
	if userID < 0 || userID >= e.numUsers || itemID < 0 || itemID >= e.numItems {
		metrics.RecordPrediction("out_of_range")
		return 0, fmt.Errorf("%w: user %d item %d (users %d, items %d)",
			ErrOutOfRange, userID, itemID, e.numUsers, e.numItems)
	}

	metrics.RecordPrediction("ok")
	return floats.Dot(e.userFactors.Row(userID), e.itemFactors.Row(itemID)), nil
}

// MSE returns the mean squared prediction error over the in-range
// observations of log and the number of observations evaluated.
// Observations with out-of-range ids are skipped.
func (e *Engine) MSE(log []Observation) (mse float64, evaluated int, err error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.userFactors == nil {
		return 0, 0, ErrNotTrained
	}
	if len(log) == 0 {
		return 0, 0, ErrEmptyLog
	}

	var sumSq float64
	for _, obs := range log {
		if obs.UserID < 0 || obs.UserID >= e.numUsers || obs.ItemID < 0 || obs.ItemID >= e.numItems {
			continue
		}
		diff := obs.Value - floats.Dot(e.userFactors.Row(obs.UserID), e.itemFactors.Row(obs.ItemID))
		sumSq += diff * diff
		evaluated++
	}
	if evaluated == 0 {
		return 0, 0, fmt.Errorf("%w: no observation within range", ErrEmptyLog)
	}
	return sumSq / float64(evaluated), evaluated, nil
}

// MeanValue returns the global mean written to user slot 0.
func (e *Engine) MeanValue() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.meanValue
}

// UserFactors returns a copy of the user factor matrix, or nil before
// initialization.
func (e *Engine) UserFactors() *FactorMatrix {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.userFactors == nil {
		return nil
	}
	return e.userFactors.Clone()
}

// ItemFactors returns a copy of the item factor matrix, or nil before
// initialization.
func (e *Engine) ItemFactors() *FactorMatrix {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.itemFactors == nil {
		return nil
	}
	return e.itemFactors.Clone()
}

// IsTrained reports whether a Fit has completed.
func (e *Engine) IsTrained() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.trained
}

// Version returns the number of completed fits.
func (e *Engine) Version() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.version
}

// LastTrainedAt returns when the last fit completed.
func (e *Engine) LastTrainedAt() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastTrainedAt
}
