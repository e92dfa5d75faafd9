// sgdmf - Biased SGD Matrix Factorization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sgdmf

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tomtom215/sgdmf/internal/factorization"
	"github.com/tomtom215/sgdmf/internal/interactions"
	"github.com/tomtom215/sgdmf/internal/logging"
	"github.com/tomtom215/sgdmf/internal/storage"
)

// TrainOptions holds flags for the train command.
type TrainOptions struct {
	DataPath string
	Epochs   int
	Factors  int
	Seed     int64
	Sampling string
	NoSave   bool
}

// NewTrainCommand creates the train command.
func NewTrainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TrainOptions{}

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Fit a model on an interaction log",
		Long: `Fit a biased matrix factorization model on a delimited
user,item,value log, print its in-sample mean squared error and save it
as a new version in the model store.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rootOpts.Config
			if opts.DataPath != "" {
				cfg.Data.Path = opts.DataPath
			}
			if cmd.Flags().Changed("epochs") {
				cfg.Model.Epochs = opts.Epochs
			}
			if cmd.Flags().Changed("factors") {
				cfg.Model.Factors = opts.Factors
			}
			if cmd.Flags().Changed("seed") {
				cfg.Model.Seed = opts.Seed
			}
			if opts.Sampling != "" {
				cfg.Model.Sampling = opts.Sampling
			}
			return runTrain(cmd.Context(), rootOpts, opts.NoSave, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.DataPath, "data", "d", "", "interaction log path (overrides data.path)")
	cmd.Flags().IntVar(&opts.Epochs, "epochs", 0, "training epochs (overrides model.epochs)")
	cmd.Flags().IntVar(&opts.Factors, "factors", 0, "latent factors (overrides model.factors)")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 0, "random seed, 0 seeds from the clock (overrides model.seed)")
	cmd.Flags().StringVar(&opts.Sampling, "sampling", "", "replacement or shuffle (overrides model.sampling)")
	cmd.Flags().BoolVar(&opts.NoSave, "no-save", false, "train and report without saving the model")

	return cmd
}

// TrainResult summarizes a completed training run.
type TrainResult struct {
	Summary  interactions.Summary
	MSE      float64
	Duration time.Duration
	Saved    *storage.ModelMetadata
}

func runTrain(ctx context.Context, rootOpts *RootOptions, noSave bool, out io.Writer) error {
	result, err := train(ctx, rootOpts, noSave)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "observations: %d users: %d items: %d\n",
		result.Summary.Observations, result.Summary.NumUsers, result.Summary.NumItems)
	fmt.Fprintf(out, "mse: %g\n", result.MSE)
	if result.Saved != nil {
		fmt.Fprintf(out, "saved model %s version %d\n", result.Saved.Name, result.Saved.Version)
	}
	return nil
}

func train(ctx context.Context, rootOpts *RootOptions, noSave bool) (*TrainResult, error) {
	cfg := rootOpts.Config
	if cfg.Data.Path == "" {
		return nil, errors.New("no interaction log given: set --data or data.path")
	}

	ctx = logging.ContextWithRunID(ctx, uuid.New().String())
	logger := logging.CtxWith(ctx).Str("component", "train").Logger()

	log, err := interactions.Load(ctx, cfg.Data.Path, interactions.Options{
		Delimiter: cfg.Data.DelimiterRune(),
		HasHeader: cfg.Data.HasHeader,
	})
	if err != nil {
		return nil, err
	}
	summary := log.Summarize()
	logger.Info().EmbedObject(summary).Msg("Interaction log loaded")

	if log.Len() == 0 {
		return nil, fmt.Errorf("%s: %w", cfg.Data.Path, factorization.ErrEmptyLog)
	}

	engine, err := factorization.NewEngine(log.NumUsers, log.NumItems, cfg.Model.ToFactorization())
	if err != nil {
		return nil, err
	}

	start := time.Now()
	if err := engine.Fit(ctx, log.Observations); err != nil {
		return nil, fmt.Errorf("train model: %w", err)
	}
	duration := time.Since(start)

	mse, _, err := engine.MSE(log.Observations)
	if err != nil {
		return nil, fmt.Errorf("evaluate model: %w", err)
	}

	result := &TrainResult{Summary: summary, MSE: mse, Duration: duration}
	if noSave {
		return result, nil
	}

	saved, err := saveModel(ctx, rootOpts, engine, storage.ModelMetadata{
		ObservationCount:   log.Len(),
		TrainingMSE:        mse,
		Source:             cfg.Data.Path,
		TrainingDurationMS: duration.Milliseconds(),
	})
	if err != nil {
		return nil, err
	}
	result.Saved = &saved
	return result, nil
}

//nolint:gocritic // metadata passed by value mirrors storage.Store.Save
func saveModel(ctx context.Context, rootOpts *RootOptions, engine *factorization.Engine, meta storage.ModelMetadata) (storage.ModelMetadata, error) {
	snap, err := engine.Snapshot()
	if err != nil {
		return storage.ModelMetadata{}, err
	}

	store, err := rootOpts.openStore()
	if err != nil {
		return storage.ModelMetadata{}, err
	}
	defer func() { _ = store.Close() }()

	name := rootOpts.Config.Store.ModelName
	saved, err := store.Save(ctx, name, snap, meta)
	if err != nil {
		return storage.ModelMetadata{}, fmt.Errorf("save model: %w", err)
	}

	if keep := rootOpts.Config.Store.KeepVersions; keep > 0 {
		if _, err := store.Prune(ctx, name, keep); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("name", name).Msg("Failed to prune old model versions")
		}
	}
	return saved, nil
}
