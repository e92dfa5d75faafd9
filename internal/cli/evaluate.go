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

	"github.com/spf13/cobra"

	"github.com/tomtom215/sgdmf/internal/factorization"
	"github.com/tomtom215/sgdmf/internal/interactions"
	"github.com/tomtom215/sgdmf/internal/logging"
	"github.com/tomtom215/sgdmf/internal/storage"
)

// EvaluateOptions holds flags for the evaluate command.
type EvaluateOptions struct {
	DataPath string
	Limit    int
	Version  int
	Print    bool
}

// NewEvaluateCommand creates the evaluate command.
func NewEvaluateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EvaluateOptions{}

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Report the mean squared error of a stored model",
		Long: `Load a stored model and report its mean squared error over the first
records of an interaction log. Records whose user or item lies outside
the model are skipped and do not count toward --limit.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rootOpts.Config
			if opts.DataPath != "" {
				cfg.Data.Path = opts.DataPath
			}
			if !cmd.Flags().Changed("limit") {
				opts.Limit = cfg.Data.EvalLimit
			}
			return runEvaluate(cmd.Context(), rootOpts, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.DataPath, "data", "d", "", "interaction log path (overrides data.path)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "evaluate at most this many in-range records, 0 for all (overrides data.eval_limit)")
	cmd.Flags().IntVar(&opts.Version, "version", 0, "model version, 0 for the latest")
	cmd.Flags().BoolVar(&opts.Print, "print", false, "print actual and predicted value per record")

	return cmd
}

func runEvaluate(ctx context.Context, rootOpts *RootOptions, opts *EvaluateOptions, out io.Writer) error {
	cfg := rootOpts.Config
	if cfg.Data.Path == "" {
		return errors.New("no interaction log given: set --data or data.path")
	}

	engine, meta, err := loadModel(ctx, rootOpts, opts.Version)
	if err != nil {
		return err
	}

	log, err := interactions.Load(ctx, cfg.Data.Path, interactions.Options{
		Delimiter: cfg.Data.DelimiterRune(),
		HasHeader: cfg.Data.HasHeader,
	})
	if err != nil {
		return err
	}

	numUsers, numItems, _ := engine.Dimensions()
	evalSet, skipped := log.Within(numUsers, numItems, opts.Limit)
	if opts.Print {
		for _, obs := range evalSet {
			est, err := engine.Predict(obs.UserID, obs.ItemID)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%g %g\n", obs.Value, est)
		}
	}

	mse, evaluated, err := engine.MSE(evalSet)
	if err != nil {
		return fmt.Errorf("evaluate model %s v%d: %w", meta.Name, meta.Version, err)
	}

	logging.Ctx(ctx).Info().
		Str("name", meta.Name).
		Int("version", meta.Version).
		Int("records", log.Len()).
		Int("evaluated", evaluated).
		Int("skipped", skipped).
		Float64("mse", mse).
		Msg("Evaluation complete")

	fmt.Fprintf(out, "mse: %g\n", mse)
	return nil
}

// loadModel restores a stored model version, 0 meaning the latest.
func loadModel(ctx context.Context, rootOpts *RootOptions, version int) (*factorization.Engine, *storage.ModelMetadata, error) {
	store, err := rootOpts.openStore()
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = store.Close() }()

	name := rootOpts.Config.Store.ModelName
	snap, meta, err := store.Load(ctx, name, version)
	if err != nil {
		return nil, nil, fmt.Errorf("load model %s: %w", name, err)
	}

	engine, err := factorization.FromSnapshot(snap)
	if err != nil {
		return nil, nil, fmt.Errorf("restore model %s v%d: %w", name, meta.Version, err)
	}
	return engine, meta, nil
}
