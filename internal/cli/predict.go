// sgdmf - Biased SGD Matrix Factorization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sgdmf

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// PredictOptions holds flags for the predict command.
type PredictOptions struct {
	UserID  int
	ItemID  int
	Version int
}

// NewPredictCommand creates the predict command.
func NewPredictCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PredictOptions{}

	cmd := &cobra.Command{
		Use:          "predict",
		Short:        "Predict the value of a user/item pair",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, err := loadModel(cmd.Context(), rootOpts, opts.Version)
			if err != nil {
				return err
			}

			value, err := engine.Predict(opts.UserID, opts.ItemID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%g\n", value)
			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.UserID, "user", "u", 0, "user id")
	cmd.Flags().IntVarP(&opts.ItemID, "item", "i", 0, "item id")
	cmd.Flags().IntVar(&opts.Version, "version", 0, "model version, 0 for the latest")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("item")

	return cmd
}
