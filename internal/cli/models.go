// sgdmf - Biased SGD Matrix Factorization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sgdmf

package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/sgdmf/internal/storage"
)

// NewModelsCommand creates the models command. Without --all it lists the
// latest version of every stored model; with --all it lists every version
// of the configured model.
func NewModelsCommand(rootOpts *RootOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:          "models",
		Short:        "List stored models",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := rootOpts.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			var models []storage.ModelMetadata
			if all {
				models, err = store.ListVersions(cmd.Context(), rootOpts.Config.Store.ModelName)
			} else {
				models, err = store.ListModels(cmd.Context())
			}
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tVERSION\tUSERS\tITEMS\tFACTORS\tMSE\tSAVED")
			for i := range models {
				m := &models[i]
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%.6g\t%s\n",
					m.Name, m.Version, m.UserCount, m.ItemCount, m.Factors, m.TrainingMSE,
					m.SavedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "list every version of the configured model")

	return cmd
}
