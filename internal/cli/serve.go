// sgdmf - Biased SGD Matrix Factorization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sgdmf

package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/tomtom215/sgdmf/internal/api"
	"github.com/tomtom215/sgdmf/internal/logging"
	"github.com/tomtom215/sgdmf/internal/storage"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve predictions over HTTP",
		Long: `Serve the latest stored version of the configured model over HTTP until
interrupted. The server starts without a model when none is stored yet;
POST /api/v1/model/reload picks one up after training. The store is only
opened while loading or listing models, so train can save into it while
the server runs.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rootOpts.Config
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			ctx := cmd.Context()
			server := api.NewServer(cfg.Server, rootOpts.openStore, cfg.Store.ModelName)
			if _, err := server.LoadLatest(ctx); err != nil {
				if !errors.Is(err, storage.ErrModelNotFound) {
					return err
				}
				logging.Ctx(ctx).Warn().
					Str("name", cfg.Store.ModelName).
					Msg("No stored model yet, serving without one")
			}

			return server.ListenAndServe(ctx)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides server.port)")

	return cmd
}
