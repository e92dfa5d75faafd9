// sgdmf - Biased SGD Matrix Factorization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sgdmf

// Package cli implements the sgdmf command line.
//
//	sgdmf train     fit a model on an interaction log and store it
//	sgdmf evaluate  report the mean squared error of a stored model
//	sgdmf predict   predict a single user/item value
//	sgdmf models    list stored models and versions
//	sgdmf serve     serve predictions over HTTP
package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tomtom215/sgdmf/internal/config"
	"github.com/tomtom215/sgdmf/internal/logging"
	"github.com/tomtom215/sgdmf/internal/storage"
)

// RootOptions holds global flags and the configuration resolved from them.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
	StorePath  string
	ModelName  string

	// Config is populated before any subcommand runs.
	Config *config.Config
}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "sgdmf",
		Short: "sgdmf - biased SGD matrix factorization",
		Long: `Train, evaluate and serve biased matrix factorization models fitted
with stochastic gradient descent on (user, item, value) interaction logs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level override (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "", "log format override (json|console)")
	cmd.PersistentFlags().StringVar(&opts.StorePath, "store", "", "model store directory override")
	cmd.PersistentFlags().StringVar(&opts.ModelName, "model", "", "model name override")

	cmd.AddCommand(NewTrainCommand(opts))
	cmd.AddCommand(NewEvaluateCommand(opts))
	cmd.AddCommand(NewPredictCommand(opts))
	cmd.AddCommand(NewModelsCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))

	return cmd
}

// resolve loads the configuration, applies flag overrides and initializes
// logging on the command's stderr.
func (o *RootOptions) resolve(cmd *cobra.Command) error {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return err
	}

	if o.LogLevel != "" {
		if !logging.ValidLevel(o.LogLevel) {
			return fmt.Errorf("invalid log level %q", o.LogLevel)
		}
		cfg.Logging.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		if o.LogFormat != "json" && o.LogFormat != "console" {
			return fmt.Errorf("invalid log format %q: must be json or console", o.LogFormat)
		}
		cfg.Logging.Format = o.LogFormat
	}

	if o.StorePath != "" {
		cfg.Store.Path = o.StorePath
	}
	if o.ModelName != "" {
		if strings.Contains(o.ModelName, "/") {
			return fmt.Errorf("invalid model name %q", o.ModelName)
		}
		cfg.Store.ModelName = o.ModelName
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    cmd.ErrOrStderr(),
	})

	o.Config = cfg
	return nil
}

// openStore opens the configured model store.
func (o *RootOptions) openStore() (*storage.Store, error) {
	store, err := storage.Open(o.Config.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open model store: %w", err)
	}
	return store, nil
}
