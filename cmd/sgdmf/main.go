// sgdmf - Biased SGD Matrix Factorization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sgdmf

// Package main is the entry point for the sgdmf command.
//
// sgdmf fits biased matrix factorization models to (user, item, value)
// interaction logs with stochastic gradient descent, stores trained models
// in a versioned BadgerDB store and serves predictions over HTTP.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest priority wins):
//   - Command line flags
//   - Environment variables prefixed with SGDMF_ (e.g. SGDMF_EPOCHS)
//   - Config file (--config, CONFIG_PATH, ./sgdmf.yaml or /etc/sgdmf/sgdmf.yaml)
//   - Built-in defaults
//
// # Example Usage
//
//	sgdmf train --data ratings.csv --store ./models
//	sgdmf evaluate --data ratings.csv --store ./models --print
//	sgdmf predict --user 3 --item 14 --store ./models
//	sgdmf serve --store ./models --port 8080
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel training between epochs and shut the HTTP
// server down gracefully.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/sgdmf/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
