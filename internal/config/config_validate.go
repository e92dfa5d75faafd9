// sgdmf - Biased SGD Matrix Factorization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sgdmf

package config

import (
	"fmt"
	"unicode/utf8"

	"github.com/tomtom215/sgdmf/internal/logging"
	"github.com/tomtom215/sgdmf/internal/validation"
)

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if verr := validation.ValidateStruct(c); verr != nil {
		return verr
	}

	if err := c.validateLogging(); err != nil {
		return err
	}

	if err := c.validateData(); err != nil {
		return err
	}

	model := c.Model.ToFactorization()
	if err := model.Validate(); err != nil {
		return fmt.Errorf("model: %w", err)
	}

	return nil
}

func (c *Config) validateLogging() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("SGDMF_LOG_LEVEL must be one of trace, debug, info, warn, error, fatal, panic, disabled (got %q)", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateData() error {
	switch c.Data.Delimiter {
	case "tab", "\\t":
		return nil
	}
	if utf8.RuneCountInString(c.Data.Delimiter) != 1 {
		return fmt.Errorf("SGDMF_DATA_DELIMITER must be a single character or \"tab\" (got %q)", c.Data.Delimiter)
	}
	switch c.Data.DelimiterRune() {
	case '"', '\r', '\n', utf8.RuneError:
		return fmt.Errorf("SGDMF_DATA_DELIMITER %q is not a valid field separator", c.Data.Delimiter)
	}
	return nil
}
