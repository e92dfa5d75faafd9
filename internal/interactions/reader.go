// sgdmf - Biased SGD Matrix Factorization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sgdmf

// Package interactions loads (user, item, value) interaction logs from
// delimited text files.
//
// Each record holds a dense non-negative user id, a dense non-negative item
// id and a numeric value in its first three columns; extra columns are
// ignored. Entity counts are derived as max id + 1.
package interactions

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/tomtom215/sgdmf/internal/factorization"
)

// cancelCheckInterval is the number of records read between context checks.
const cancelCheckInterval = 10000

// ErrNegativeID is returned for records with a negative user or item id.
var ErrNegativeID = errors.New("negative id")

// Options controls how a log is parsed.
type Options struct {
	// Delimiter separates fields. Default: ','
	Delimiter rune

	// HasHeader skips the first record.
	HasHeader bool

	// Limit stops reading after this many observations. Zero reads everything.
	Limit int
}

// ParseError reports a malformed record.
type ParseError struct {
	Line   int
	Column string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("line %d: %s: %v", e.Line, e.Column, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Log is a parsed interaction log with its derived entity counts.
type Log struct {
	Observations []factorization.Observation
	NumUsers     int
	NumItems     int
}

// Len returns the number of observations.
func (l *Log) Len() int {
	return len(l.Observations)
}

// InRange reports whether both ids fall inside the given entity counts.
func InRange(obs factorization.Observation, numUsers, numItems int) bool {
	return obs.UserID >= 0 && obs.UserID < numUsers && obs.ItemID >= 0 && obs.ItemID < numItems
}

// Within returns the first limit observations of l whose ids fall inside a
// numUsers x numItems model, and how many were skipped before the limit was
// reached. Skipped observations do not count toward limit; zero keeps every
// in-range observation.
func (l *Log) Within(numUsers, numItems, limit int) (kept []factorization.Observation, skipped int) {
	for _, obs := range l.Observations {
		if limit > 0 && len(kept) >= limit {
			break
		}
		if !InRange(obs, numUsers, numItems) {
			skipped++
			continue
		}
		kept = append(kept, obs)
	}
	return kept, skipped
}

// Load opens path and reads it with Read.
func Load(ctx context.Context, path string, opts Options) (*Log, error) {
	f, err := os.Open(path) //nolint:gosec // path is operator supplied
	if err != nil {
		return nil, fmt.Errorf("open interaction log: %w", err)
	}
	defer func() { _ = f.Close() }()

	l, err := Read(ctx, f, opts)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return l, nil
}

// Read parses delimited records from r.
func Read(ctx context.Context, r io.Reader, opts Options) (*Log, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}

	l := &Log{}
	maxUser, maxItem := -1, -1

	for record := 0; ; record++ {
		if record%cancelCheckInterval == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if opts.Limit > 0 && len(l.Observations) >= opts.Limit {
			break
		}

		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse interaction log: %w", err)
		}
		line, _ := reader.FieldPos(0)
		if record == 0 && opts.HasHeader {
			continue
		}
		if len(fields) == 1 && strings.TrimSpace(fields[0]) == "" {
			continue
		}

		obs, err := parseRecord(fields, line)
		if err != nil {
			return nil, err
		}

		if obs.UserID > maxUser {
			maxUser = obs.UserID
		}
		if obs.ItemID > maxItem {
			maxItem = obs.ItemID
		}
		l.Observations = append(l.Observations, obs)
	}

	l.NumUsers = maxUser + 1
	l.NumItems = maxItem + 1
	return l, nil
}

func parseRecord(fields []string, line int) (factorization.Observation, error) {
	if len(fields) < 3 {
		return factorization.Observation{}, &ParseError{
			Line: line,
			Err:  fmt.Errorf("expected at least 3 fields, got %d", len(fields)),
		}
	}

	user, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil {
		return factorization.Observation{}, &ParseError{Line: line, Column: "user", Err: err}
	}
	item, err := strconv.Atoi(strings.TrimSpace(fields[1]))
	if err != nil {
		return factorization.Observation{}, &ParseError{Line: line, Column: "item", Err: err}
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
	if err != nil {
		return factorization.Observation{}, &ParseError{Line: line, Column: "value", Err: err}
	}
	if user < 0 {
		return factorization.Observation{}, &ParseError{Line: line, Column: "user", Err: ErrNegativeID}
	}
	if item < 0 {
		return factorization.Observation{}, &ParseError{Line: line, Column: "item", Err: ErrNegativeID}
	}

	return factorization.Observation{UserID: user, ItemID: item, Value: value}, nil
}
