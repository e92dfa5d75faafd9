// sgdmf - Biased SGD Matrix Factorization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sgdmf

// Package storage persists trained factorization snapshots in BadgerDB.
//
// # Storage Format
//
// Each saved model version occupies two keys:
//
//	model/{name}/meta/{version}  JSON ModelMetadata
//	model/{name}/data/{version}  gzip(gob(factorization.Snapshot))
//
// Versions are zero-padded so that key order equals version order. The
// metadata carries a SHA-256 checksum of the uncompressed gob payload which
// is verified on every load.
//
// # Thread Safety
//
// All operations are safe for concurrent use. Version assignment in Save runs
// inside a single read-write transaction.
package storage

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/sgdmf/internal/factorization"
	"github.com/tomtom215/sgdmf/internal/logging"
	"github.com/tomtom215/sgdmf/internal/metrics"
)

const (
	keyPrefix     = "model/"
	versionDigits = 10
)

var (
	// ErrModelNotFound is returned when no stored version matches a request.
	ErrModelNotFound = errors.New("model not found")

	// ErrChecksumMismatch is returned when a stored payload fails verification.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrInvalidName is returned for empty names or names containing '/'.
	ErrInvalidName = errors.New("invalid model name")
)

// ModelMetadata contains information about a stored model.
type ModelMetadata struct {
	// Name is the model name (e.g., "default").
	Name string `json:"name"`

	// Version is the store-assigned version (monotonically increasing per name).
	Version int `json:"version"`

	// TrainedAt is when the model was trained.
	TrainedAt time.Time `json:"trained_at"`

	// SavedAt is when the model was saved.
	SavedAt time.Time `json:"saved_at"`

	// ObservationCount is the number of observations used for training.
	ObservationCount int `json:"observation_count"`

	// UserCount is the size of the user id range.
	UserCount int `json:"user_count"`

	// ItemCount is the size of the item id range.
	ItemCount int `json:"item_count"`

	// Factors is the number of latent factors.
	Factors int `json:"factors"`

	// TrainingMSE is the in-sample error measured after training.
	TrainingMSE float64 `json:"training_mse"`

	// Source describes where the training data came from.
	Source string `json:"source,omitempty"`

	// Checksum is the SHA-256 checksum of the uncompressed model data.
	Checksum string `json:"checksum"`

	// SizeBytes is the compressed model size in bytes.
	SizeBytes int64 `json:"size_bytes"`

	// TrainingDurationMS is how long training took.
	TrainingDurationMS int64 `json:"training_duration_ms"`
}

// Store manages model persistence.
type Store struct {
	db     *badger.DB
	logger zerolog.Logger
}

// Open opens or creates a store at dir. An empty dir opens an in-memory store.
func Open(dir string) (*Store, error) {
	logger := logging.WithComponent("storage")

	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	} else if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	opts = opts.WithLogger(&badgerLogger{logger: logger})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}

	logger.Debug().Str("dir", dir).Bool("in_memory", dir == "").Msg("Model store opened")
	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func validateName(name string) error {
	if name == "" || strings.Contains(name, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func metaPrefix(name string) []byte {
	return []byte(keyPrefix + name + "/meta/")
}

func metaKey(name string, version int) []byte {
	return []byte(fmt.Sprintf("%s%s/meta/%0*d", keyPrefix, name, versionDigits, version))
}

func dataKey(name string, version int) []byte {
	return []byte(fmt.Sprintf("%s%s/data/%0*d", keyPrefix, name, versionDigits, version))
}

// versionFromKey parses the trailing version of a meta or data key.
func versionFromKey(key []byte) (int, bool) {
	k := string(key)
	idx := strings.LastIndexByte(k, '/')
	if idx < 0 {
		return 0, false
	}
	v, err := strconv.Atoi(k[idx+1:])
	if err != nil {
		return 0, false
	}
	return v, true
}

// encodeSnapshot returns the gzip-compressed gob payload and the checksum of
// the uncompressed bytes.
func encodeSnapshot(snap *factorization.Snapshot) (compressed []byte, checksum string, err error) {
	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(snap); err != nil {
		return nil, "", fmt.Errorf("encode model: %w", err)
	}

	hash := sha256.Sum256(raw.Bytes())

	var buf bytes.Buffer
	gzw := gzip.NewWriter(&buf)
	if _, err := gzw.Write(raw.Bytes()); err != nil {
		return nil, "", fmt.Errorf("compress model: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return nil, "", fmt.Errorf("finalize compression: %w", err)
	}

	return buf.Bytes(), hex.EncodeToString(hash[:]), nil
}

func decodeSnapshot(compressed []byte, checksum string) (*factorization.Snapshot, error) {
	gzr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("decompress model: %w", err)
	}
	defer func() { _ = gzr.Close() }()

	raw, err := io.ReadAll(gzr)
	if err != nil {
		return nil, fmt.Errorf("read decompressed data: %w", err)
	}

	hash := sha256.Sum256(raw)
	if got := hex.EncodeToString(hash[:]); got != checksum {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, checksum, got)
	}

	var snap factorization.Snapshot
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	return &snap, nil
}

// Save stores snap under name as the next version and returns the completed
// metadata. Name, Version, Checksum, SizeBytes and SavedAt are filled in by
// the store.
//
//nolint:gocritic // meta passed by value is acceptable for this write operation
func (s *Store) Save(ctx context.Context, name string, snap *factorization.Snapshot, meta ModelMetadata) (ModelMetadata, error) {
	result, err := s.save(ctx, name, snap, meta)
	metrics.RecordModelStore("save", err)
	return result, err
}

//nolint:gocritic // see Save
func (s *Store) save(ctx context.Context, name string, snap *factorization.Snapshot, meta ModelMetadata) (ModelMetadata, error) {
	if err := validateName(name); err != nil {
		return ModelMetadata{}, err
	}
	if snap == nil {
		return ModelMetadata{}, errors.New("nil snapshot")
	}
	if err := ctx.Err(); err != nil {
		return ModelMetadata{}, err
	}

	compressed, checksum, err := encodeSnapshot(snap)
	if err != nil {
		return ModelMetadata{}, err
	}

	meta.Name = name
	meta.Checksum = checksum
	meta.SizeBytes = int64(len(compressed))
	meta.SavedAt = time.Now()
	if meta.TrainedAt.IsZero() {
		meta.TrainedAt = snap.TrainedAt
	}
	if meta.UserCount == 0 {
		meta.UserCount = snap.NumUsers
	}
	if meta.ItemCount == 0 {
		meta.ItemCount = snap.NumItems
	}
	if meta.Factors == 0 {
		meta.Factors = snap.Config.Factors
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		latest, err := latestVersion(txn, name)
		if err != nil {
			return err
		}
		meta.Version = latest + 1

		metaJSON, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		if err := txn.Set(dataKey(name, meta.Version), compressed); err != nil {
			return fmt.Errorf("write model data: %w", err)
		}
		if err := txn.Set(metaKey(name, meta.Version), metaJSON); err != nil {
			return fmt.Errorf("write model metadata: %w", err)
		}
		return nil
	})
	if err != nil {
		return ModelMetadata{}, err
	}

	metrics.ModelSizeBytes.Set(float64(meta.SizeBytes))
	s.logger.Info().
		Str("name", name).
		Int("version", meta.Version).
		Int64("size_bytes", meta.SizeBytes).
		Msg("Model saved")

	return meta, nil
}

// latestVersion returns the highest stored version of name, or 0.
func latestVersion(txn *badger.Txn, name string) (int, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Reverse = true
	it := txn.NewIterator(opts)
	defer it.Close()

	prefix := metaPrefix(name)
	// Reverse iteration seeks to the largest key <= the seek key.
	seek := append(append([]byte{}, prefix...), 0xFF)
	for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
		if v, ok := versionFromKey(it.Item().Key()); ok {
			return v, nil
		}
	}
	return 0, nil
}

func readMetadata(txn *badger.Txn, key []byte) (*ModelMetadata, error) {
	item, err := txn.Get(key)
	if err != nil {
		return nil, err
	}
	var meta ModelMetadata
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &meta)
	})
	if err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return &meta, nil
}

// Load loads a model by name and version. Version 0 loads the latest version.
func (s *Store) Load(ctx context.Context, name string, version int) (*factorization.Snapshot, *ModelMetadata, error) {
	snap, meta, err := s.load(ctx, name, version)
	metrics.RecordModelStore("load", err)
	return snap, meta, err
}

func (s *Store) load(ctx context.Context, name string, version int) (*factorization.Snapshot, *ModelMetadata, error) {
	if err := validateName(name); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var (
		meta       *ModelMetadata
		compressed []byte
	)
	err := s.db.View(func(txn *badger.Txn) error {
		if version == 0 {
			latest, err := latestVersion(txn, name)
			if err != nil {
				return err
			}
			if latest == 0 {
				return fmt.Errorf("%w: %s", ErrModelNotFound, name)
			}
			version = latest
		}

		var err error
		meta, err = readMetadata(txn, metaKey(name, version))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s version %d", ErrModelNotFound, name, version)
		}
		if err != nil {
			return err
		}

		item, err := txn.Get(dataKey(name, version))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s version %d has no data", ErrModelNotFound, name, version)
		}
		if err != nil {
			return err
		}
		compressed, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	snap, err := decodeSnapshot(compressed, meta.Checksum)
	if err != nil {
		return nil, nil, err
	}
	return snap, meta, nil
}

// LatestVersion returns the latest version number for a model.
func (s *Store) LatestVersion(name string) (int, bool) {
	var latest int
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		latest, err = latestVersion(txn, name)
		return err
	})
	if err != nil || latest == 0 {
		return 0, false
	}
	return latest, true
}

// ListVersions returns metadata for every stored version of name, oldest first.
func (s *Store) ListVersions(ctx context.Context, name string) ([]ModelMetadata, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	return s.scanMetadata(ctx, metaPrefix(name), false)
}

// ListModels returns metadata for the latest version of every stored model.
func (s *Store) ListModels(ctx context.Context) ([]ModelMetadata, error) {
	return s.scanMetadata(ctx, []byte(keyPrefix), true)
}

func (s *Store) scanMetadata(ctx context.Context, prefix []byte, latestOnly bool) ([]ModelMetadata, error) {
	var models []ModelMetadata
	latestIdx := make(map[string]int)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			if !strings.Contains(string(item.Key()), "/meta/") {
				continue
			}

			var meta ModelMetadata
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &meta)
			}); err != nil {
				s.logger.Warn().Err(err).Str("key", string(item.Key())).Msg("Skipping unreadable metadata")
				continue
			}

			if !latestOnly {
				models = append(models, meta)
				continue
			}
			// Keys of one name are ordered by version, so the last seen wins.
			if idx, ok := latestIdx[meta.Name]; ok {
				models[idx] = meta
				continue
			}
			latestIdx[meta.Name] = len(models)
			models = append(models, meta)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	return models, nil
}

// Delete removes a specific model version.
func (s *Store) Delete(ctx context.Context, name string, version int) error {
	err := s.delete(ctx, name, version)
	metrics.RecordModelStore("delete", err)
	return err
}

func (s *Store) delete(ctx context.Context, name string, version int) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(metaKey(name, version)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s version %d", ErrModelNotFound, name, version)
			}
			return err
		}
		if err := txn.Delete(metaKey(name, version)); err != nil {
			return fmt.Errorf("delete model metadata: %w", err)
		}
		if err := txn.Delete(dataKey(name, version)); err != nil {
			return fmt.Errorf("delete model data: %w", err)
		}
		return nil
	})
}

// Prune removes old versions of name, keeping the latest keepVersions, and
// returns the number of versions removed.
func (s *Store) Prune(ctx context.Context, name string, keepVersions int) (int, error) {
	if keepVersions < 1 {
		keepVersions = 1
	}

	versions, err := s.ListVersions(ctx, name)
	if err != nil {
		return 0, err
	}
	if len(versions) <= keepVersions {
		return 0, nil
	}

	removed := 0
	for _, meta := range versions[:len(versions)-keepVersions] {
		if err := s.Delete(ctx, name, meta.Version); err != nil {
			return removed, fmt.Errorf("prune %s version %d: %w", name, meta.Version, err)
		}
		removed++
	}

	s.logger.Info().Str("name", name).Int("removed", removed).Int("kept", keepVersions).Msg("Pruned model versions")
	return removed, nil
}

// badgerLogger routes badger's internal logging through zerolog.
type badgerLogger struct {
	logger zerolog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error().Msgf(strings.TrimSpace(format), args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn().Msgf(strings.TrimSpace(format), args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug().Msgf(strings.TrimSpace(format), args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Trace().Msgf(strings.TrimSpace(format), args...)
}
