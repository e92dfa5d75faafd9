// sgdmf - Biased SGD Matrix Factorization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sgdmf

package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/sgdmf/internal/factorization"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open("")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testSnapshot(mean float64) *factorization.Snapshot {
	cfg := factorization.DefaultConfig()
	cfg.Factors = 1
	return &factorization.Snapshot{
		Config:      cfg,
		NumUsers:    2,
		NumItems:    1,
		Rank:        4,
		MeanValue:   mean,
		UserFactors: []float64{mean, 0.1, 1, 0.2, mean, -0.1, 1, 0.3},
		ItemFactors: []float64{1, 1, 0.05, 0.4},
		Version:     1,
		TrainedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestOpen(t *testing.T) {
	tests := []struct {
		name string
		dir  func(t *testing.T) string
	}{
		{name: "in memory", dir: func(*testing.T) string { return "" }},
		{name: "creates directory", dir: func(t *testing.T) string { return filepath.Join(t.TempDir(), "models") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := Open(tt.dir(t))
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			if err := store.Close(); err != nil {
				t.Errorf("Close() error = %v", err)
			}
		})
	}
}

func TestStore_SaveAndLoad(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	snap := testSnapshot(3.5)
	meta, err := store.Save(ctx, "default", snap, ModelMetadata{
		ObservationCount:   42,
		TrainingMSE:        0.25,
		TrainingDurationMS: 1500,
	})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if meta.Version != 1 || meta.Name != "default" {
		t.Errorf("metadata = %s v%d, want default v1", meta.Name, meta.Version)
	}
	if meta.Checksum == "" || meta.SizeBytes <= 0 {
		t.Errorf("checksum/size not filled: %q %d", meta.Checksum, meta.SizeBytes)
	}
	if meta.UserCount != 2 || meta.ItemCount != 1 || meta.Factors != 1 {
		t.Errorf("shape not derived from snapshot: %+v", meta)
	}
	if !meta.TrainedAt.Equal(snap.TrainedAt) {
		t.Errorf("TrainedAt = %v, want %v", meta.TrainedAt, snap.TrainedAt)
	}

	loaded, loadedMeta, err := store.Load(ctx, "default", 0)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loadedMeta.ObservationCount != 42 || loadedMeta.TrainingMSE != 0.25 {
		t.Errorf("loaded metadata = %+v", loadedMeta)
	}
	if loaded.MeanValue != 3.5 || loaded.Rank != 4 {
		t.Errorf("loaded snapshot mean=%v rank=%d", loaded.MeanValue, loaded.Rank)
	}
	for i, v := range snap.UserFactors {
		if loaded.UserFactors[i] != v {
			t.Errorf("UserFactors[%d] = %v, want %v", i, loaded.UserFactors[i], v)
		}
	}
	if loaded.Config.Sampling != snap.Config.Sampling {
		t.Errorf("Config.Sampling = %q, want %q", loaded.Config.Sampling, snap.Config.Sampling)
	}

	engine, err := factorization.FromSnapshot(loaded)
	if err != nil {
		t.Fatalf("FromSnapshot() error = %v", err)
	}
	if _, err := engine.Predict(1, 0); err != nil {
		t.Errorf("Predict() error = %v", err)
	}
}

func TestStore_Versions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		meta, err := store.Save(ctx, "default", testSnapshot(float64(i)), ModelMetadata{})
		if err != nil {
			t.Fatal(err)
		}
		if meta.Version != i {
			t.Errorf("Save #%d version = %d", i, meta.Version)
		}
	}
	if _, err := store.Save(ctx, "other", testSnapshot(9), ModelMetadata{}); err != nil {
		t.Fatal(err)
	}

	if v, ok := store.LatestVersion("default"); !ok || v != 3 {
		t.Errorf("LatestVersion(default) = %d, %v, want 3, true", v, ok)
	}
	if _, ok := store.LatestVersion("missing"); ok {
		t.Error("LatestVersion(missing) should report false")
	}

	snap, _, err := store.Load(ctx, "default", 2)
	if err != nil {
		t.Fatal(err)
	}
	if snap.MeanValue != 2 {
		t.Errorf("Load(v2).MeanValue = %v, want 2", snap.MeanValue)
	}

	models, err := store.ListModels(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(models) != 2 {
		t.Fatalf("ListModels() returned %d models, want 2", len(models))
	}
	for _, m := range models {
		if m.Name == "default" && m.Version != 3 {
			t.Errorf("ListModels() default version = %d, want 3", m.Version)
		}
	}

	versions, err := store.ListVersions(ctx, "default")
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 3 || versions[0].Version != 1 || versions[2].Version != 3 {
		t.Errorf("ListVersions() = %+v", versions)
	}
}

func TestStore_DeleteAndPrune(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		if _, err := store.Save(ctx, "default", testSnapshot(float64(i)), ModelMetadata{}); err != nil {
			t.Fatal(err)
		}
	}

	if err := store.Delete(ctx, "default", 5); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if v, _ := store.LatestVersion("default"); v != 4 {
		t.Errorf("LatestVersion() after delete = %d, want 4", v)
	}
	if err := store.Delete(ctx, "default", 5); !errors.Is(err, ErrModelNotFound) {
		t.Errorf("Delete(missing) error = %v, want ErrModelNotFound", err)
	}

	removed, err := store.Prune(ctx, "default", 2)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if removed != 2 {
		t.Errorf("Prune() removed %d, want 2", removed)
	}

	versions, err := store.ListVersions(ctx, "default")
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 2 || versions[0].Version != 3 || versions[1].Version != 4 {
		t.Errorf("remaining versions = %+v", versions)
	}

	if removed, err := store.Prune(ctx, "default", 5); err != nil || removed != 0 {
		t.Errorf("Prune(keep 5) = %d, %v, want 0, nil", removed, err)
	}
}

func TestStore_LoadErrors(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, _, err := store.Load(ctx, "missing", 0); !errors.Is(err, ErrModelNotFound) {
		t.Errorf("Load(missing latest) error = %v, want ErrModelNotFound", err)
	}
	if _, err := store.Save(ctx, "default", testSnapshot(1), ModelMetadata{}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := store.Load(ctx, "default", 7); !errors.Is(err, ErrModelNotFound) {
		t.Errorf("Load(v7) error = %v, want ErrModelNotFound", err)
	}

	for _, name := range []string{"", "a/b"} {
		if _, _, err := store.Load(ctx, name, 0); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Load(%q) error = %v, want ErrInvalidName", name, err)
		}
		if _, err := store.Save(ctx, name, testSnapshot(1), ModelMetadata{}); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Save(%q) error = %v, want ErrInvalidName", name, err)
		}
	}
}

func TestStore_ChecksumMismatch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Save(ctx, "default", testSnapshot(1), ModelMetadata{}); err != nil {
		t.Fatal(err)
	}

	other, _, err := encodeSnapshot(testSnapshot(2))
	if err != nil {
		t.Fatal(err)
	}
	err = store.db.Update(func(txn *badger.Txn) error {
		return txn.Set(dataKey("default", 1), other)
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := store.Load(ctx, "default", 1); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("Load() error = %v, want ErrChecksumMismatch", err)
	}
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Save(ctx, "default", testSnapshot(4), ModelMetadata{}); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = reopened.Close() }()

	snap, meta, err := reopened.Load(ctx, "default", 0)
	if err != nil {
		t.Fatalf("Load() after reopen error = %v", err)
	}
	if meta.Version != 1 || snap.MeanValue != 4 {
		t.Errorf("reopened model v%d mean %v, want v1 mean 4", meta.Version, snap.MeanValue)
	}
}
