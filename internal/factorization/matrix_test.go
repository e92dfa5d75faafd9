// sgdmf - Biased SGD Matrix Factorization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sgdmf

package factorization

import (
	"errors"
	"testing"
)

func TestNewFactorMatrix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		rows    int
		rank    int
		wantErr bool
	}{
		{name: "valid", rows: 4, rank: 3},
		{name: "zero rows", rows: 0, rank: 3, wantErr: true},
		{name: "zero rank", rows: 4, rank: 0, wantErr: true},
		{name: "negative rows", rows: -1, rank: 3, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m, err := NewFactorMatrix(tt.rows, tt.rank)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidDimensions) {
					t.Fatalf("NewFactorMatrix() error = %v, want ErrInvalidDimensions", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewFactorMatrix() error = %v", err)
			}
			if m.Rows() != tt.rows || m.Rank() != tt.rank {
				t.Errorf("shape = %dx%d, want %dx%d", m.Rows(), m.Rank(), tt.rows, tt.rank)
			}
		})
	}
}

func TestFactorMatrix_RowAliasesStorage(t *testing.T) {
	t.Parallel()

	m, err := NewFactorMatrix(2, 3)
	if err != nil {
		t.Fatal(err)
	}

	m.Row(1)[2] = 7.5
	if got := m.At(1, 2); got != 7.5 {
		t.Errorf("At(1, 2) = %v, want 7.5", got)
	}

	row, err := m.RowChecked(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(row) != 3 || row[2] != 7.5 {
		t.Errorf("RowChecked(1) = %v", row)
	}

	if _, err := m.RowChecked(2); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("RowChecked(2) error = %v, want ErrOutOfRange", err)
	}
	if _, err := m.RowChecked(-1); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("RowChecked(-1) error = %v, want ErrOutOfRange", err)
	}
}

func TestFactorMatrix_CopiesAreIndependent(t *testing.T) {
	t.Parallel()

	m, err := newFactorMatrixFrom(2, 2, []float64{1, 2, 3, 4})
	if err != nil {
		t.Fatal(err)
	}

	data := m.Data()
	clone := m.Clone()
	data[0] = 100
	clone.Row(1)[1] = 200

	if m.At(0, 0) != 1 {
		t.Errorf("Data() shares storage with the matrix")
	}
	if m.At(1, 1) != 4 {
		t.Errorf("Clone() shares storage with the matrix")
	}

	want := []float64{1, 2, 3, 4}
	for i, v := range m.Data() {
		if v != want[i] {
			t.Errorf("Data()[%d] = %v, want %v", i, v, want[i])
		}
	}
}

func TestNewFactorMatrixFrom_LengthMismatch(t *testing.T) {
	t.Parallel()

	if _, err := newFactorMatrixFrom(2, 3, []float64{1, 2, 3}); !errors.Is(err, ErrInvalidDimensions) {
		t.Errorf("error = %v, want ErrInvalidDimensions", err)
	}
}
