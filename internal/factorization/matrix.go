// sgdmf - Biased SGD Matrix Factorization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sgdmf

package factorization

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Reserved slot positions. See the package documentation for the layout.
const (
	meanSlot      = 0
	userBiasSlot  = 1
	itemBiasSlot  = 2
	reservedSlots = 3
)

// FactorMatrix is a dense rows x rank matrix of factor vectors stored in
// row-major order. Row slices alias the backing storage.
type FactorMatrix struct {
	dense *mat.Dense
	rows  int
	rank  int
}

// NewFactorMatrix allocates a zeroed rows x rank matrix.
func NewFactorMatrix(rows, rank int) (*FactorMatrix, error) {
	if rows <= 0 || rank <= 0 {
		return nil, fmt.Errorf("%w: matrix %dx%d", ErrInvalidDimensions, rows, rank)
	}
	return &FactorMatrix{
		dense: mat.NewDense(rows, rank, nil),
		rows:  rows,
		rank:  rank,
	}, nil
}

// newFactorMatrixFrom wraps a copy of data, which must hold rows*rank values.
func newFactorMatrixFrom(rows, rank int, data []float64) (*FactorMatrix, error) {
	if rows <= 0 || rank <= 0 || len(data) != rows*rank {
		return nil, fmt.Errorf("%w: %d values for matrix %dx%d", ErrInvalidDimensions, len(data), rows, rank)
	}
	backing := make([]float64, len(data))
	copy(backing, data)
	return &FactorMatrix{
		dense: mat.NewDense(rows, rank, backing),
		rows:  rows,
		rank:  rank,
	}, nil
}

// Rows returns the number of factor vectors.
func (m *FactorMatrix) Rows() int { return m.rows }

// Rank returns the length of each factor vector.
func (m *FactorMatrix) Rank() int { return m.rank }

// Row returns the mutable vector at index i. It panics if i is out of range.
func (m *FactorMatrix) Row(i int) []float64 {
	return m.dense.RawRowView(i)
}

// RowChecked returns the vector at index i, or ErrOutOfRange.
func (m *FactorMatrix) RowChecked(i int) ([]float64, error) {
	if i < 0 || i >= m.rows {
		return nil, fmt.Errorf("%w: row %d of %d", ErrOutOfRange, i, m.rows)
	}
	return m.dense.RawRowView(i), nil
}

// At returns the value at row i, slot k.
func (m *FactorMatrix) At(i, k int) float64 {
	return m.dense.At(i, k)
}

// Data returns a row-major copy of the matrix values.
func (m *FactorMatrix) Data() []float64 {
	raw := m.dense.RawMatrix()
	out := make([]float64, 0, m.rows*m.rank)
	for i := 0; i < m.rows; i++ {
		out = append(out, raw.Data[i*raw.Stride:i*raw.Stride+m.rank]...)
	}
	return out
}

// Clone returns a deep copy of the matrix.
func (m *FactorMatrix) Clone() *FactorMatrix {
	return &FactorMatrix{
		dense: mat.DenseCopyOf(m.dense),
		rows:  m.rows,
		rank:  m.rank,
	}
}
