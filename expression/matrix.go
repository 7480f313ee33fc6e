// Package expression holds the feature x sample expression matrix and the
// joint normalization pipeline that harmonizes several matrices onto a shared
// gene index before they are handed to a classifier.
package expression

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Matrix is a dense expression table. Rows are features (genes) and columns
// are samples (cells).
type Matrix struct {
	Features []string
	Samples  []string
	Data     *mat.Dense
}

// NewMatrix builds a Matrix from row-major values. values[i] is the row for
// features[i] and must have len(samples) entries.
func NewMatrix(features, samples []string, values [][]float64) (*Matrix, error) {
	if len(features) == 0 || len(samples) == 0 {
		return nil, ErrEmptyMatrix
	}
	if len(values) != len(features) {
		return nil, fmt.Errorf("%w: %d feature ids, %d rows", ErrShape, len(features), len(values))
	}
	data := mat.NewDense(len(features), len(samples), nil)
	for i, row := range values {
		if len(row) != len(samples) {
			return nil, fmt.Errorf("%w: row %q has %d values, want %d", ErrShape, features[i], len(row), len(samples))
		}
		data.SetRow(i, row)
	}
	return &Matrix{
		Features: append([]string(nil), features...),
		Samples:  append([]string(nil), samples...),
		Data:     data,
	}, nil
}

// Rows returns the number of features.
func (m *Matrix) Rows() int { return len(m.Features) }

// Cols returns the number of samples.
func (m *Matrix) Cols() int { return len(m.Samples) }

// Validate checks the shape invariants, that sample ids are unique, and that
// every count is finite and non-negative.
func (m *Matrix) Validate() error {
	if m == nil || m.Data == nil || len(m.Features) == 0 || len(m.Samples) == 0 {
		return ErrEmptyMatrix
	}
	r, c := m.Data.Dims()
	if r != len(m.Features) || c != len(m.Samples) {
		return fmt.Errorf("%w: data is %dx%d, ids are %dx%d", ErrShape, r, c, len(m.Features), len(m.Samples))
	}
	seen := make(map[string]struct{}, len(m.Samples))
	for _, id := range m.Samples {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate sample id %q", ErrShape, id)
		}
		seen[id] = struct{}{}
	}
	for i := 0; i < r; i++ {
		for j, v := range m.Data.RawRowView(i) {
			if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: %v at feature %q sample %q", ErrInvalidValue, v, m.Features[i], m.Samples[j])
			}
		}
	}
	return nil
}

// SelectRows returns a new matrix holding the given rows in the given order.
func (m *Matrix) SelectRows(idx []int) *Matrix {
	return &Matrix{
		Features: pick(m.Features, idx),
		Samples:  append([]string(nil), m.Samples...),
		Data:     selectRows(m.Data, idx),
	}
}

// SelectColumns returns a new matrix holding the given samples in the given
// order.
func (m *Matrix) SelectColumns(idx []int) *Matrix {
	out := mat.NewDense(m.Rows(), len(idx), nil)
	for i := 0; i < m.Rows(); i++ {
		src := m.Data.RawRowView(i)
		dst := out.RawRowView(i)
		for j, c := range idx {
			dst[j] = src[c]
		}
	}
	return &Matrix{
		Features: append([]string(nil), m.Features...),
		Samples:  pick(m.Samples, idx),
		Data:     out,
	}
}

// Transpose32 returns the matrix in sample-major layout: one float32 feature
// vector per sample, in column order.
func (m *Matrix) Transpose32() [][]float32 {
	r, c := m.Data.Dims()
	out := make([][]float32, c)
	for j := range out {
		out[j] = make([]float32, r)
	}
	for i := 0; i < r; i++ {
		for j, v := range m.Data.RawRowView(i) {
			out[j][i] = float32(v)
		}
	}
	return out
}

// selectRows copies rows of d into a new dense matrix. idx must be non-empty.
func selectRows(d *mat.Dense, idx []int) *mat.Dense {
	_, c := d.Dims()
	out := mat.NewDense(len(idx), c, nil)
	for i, r := range idx {
		out.SetRow(i, d.RawRowView(r))
	}
	return out
}

func pick(ids []string, idx []int) []string {
	out := make([]string, len(idx))
	for i, k := range idx {
		out[i] = ids[k]
	}
	return out
}
