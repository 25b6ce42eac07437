// Package linalg provides the dense linear algebra needed to fit motion models:
// a row-major matrix, singular value decomposition and the Moore-Penrose
// pseudo-inverse built on top of it.
package linalg

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrShape is returned when matrix dimensions do not suit an operation.
	ErrShape = errors.New("linalg: dimension mismatch")

	// ErrNonConvergence is returned when a singular value fails to converge
	// within the QR sweep cap.
	ErrNonConvergence = errors.New("linalg: svd did not converge")

	// ErrSingular is returned when a singular value is too small to invert.
	ErrSingular = errors.New("linalg: matrix is numerically singular")
)

// Matrix is a dense matrix stored row-major in a buffer it owns.
// It satisfies gonum's mat.Matrix so results can be handed to gonum routines.
type Matrix struct {
	rows, cols int
	data       []float64
}

var _ mat.Matrix = (*Matrix)(nil)

// NewMatrix creates a rows×cols matrix. If data is nil a zeroed buffer is
// allocated; otherwise data is used directly and must have rows*cols elements.
func NewMatrix(rows, cols int, data []float64) *Matrix {
	if rows <= 0 || cols <= 0 {
		panic(fmt.Sprintf("linalg: invalid dimensions %dx%d", rows, cols))
	}
	if data == nil {
		data = make([]float64, rows*cols)
	} else if len(data) != rows*cols {
		panic(fmt.Sprintf("linalg: data length %d does not match %dx%d", len(data), rows, cols))
	}
	return &Matrix{rows: rows, cols: cols, data: data}
}

// Dims returns the number of rows and columns.
func (m *Matrix) Dims() (r, c int) {
	return m.rows, m.cols
}

func (m *Matrix) index(i, j int) int {
	if uint(i) >= uint(m.rows) || uint(j) >= uint(m.cols) {
		panic(fmt.Sprintf("linalg: index (%d,%d) out of range %dx%d", i, j, m.rows, m.cols))
	}
	return i*m.cols + j
}

// At returns the element at row i, column j.
func (m *Matrix) At(i, j int) float64 {
	return m.data[m.index(i, j)]
}

// Set stores v at row i, column j.
func (m *Matrix) Set(i, j int, v float64) {
	m.data[m.index(i, j)] = v
}

// T returns the transpose as a view.
func (m *Matrix) T() mat.Matrix {
	return mat.Transpose{Matrix: m}
}

// Row returns row i as a slice aliasing the matrix storage.
func (m *Matrix) Row(i int) []float64 {
	start := m.index(i, 0)
	return m.data[start : start+m.cols]
}

// Col returns a copy of column j.
func (m *Matrix) Col(j int) []float64 {
	out := make([]float64, m.rows)
	for i := range out {
		out[i] = m.data[i*m.cols+j]
	}
	return out
}

// Clone returns a deep copy.
func (m *Matrix) Clone() *Matrix {
	data := make([]float64, len(m.data))
	copy(data, m.data)
	return &Matrix{rows: m.rows, cols: m.cols, data: data}
}

// Mul returns a*b.
func Mul(a, b *Matrix) (*Matrix, error) {
	if a.cols != b.rows {
		return nil, fmt.Errorf("multiply %dx%d by %dx%d: %w", a.rows, a.cols, b.rows, b.cols, ErrShape)
	}
	out := NewMatrix(a.rows, b.cols, nil)
	for i := 0; i < a.rows; i++ {
		ar := a.data[i*a.cols : (i+1)*a.cols]
		or := out.data[i*b.cols : (i+1)*b.cols]
		for k, av := range ar {
			if av == 0 {
				continue
			}
			br := b.data[k*b.cols : (k+1)*b.cols]
			for j, bv := range br {
				or[j] += av * bv
			}
		}
	}
	return out, nil
}

// MulVec returns a*x.
func MulVec(a *Matrix, x []float64) ([]float64, error) {
	if a.cols != len(x) {
		return nil, fmt.Errorf("multiply %dx%d by vector of %d: %w", a.rows, a.cols, len(x), ErrShape)
	}
	out := make([]float64, a.rows)
	for i := range out {
		var s float64
		for j, xv := range x {
			s += a.data[i*a.cols+j] * xv
		}
		out[i] = s
	}
	return out, nil
}
