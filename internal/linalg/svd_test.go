package linalg

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func randomMatrix(rng *rand.Rand, rows, cols int) *Matrix {
	m := NewMatrix(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			m.Set(i, j, rng.Float64()*2-1)
		}
	}
	return m
}

func TestSVDReconstructs(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	shapes := []struct{ rows, cols int }{
		{1, 1}, {3, 3}, {4, 4}, {6, 6}, {8, 5}, {12, 9}, {30, 9}, {40, 6},
	}
	for _, sh := range shapes {
		a := randomMatrix(rng, sh.rows, sh.cols)
		d, err := SVD(a)
		require.NoError(t, err, "%dx%d", sh.rows, sh.cols)

		var us mat.Dense
		us.Mul(d.U, mat.NewDiagDense(sh.cols, d.Values))
		var rec mat.Dense
		rec.Mul(&us, d.V.T())
		assert.True(t, mat.EqualApprox(&rec, a, 1e-10), "%dx%d reconstruction", sh.rows, sh.cols)

		for _, sv := range d.Values {
			assert.GreaterOrEqual(t, sv, 0.0)
		}
	}
}

func TestSVDOrthonormalFactors(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	a := randomMatrix(rng, 15, 7)
	d, err := SVD(a)
	require.NoError(t, err)

	var utu, vtv mat.Dense
	utu.Mul(d.U.T(), d.U)
	vtv.Mul(d.V.T(), d.V)
	assert.True(t, mat.EqualApprox(&utu, eye(7), 1e-10), "UᵀU")
	assert.True(t, mat.EqualApprox(&vtv, eye(7), 1e-10), "VᵀV")

	for i := 0; i < 7; i++ {
		for j := i + 1; j < 7; j++ {
			assert.InDelta(t, 0, dot(d.U.Col(i), d.U.Col(j)), 1e-10)
			assert.InDelta(t, 0, dot(d.V.Col(i), d.V.Col(j)), 1e-10)
		}
		assert.InDelta(t, 1, math.Sqrt(dot(d.U.Col(i), d.U.Col(i))), 1e-10)
	}
}

func TestSVDMatchesGonum(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	a := randomMatrix(rng, 10, 6)
	d, err := SVD(a)
	require.NoError(t, err)

	var ref mat.SVD
	require.True(t, ref.Factorize(a, mat.SVDThin))
	want := ref.Values(nil)

	got := append([]float64(nil), d.Values...)
	sort.Sort(sort.Reverse(sort.Float64Slice(got)))
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-10)
	}
}

func TestSVDDoesNotModifyInput(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	a := randomMatrix(rng, 5, 4)
	orig := a.Clone()
	_, err := SVD(a)
	require.NoError(t, err)
	assert.Equal(t, orig.data, a.data)
}

func TestSVDRankDeficient(t *testing.T) {
	// Second column is twice the first.
	a := NewMatrix(4, 3, []float64{
		1, 2, 0,
		2, 4, 1,
		3, 6, 0,
		4, 8, 1,
	})
	d, err := SVD(a)
	require.NoError(t, err)
	minSV := math.Inf(1)
	for _, sv := range d.Values {
		minSV = math.Min(minSV, sv)
	}
	assert.Less(t, minSV, 1e-12)
}

func TestSVDRejectsWideMatrix(t *testing.T) {
	_, err := SVD(NewMatrix(2, 3, nil))
	assert.ErrorIs(t, err, ErrShape)
}

func TestSVDSweepCap(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	a := randomMatrix(rng, 8, 4)
	a.Set(2, 1, math.NaN())

	_, err := SVD(a)
	assert.ErrorIs(t, err, ErrNonConvergence)

	_, err = Solve(a, make([]float64, 8))
	assert.ErrorIs(t, err, ErrNonConvergence)
}

func TestPseudoInverse(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	a := randomMatrix(rng, 9, 4)
	inv, err := PseudoInverse(a)
	require.NoError(t, err)

	r, c := inv.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 9, c)

	var prod mat.Dense
	prod.Mul(inv, a)
	assert.True(t, mat.EqualApprox(&prod, eye(4), 1e-10))
}

func TestPseudoInverseSingular(t *testing.T) {
	a := NewMatrix(3, 2, []float64{
		1, 2,
		2, 4,
		3, 6,
	})
	_, err := PseudoInverse(a)
	assert.ErrorIs(t, err, ErrSingular)
}

func TestSolveLeastSquares(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	a := randomMatrix(rng, 20, 5)
	b := make([]float64, 20)
	for i := range b {
		b[i] = rng.NormFloat64()
	}
	x, err := Solve(a, b)
	require.NoError(t, err)

	var ref mat.VecDense
	require.NoError(t, ref.SolveVec(a, mat.NewVecDense(20, b)))
	for i := range x {
		assert.InDelta(t, ref.AtVec(i), x[i], 1e-9)
	}
}

func TestMulShapes(t *testing.T) {
	a := NewMatrix(2, 3, []float64{1, 2, 3, 4, 5, 6})
	b := NewMatrix(3, 1, []float64{1, 0, -1})
	p, err := Mul(a, b)
	require.NoError(t, err)
	assert.Equal(t, []float64{-2, -2}, p.data)

	_, err = Mul(a, a)
	assert.ErrorIs(t, err, ErrShape)
}

func eye(n int) *mat.Dense {
	d := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		d.Set(i, i, 1)
	}
	return d
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
