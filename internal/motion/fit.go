package motion

import (
	"errors"
	"fmt"
	"math"

	"globalmotion/internal/linalg"
	"globalmotion/pkg/geometry"
)

// degenerateRatio bounds how small the second-smallest singular value of the
// homography system may be, relative to the largest, before the null space is
// considered ambiguous.
const degenerateRatio = 1e-10

// Fit dispatches to the fitter for family t. The point sets are normalized in
// place and must not be reused afterwards.
func Fit(t TransformType, src, dst []geometry.Point2D) (FloatModel, error) {
	switch t {
	case Translation:
		return FitTranslation(src, dst)
	case RotZoom:
		return FitRotZoom(src, dst)
	case Affine:
		return FitAffine(src, dst)
	case Homography:
		return FitHomography(src, dst)
	default:
		return FloatModel{}, fmt.Errorf("fit %s: %w", t, ErrInvalidModelType)
	}
}

func checkCorrespondences(t TransformType, src, dst []geometry.Point2D) error {
	if len(src) != len(dst) {
		return fmt.Errorf("%s: %d source vs %d destination points: %w", t, len(src), len(dst), ErrInvalidInput)
	}
	if len(src) > MaxCorrespondences {
		return fmt.Errorf("%s: %d correspondences exceed %d: %w", t, len(src), MaxCorrespondences, ErrAllocationFailure)
	}
	if len(src) < t.MinPoints() {
		return fmt.Errorf("%s: need at least %d correspondences, got %d: %w", t, t.MinPoints(), len(src), ErrDegenerateFit)
	}
	return nil
}

// solverError maps a linalg failure onto the motion error taxonomy.
func solverError(t TransformType, err error) error {
	switch {
	case errors.Is(err, linalg.ErrNonConvergence):
		return fmt.Errorf("%s: %w: %w", t, ErrNumericalNonConvergence, err)
	case errors.Is(err, linalg.ErrSingular):
		return fmt.Errorf("%s: %w: %w", t, ErrDegenerateFit, err)
	default:
		return fmt.Errorf("%s: %w", t, err)
	}
}

// FitTranslation returns the mean displacement from src to dst.
func FitTranslation(src, dst []geometry.Point2D) (FloatModel, error) {
	if err := checkCorrespondences(Translation, src, dst); err != nil {
		return FloatModel{}, err
	}
	var sumX, sumY float64
	for i := range src {
		sumX += dst[i].X - src[i].X
		sumY += dst[i].Y - src[i].Y
	}
	n := float64(len(src))
	m := FloatModel{Type: Translation}
	m.Params[0] = sumX / n
	m.Params[1] = sumY / n
	return m, nil
}

// FitRotZoom fits x' = a·x + b·y + c, y' = -b·x + a·y + d in the least
// squares sense.
func FitRotZoom(src, dst []geometry.Point2D) (FloatModel, error) {
	if err := checkCorrespondences(RotZoom, src, dst); err != nil {
		return FloatModel{}, err
	}
	t1 := Normalize(src)
	t2 := Normalize(dst)

	n := len(src)
	a := linalg.NewMatrix(2*n, 4, nil)
	b := make([]float64, 2*n)
	for i := 0; i < n; i++ {
		sx, sy := src[i].X, src[i].Y
		r0, r1 := a.Row(2*i), a.Row(2*i+1)
		r0[0], r0[1], r0[2], r0[3] = sx, sy, 1, 0
		r1[0], r1[1], r1[2], r1[3] = sy, -sx, 0, 1
		b[2*i] = dst[i].X
		b[2*i+1] = dst[i].Y
	}
	p, err := linalg.Solve(a, b)
	if err != nil {
		return FloatModel{}, solverError(RotZoom, err)
	}

	h := denormalize(geometry.Matrix3{
		p[0], p[1], p[2],
		-p[1], p[0], p[3],
		0, 0, 1,
	}, t1, t2)

	m := FloatModel{Type: RotZoom}
	m.Params[0] = h[2]
	m.Params[1] = h[5]
	m.Params[2] = h[0]
	m.Params[3] = h[1]
	return m, nil
}

// FitAffine fits x' = a·x + b·y + e, y' = c·x + d·y + f in the least squares
// sense. The solved vector is ordered (a, b, c, d, e, f).
func FitAffine(src, dst []geometry.Point2D) (FloatModel, error) {
	if err := checkCorrespondences(Affine, src, dst); err != nil {
		return FloatModel{}, err
	}
	t1 := Normalize(src)
	t2 := Normalize(dst)

	n := len(src)
	a := linalg.NewMatrix(2*n, 6, nil)
	b := make([]float64, 2*n)
	for i := 0; i < n; i++ {
		sx, sy := src[i].X, src[i].Y
		r0, r1 := a.Row(2*i), a.Row(2*i+1)
		r0[0], r0[1], r0[4] = sx, sy, 1
		r1[2], r1[3], r1[5] = sx, sy, 1
		b[2*i] = dst[i].X
		b[2*i+1] = dst[i].Y
	}
	p, err := linalg.Solve(a, b)
	if err != nil {
		return FloatModel{}, solverError(Affine, err)
	}

	h := denormalize(geometry.Matrix3{
		p[0], p[1], p[4],
		p[2], p[3], p[5],
		0, 0, 1,
	}, t1, t2)

	m := FloatModel{Type: Affine}
	m.Params[0] = h[2]
	m.Params[1] = h[5]
	m.Params[2] = h[0]
	m.Params[3] = h[1]
	m.Params[4] = h[3]
	m.Params[5] = h[4]
	return m, nil
}

// FitHomography fits a projective transform with the normalized direct linear
// transform. Each correspondence contributes the three rows of the
// cross-product constraint dst × (H·src) = 0; the solution is the right
// singular vector of the first smallest singular value.
func FitHomography(src, dst []geometry.Point2D) (FloatModel, error) {
	if err := checkCorrespondences(Homography, src, dst); err != nil {
		return FloatModel{}, err
	}
	t1 := Normalize(src)
	t2 := Normalize(dst)

	n := len(src)
	a := linalg.NewMatrix(3*n, 9, nil)
	for i := 0; i < n; i++ {
		sx, sy := src[i].X, src[i].Y
		dx, dy := dst[i].X, dst[i].Y
		copy(a.Row(3*i), []float64{0, 0, 0, -sx, -sy, -1, dy * sx, dy * sy, dy})
		copy(a.Row(3*i+1), []float64{sx, sy, 1, 0, 0, 0, -dx * sx, -dx * sy, -dx})
		copy(a.Row(3*i+2), []float64{-dy * sx, -dy * sy, -dy, dx * sx, dx * sy, dx, 0, 0, 0})
	}

	d, err := linalg.SVD(a)
	if err != nil {
		return FloatModel{}, solverError(Homography, err)
	}

	minS, mini := 1e12, -1
	for i, s := range d.Values {
		if s < minS {
			minS, mini = s, i
		}
	}
	if mini < 0 {
		return FloatModel{}, fmt.Errorf("%s: no usable singular value: %w", Homography, ErrDegenerateFit)
	}
	maxS, second := 0.0, math.Inf(1)
	for i, s := range d.Values {
		maxS = math.Max(maxS, s)
		if i != mini {
			second = math.Min(second, s)
		}
	}
	if second <= degenerateRatio*maxS {
		return FloatModel{}, fmt.Errorf("%s: solution space is not one-dimensional: %w", Homography, ErrDegenerateFit)
	}

	var hn geometry.Matrix3
	for i := range hn {
		hn[i] = d.V.At(i, mini)
	}
	h := denormalize(hn, t1, t2)
	if h[8] == 0 {
		return FloatModel{}, fmt.Errorf("%s: zero projective scale: %w", Homography, ErrDegenerateFit)
	}

	f := 1 / h[8]
	m := FloatModel{Type: Homography}
	m.Params[0] = f * h[2]
	m.Params[1] = f * h[5]
	m.Params[2] = f * h[0]
	m.Params[3] = f * h[1]
	m.Params[4] = f * h[3]
	m.Params[5] = f * h[4]
	m.Params[6] = f * h[6]
	m.Params[7] = f * h[7]
	return m, nil
}

// Estimate fits family t to the correspondences and quantizes the result
// into *out. On failure *out is left untouched.
func Estimate(out *Model, t TransformType, src, dst []geometry.Point2D) error {
	f, err := Fit(t, src, dst)
	if err != nil {
		return err
	}
	m, err := Quantize(f, t)
	if err != nil {
		return err
	}
	*out = m
	return nil
}
