package motion

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"globalmotion/pkg/geometry"
)

func randomPoints(rng *rand.Rand, n int) []geometry.Point2D {
	pts := make([]geometry.Point2D, n)
	for i := range pts {
		pts[i] = geometry.Point2D{X: rng.Float64() * 640, Y: rng.Float64() * 480}
	}
	return pts
}

func applyAll(m FloatModel, pts []geometry.Point2D) []geometry.Point2D {
	out := make([]geometry.Point2D, len(pts))
	for i, p := range pts {
		out[i] = m.Apply(p)
	}
	return out
}

func clonePoints(pts []geometry.Point2D) []geometry.Point2D {
	return append([]geometry.Point2D(nil), pts...)
}

func knownModels() []FloatModel {
	return []FloatModel{
		{Type: Translation, Params: [MaxParams]float64{12.25, -3.5}},
		{Type: RotZoom, Params: [MaxParams]float64{5.5, -7.25, 1.02 * math.Cos(0.03), 1.02 * math.Sin(0.03)}},
		{Type: Affine, Params: [MaxParams]float64{3, -2, 1.01, 0.02, -0.015, 0.99}},
		{Type: Homography, Params: [MaxParams]float64{4, -6, 1.01, 0.015, -0.01, 0.995, 2e-5, -1e-5}},
	}
}

func TestFitNoiselessExact(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, want := range knownModels() {
		t.Run(want.Type.String(), func(t *testing.T) {
			src := randomPoints(rng, 40)
			dst := applyAll(want, src)

			got, err := Fit(want.Type, clonePoints(src), clonePoints(dst))
			require.NoError(t, err)
			assert.Equal(t, want.Type, got.Type)
			for i := 0; i < MaxParams; i++ {
				assert.InDelta(t, want.Params[i], got.Params[i], 1e-7, "param %d", i)
			}
		})
	}
}

func TestFitMinimalPointCounts(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	for _, want := range knownModels() {
		src := randomPoints(rng, want.Type.MinPoints())
		dst := applyAll(want, src)
		got, err := Fit(want.Type, src, dst)
		require.NoError(t, err, want.Type.String())
		for i := 0; i < MaxParams; i++ {
			assert.InDelta(t, want.Params[i], got.Params[i], 1e-6, "%s param %d", want.Type, i)
		}
	}
}

// The fitters solve in their own coefficient order and write the public slot
// layout afterwards; these cases pin that mapping.
func TestFitCoefficientLayout(t *testing.T) {
	square := []geometry.Point2D{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, {X: 2, Y: 5}}

	t.Run("affine", func(t *testing.T) {
		// x' = 2x + 3y + 6, y' = 4x + 5y + 7
		dst := make([]geometry.Point2D, len(square))
		for i, p := range square {
			dst[i] = geometry.Point2D{X: 2*p.X + 3*p.Y + 6, Y: 4*p.X + 5*p.Y + 7}
		}
		m, err := FitAffine(clonePoints(square), dst)
		require.NoError(t, err)
		want := [MaxParams]float64{6, 7, 2, 3, 4, 5, 0, 0}
		for i := range want {
			assert.InDelta(t, want[i], m.Params[i], 1e-9, "slot %d", i)
		}
	})

	t.Run("rotzoom", func(t *testing.T) {
		// x' = 1.5x + 0.5y + 2, y' = -0.5x + 1.5y - 1
		dst := make([]geometry.Point2D, len(square))
		for i, p := range square {
			dst[i] = geometry.Point2D{X: 1.5*p.X + 0.5*p.Y + 2, Y: -0.5*p.X + 1.5*p.Y - 1}
		}
		m, err := FitRotZoom(clonePoints(square), dst)
		require.NoError(t, err)
		want := [MaxParams]float64{2, -1, 1.5, 0.5, 0, 0, 0, 0}
		for i := range want {
			assert.InDelta(t, want[i], m.Params[i], 1e-9, "slot %d", i)
		}
	})

	t.Run("homography", func(t *testing.T) {
		h := geometry.Matrix3{1.2, 0.1, 3, -0.2, 0.9, -4, 0.01, 0.02, 1}
		dst := make([]geometry.Point2D, len(square))
		for i, p := range square {
			dst[i] = h.Apply(p)
		}
		m, err := FitHomography(clonePoints(square), dst)
		require.NoError(t, err)
		want := [MaxParams]float64{3, -4, 1.2, 0.1, -0.2, 0.9, 0.01, 0.02}
		for i := range want {
			assert.InDelta(t, want[i], m.Params[i], 1e-9, "slot %d", i)
		}
	})
}

func TestFitHomographySimilarityInvariance(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	h := knownModels()[3]
	src := randomPoints(rng, 25)
	dst := applyAll(h, src)

	s1 := geometry.Similarity(0.25, 100, -40)
	s2 := geometry.Similarity(3.0, -7, 12)
	src2 := make([]geometry.Point2D, len(src))
	dst2 := make([]geometry.Point2D, len(dst))
	for i := range src {
		src2[i] = s1.Apply(src[i])
		dst2[i] = s2.Apply(dst[i])
	}

	base, err := FitHomography(clonePoints(src), clonePoints(dst))
	require.NoError(t, err)
	scaled, err := FitHomography(src2, dst2)
	require.NoError(t, err)

	want := s2.Mul(base.Matrix3()).Mul(s1.InverseSimilarity())
	got := scaled.Matrix3()
	for i := range want {
		assert.InDelta(t, want[i]/want[8], got[i]/got[8], 1e-7, "element %d", i)
	}
}

func TestFitHomographyCollinear(t *testing.T) {
	src := []geometry.Point2D{{X: 0, Y: 0}, {X: 10, Y: 10}, {X: 20, Y: 20}, {X: 30, Y: 30}}
	dst := []geometry.Point2D{{X: 5, Y: 0}, {X: 15, Y: 10}, {X: 25, Y: 20}, {X: 35, Y: 30}}
	_, err := FitHomography(src, dst)
	assert.ErrorIs(t, err, ErrDegenerateFit)
}

func TestFitAffineCollinear(t *testing.T) {
	src := []geometry.Point2D{{X: 0, Y: 0}, {X: 1, Y: 2}, {X: 2, Y: 4}, {X: 3, Y: 6}}
	dst := clonePoints(src)
	_, err := FitAffine(src, dst)
	assert.ErrorIs(t, err, ErrDegenerateFit)
}

func TestFitInputErrors(t *testing.T) {
	pts := []geometry.Point2D{{X: 1, Y: 2}, {X: 3, Y: 4}}

	_, err := FitHomography(clonePoints(pts), clonePoints(pts))
	assert.ErrorIs(t, err, ErrDegenerateFit)

	_, err = FitAffine(clonePoints(pts), clonePoints(pts[:1]))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = Fit(TransformType(9), clonePoints(pts), clonePoints(pts))
	assert.ErrorIs(t, err, ErrInvalidModelType)

	_, err = FitTranslation(nil, nil)
	assert.ErrorIs(t, err, ErrDegenerateFit)
}

func TestTranslationScenario(t *testing.T) {
	src := []geometry.Point2D{{X: 10, Y: 10}, {X: 50, Y: 12}, {X: 20, Y: 40}, {X: 60, Y: 60}}
	dst := make([]geometry.Point2D, len(src))
	for i, p := range src {
		dst[i] = geometry.Point2D{X: p.X + 10, Y: p.Y}
	}

	var m Model
	require.NoError(t, Estimate(&m, Translation, src, dst))
	assert.Equal(t, Translation, m.Type)
	assert.Equal(t, int32(10*256), m.Params[0])
	assert.Equal(t, int32(0), m.Params[1])
	assert.True(t, m.Valid())
}

func TestEstimateLeavesModelOnFailure(t *testing.T) {
	m := Model{Type: Affine, Params: [MaxParams]int32{1, 2, 3, 4, 5, 6}}
	before := m

	src := []geometry.Point2D{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 3}}
	dst := clonePoints(src)
	err := Estimate(&m, Homography, src, dst)
	require.ErrorIs(t, err, ErrDegenerateFit)
	assert.Equal(t, before, m)

	err = Estimate(&m, TransformType(-1), src, dst)
	require.ErrorIs(t, err, ErrInvalidModelType)
	assert.Equal(t, before, m)
}

func TestFitNonConvergence(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	for _, typ := range []TransformType{RotZoom, Affine, Homography} {
		t.Run(typ.String(), func(t *testing.T) {
			src := randomPoints(rng, 12)
			dst := applyAll(IdentityModel(typ), src)
			src[3].X = math.NaN()

			_, err := Fit(typ, clonePoints(src), clonePoints(dst))
			assert.ErrorIs(t, err, ErrNumericalNonConvergence)

			m := Model{Type: typ, Params: [MaxParams]int32{7, 8, 9}}
			before := m
			err = Estimate(&m, typ, clonePoints(src), clonePoints(dst))
			require.ErrorIs(t, err, ErrNumericalNonConvergence)
			assert.Equal(t, before, m)
		})
	}
}

func TestFitCorrespondenceLimit(t *testing.T) {
	src := make([]geometry.Point2D, MaxCorrespondences+1)
	dst := make([]geometry.Point2D, MaxCorrespondences+1)
	for _, typ := range []TransformType{Translation, RotZoom, Affine, Homography} {
		_, err := Fit(typ, src, dst)
		assert.ErrorIs(t, err, ErrAllocationFailure, typ.String())
	}

	m := Model{Type: Translation, Params: [MaxParams]int32{5, 6}}
	before := m
	require.ErrorIs(t, Estimate(&m, Affine, src, dst), ErrAllocationFailure)
	assert.Equal(t, before, m)
}

func TestNormalize(t *testing.T) {
	pts := []geometry.Point2D{{X: 100, Y: 200}, {X: 300, Y: 250}, {X: 120, Y: 900}, {X: 640, Y: 480}}
	orig := clonePoints(pts)
	tr := Normalize(pts)

	c := geometry.Centroid(pts)
	assert.InDelta(t, 0, c.X, 1e-12)
	assert.InDelta(t, 0, c.Y, 1e-12)

	var dist float64
	for i, p := range pts {
		dist += p.Norm()
		q := tr.Apply(orig[i])
		assert.InDelta(t, p.X, q.X, 1e-12)
		assert.InDelta(t, p.Y, q.Y, 1e-12)
	}
	assert.InDelta(t, math.Sqrt2, dist/float64(len(pts)), 1e-12)
}

func TestNormalizeCoincidentPoints(t *testing.T) {
	pts := []geometry.Point2D{{X: 5, Y: 5}, {X: 5, Y: 5}}
	tr := Normalize(pts)
	assert.Equal(t, geometry.Similarity(1, -5, -5), tr)
	assert.Equal(t, geometry.Point2D{}, pts[0])
}
