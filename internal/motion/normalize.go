package motion

import (
	"math"

	"globalmotion/pkg/geometry"
)

// Normalize conditions a point set in place for a direct linear fit: the
// centroid moves to the origin and the mean distance from the origin becomes
// √2. It returns the similarity that was applied. A set whose points all
// coincide is only translated.
func Normalize(points []geometry.Point2D) geometry.Matrix3 {
	if len(points) == 0 {
		return geometry.Identity3()
	}
	mean := geometry.Centroid(points)

	var dist float64
	for i := range points {
		points[i] = points[i].Sub(mean)
		dist += points[i].Norm()
	}
	dist /= float64(len(points))

	scale := 1.0
	if dist != 0 {
		scale = math.Sqrt2 / dist
	}
	for i := range points {
		points[i] = points[i].Scale(scale)
	}
	return geometry.Similarity(scale, -scale*mean.X, -scale*mean.Y)
}

// denormalize maps a model fitted between normalized sets back to the
// original coordinates: H = T2⁻¹ · Hn · T1.
func denormalize(h, t1, t2 geometry.Matrix3) geometry.Matrix3 {
	return t2.InverseSimilarity().Mul(h.Mul(t1))
}
