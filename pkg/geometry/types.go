// Package geometry provides basic geometric types shared by the motion fitters
// and the warp engine.
package geometry

import (
	"math"
)

// Point2D represents a 2D point with floating-point coordinates.
type Point2D struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Distance returns the Euclidean distance to another point.
func (p Point2D) Distance(other Point2D) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Norm returns the distance from the origin.
func (p Point2D) Norm() float64 {
	return math.Sqrt(p.X*p.X + p.Y*p.Y)
}

// Add returns the sum of two points.
func (p Point2D) Add(other Point2D) Point2D {
	return Point2D{X: p.X + other.X, Y: p.Y + other.Y}
}

// Sub returns the difference of two points.
func (p Point2D) Sub(other Point2D) Point2D {
	return Point2D{X: p.X - other.X, Y: p.Y - other.Y}
}

// Scale returns the point scaled by a factor.
func (p Point2D) Scale(factor float64) Point2D {
	return Point2D{X: p.X * factor, Y: p.Y * factor}
}

// PointInt represents a 2D point with integer coordinates.
type PointInt struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// RectInt represents a rectangle with integer coordinates.
type RectInt struct {
	X      int `json:"x" yaml:"x"`
	Y      int `json:"y" yaml:"y"`
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Empty reports whether the rectangle covers no pixels.
func (r RectInt) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Within reports whether r lies entirely inside a w×h raster.
func (r RectInt) Within(w, h int) bool {
	return r.X >= 0 && r.Y >= 0 && r.X+r.Width <= w && r.Y+r.Height <= h
}

// Matrix3 is a 3x3 matrix in row-major order.
//
//	[0 1 2]
//	[3 4 5]
//	[6 7 8]
type Matrix3 [9]float64

// Identity3 returns the identity matrix.
func Identity3() Matrix3 {
	return Matrix3{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// Mul returns m * other.
func (m Matrix3) Mul(other Matrix3) Matrix3 {
	var out Matrix3
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			var s float64
			for k := 0; k < 3; k++ {
				s += m[r*3+k] * other[k*3+c]
			}
			out[r*3+c] = s
		}
	}
	return out
}

// Apply maps a point through the matrix with a projective divide.
// A zero denominator yields the undivided result.
func (m Matrix3) Apply(p Point2D) Point2D {
	x := m[0]*p.X + m[1]*p.Y + m[2]
	y := m[3]*p.X + m[4]*p.Y + m[5]
	z := m[6]*p.X + m[7]*p.Y + m[8]
	if z == 0 {
		return Point2D{X: x, Y: y}
	}
	return Point2D{X: x / z, Y: y / z}
}

// Similarity returns the matrix that scales uniformly by s and then
// translates by (tx, ty).
func Similarity(s, tx, ty float64) Matrix3 {
	return Matrix3{s, 0, tx, 0, s, ty, 0, 0, 1}
}

// InverseSimilarity inverts a matrix built by Similarity.
func (m Matrix3) InverseSimilarity() Matrix3 {
	is := 1.0 / m[0]
	return Matrix3{is, 0, -m[2] * is, 0, is, -m[5] * is, 0, 0, 1}
}

// Centroid computes the centroid (average position) of a set of points.
func Centroid(points []Point2D) Point2D {
	if len(points) == 0 {
		return Point2D{}
	}
	var sumX, sumY float64
	for _, p := range points {
		sumX += p.X
		sumY += p.Y
	}
	n := float64(len(points))
	return Point2D{X: sumX / n, Y: sumY / n}
}

// BoundingBox computes the axis-aligned bounding box of a set of points,
// rounded outward to whole pixels.
func BoundingBox(points []Point2D) RectInt {
	if len(points) == 0 {
		return RectInt{}
	}
	minX, minY := points[0].X, points[0].Y
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}
	x0, y0 := int(math.Floor(minX)), int(math.Floor(minY))
	return RectInt{
		X:      x0,
		Y:      y0,
		Width:  int(math.Ceil(maxX)) - x0 + 1,
		Height: int(math.Ceil(maxY)) - y0 + 1,
	}
}
