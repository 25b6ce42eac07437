package geometry

import (
	"math"
	"sort"
)

// ConvexHull returns the convex hull of points in counter-clockwise order,
// starting from the lowest-leftmost point. The input is not modified.
func ConvexHull(points []Point2D) []Point2D {
	if len(points) < 3 {
		return append([]Point2D(nil), points...)
	}

	pts := append([]Point2D(nil), points...)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].Y != pts[j].Y {
			return pts[i].Y < pts[j].Y
		}
		return pts[i].X < pts[j].X
	})
	pivot := pts[0]
	rest := pts[1:]

	// Sort by polar angle around the pivot, nearest first on ties
	sort.SliceStable(rest, func(i, j int) bool {
		cross := crossProduct(pivot, rest[i], rest[j])
		if cross != 0 {
			return cross > 0
		}
		return distSq(pivot, rest[i]) < distSq(pivot, rest[j])
	})

	hull := []Point2D{pivot}
	for _, p := range rest {
		for len(hull) > 1 && crossProduct(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull
}

// PolygonArea returns the unsigned area of a simple polygon (shoelace
// formula).
func PolygonArea(polygon []Point2D) float64 {
	if len(polygon) < 3 {
		return 0
	}
	var sum float64
	for i, p := range polygon {
		q := polygon[(i+1)%len(polygon)]
		sum += p.X*q.Y - q.X*p.Y
	}
	return math.Abs(sum) / 2
}

// Coverage returns the fraction of a w×h frame spanned by the convex hull of
// points. Correspondences clustered in a small area constrain the higher
// order models poorly.
func Coverage(points []Point2D, w, h int) float64 {
	if w <= 0 || h <= 0 {
		return 0
	}
	return PolygonArea(ConvexHull(points)) / float64(w*h)
}

// crossProduct computes the cross product of vectors OA and OB.
func crossProduct(o, a, b Point2D) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

// distSq computes the squared distance between two points.
func distSq(a, b Point2D) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	return dx*dx + dy*dy
}
