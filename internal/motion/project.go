package motion

import (
	"globalmotion/pkg/geometry"
)

// RoundPow2Signed divides v by 2^n rounding to nearest, ties away from zero.
func RoundPow2Signed(v int64, n uint) int64 {
	if n == 0 {
		return v
	}
	half := int64(1) << (n - 1)
	if v < 0 {
		return -((-v + half) >> n)
	}
	return (v + half) >> n
}

// ProjectPoint maps pixel (x, y) of the current plane to a position in the
// reference plane, in 1/64 pel. subX and subY select chroma subsampling on
// each axis; the model is always expressed at luma resolution.
//
// An invalid family tag maps every point onto itself.
func (m *Model) ProjectPoint(x, y int, subX, subY bool) (int, int) {
	switch m.Type {
	case Translation:
		return m.projectTranslation(int64(x), int64(y), subX, subY)
	case RotZoom:
		p := &m.Params
		a, b := int64(p[2]), int64(p[3])
		return m.projectLinear(int64(x), int64(y), a, b, -b, a, subX, subY)
	case Affine:
		p := &m.Params
		return m.projectLinear(int64(x), int64(y), int64(p[2]), int64(p[3]), int64(p[4]), int64(p[5]), subX, subY)
	case Homography:
		return m.projectHomography(int64(x), int64(y), subX, subY)
	default:
		return x << PixelPrecBits, y << PixelPrecBits
	}
}

// Project maps a batch of points. See ProjectPoint.
func (m *Model) Project(points []geometry.PointInt, subX, subY bool) []geometry.PointInt {
	out := make([]geometry.PointInt, len(points))
	for i, p := range points {
		out[i].X, out[i].Y = m.ProjectPoint(p.X, p.Y, subX, subY)
	}
	return out
}

func (m *Model) projectTranslation(x, y int64, subX, subY bool) (int, int) {
	tx, ty := int64(m.Params[0]), int64(m.Params[1])
	var px, py int64
	if subX {
		px = RoundPow2Signed(x<<(ModelPrecBits+1)+tx, DiffPrecBits+1)
	} else {
		px = RoundPow2Signed(x<<ModelPrecBits+tx, DiffPrecBits)
	}
	if subY {
		py = RoundPow2Signed(y<<(ModelPrecBits+1)+ty, DiffPrecBits+1)
	} else {
		py = RoundPow2Signed(y<<ModelPrecBits+ty, DiffPrecBits)
	}
	return int(px), int(py)
}

// projectLinear evaluates x' = a·x + b·y + tx, y' = c·x + d·y + ty. On a
// subsampled axis the chroma sample maps to luma 2x+½ and the result maps
// back through (x'-½)/2, folded into one rounding shift.
func (m *Model) projectLinear(x, y, a, b, c, d int64, subX, subY bool) (int, int) {
	tx, ty := int64(m.Params[0]), int64(m.Params[1])
	const one = int64(1) << ModelPrecBits
	if subX != subY {
		return projectLinearMixed(x, y, a, b, c, d, tx, ty, subX, subY)
	}
	var px, py int64
	if subX {
		px = RoundPow2Signed(a*2*x+b*2*y+tx+(a+b-one)/2, DiffPrecBits+1)
	} else {
		px = RoundPow2Signed(a*x+b*y+tx, DiffPrecBits)
	}
	if subY {
		py = RoundPow2Signed(c*2*x+d*2*y+ty+(c+d-one)/2, DiffPrecBits+1)
	} else {
		py = RoundPow2Signed(c*x+d*y+ty, DiffPrecBits)
	}
	return int(px), int(py)
}

// projectLinearMixed handles planes subsampled on one axis only (4:2:2,
// 4:4:0). Each input axis is taken to luma at twice its resolution, 4x+1
// when subsampled and 2x otherwise, so the sums carry one extra bit.
func projectLinearMixed(x, y, a, b, c, d, tx, ty int64, subX, subY bool) (int, int) {
	lx, ly := 2*x, 2*y
	if subX {
		lx = 4*x + 1
	}
	if subY {
		ly = 4*y + 1
	}
	return int(linearAxis(a*lx+b*ly+2*tx, subX)), int(linearAxis(c*lx+d*ly+2*ty, subY))
}

// linearAxis reduces a doubled model-precision luma position to 1/64 pel,
// mapping back to chroma as (v-½)/2 on a subsampled axis. The rounding
// matches projectHomography with a unit denominator.
func linearAxis(v int64, sub bool) int64 {
	p := RoundPow2Signed(v, DiffPrecBits+1)
	if sub {
		p = (p - PixelPrecShifts/2) / 2
	}
	return p
}

func (m *Model) projectHomography(x, y int64, subX, subY bool) (int, int) {
	p := &m.Params
	if subX {
		x = 4*x + 1
	} else {
		x = 2 * x
	}
	if subY {
		y = 4*y + 1
	} else {
		y = 2 * y
	}

	const numShift = PixelPrecBits + PerspectivePrecBits - ModelPrecBits
	z := int64(p[6])*x + int64(p[7])*y + int64(1)<<(PerspectivePrecBits+1)
	if z == 0 {
		// Points on the line at infinity; keep the projection total.
		z = 1
	}
	xp := (int64(p[2])*x + int64(p[3])*y + 2*int64(p[0])) << numShift
	yp := (int64(p[4])*x + int64(p[5])*y + 2*int64(p[1])) << numShift

	xp = divRound(xp, z)
	yp = divRound(yp, z)

	const half = int64(1) << (PixelPrecBits - 1)
	if subX {
		xp = (xp - half) / 2
	}
	if subY {
		yp = (yp - half) / 2
	}
	return int(xp), int(yp)
}

// divRound divides by z, adding half of z toward the sign of num first.
func divRound(num, z int64) int64 {
	if num > 0 {
		return (num + z/2) / z
	}
	return (num - z/2) / z
}
