package warp

import (
	"globalmotion/internal/motion"
)

const (
	precBits   = motion.PixelPrecBits
	precShifts = motion.PixelPrecShifts
)

// Interpolate returns the reference sample at subpel position (x, y), both in
// 1/64 pel. The interpolator is picked by how much of the reference surrounds
// the position:
//
//  1. outside the plane on both axes: the nearest corner sample
//  2. outside on one axis: 2-tap linear along the edge row or column
//  3. at least FilterTaps/2 pixels of margin: separable 6-tap filter
//  4. at least one pixel of margin: separable 4-tap cubic
//  5. otherwise: bilinear
//
// Neighbours past the last row or column are clamped to it, so no position
// reads outside the plane.
func Interpolate[T Sample](ref *Plane[T], x, y int) T {
	w, h := ref.Width, ref.Height
	ix, iy := x>>precBits, y>>precBits
	sx, sy := int64(x-ix<<precBits), int64(y-iy<<precBits)
	maxV := ref.MaxValue()

	switch {
	case ix < 0 && iy < 0:
		return ref.At(0, 0)
	case ix < 0 && iy > h-1:
		return ref.At(0, h-1)
	case ix > w-1 && iy < 0:
		return ref.At(w-1, 0)
	case ix > w-1 && iy > h-1:
		return ref.At(w-1, h-1)
	case ix < 0:
		return lerp(ref.At(0, iy), ref.At(0, min(iy+1, h-1)), sy, maxV)
	case iy < 0:
		return lerp(ref.At(ix, 0), ref.At(min(ix+1, w-1), 0), sx, maxV)
	case ix > w-1:
		return lerp(ref.At(w-1, iy), ref.At(w-1, min(iy+1, h-1)), sy, maxV)
	case iy > h-1:
		return lerp(ref.At(ix, h-1), ref.At(min(ix+1, w-1), h-1), sx, maxV)
	case ix >= FilterTaps/2-1 && iy >= FilterTaps/2-1 && ix < w-FilterTaps/2 && iy < h-FilterTaps/2:
		return ntap(ref, ix, iy, sx, sy, maxV)
	case ix >= 1 && iy >= 1 && ix < w-2 && iy < h-2:
		return cubic(ref, ix, iy, sx, sy, maxV)
	default:
		return bilinear(ref, ix, iy, sx, sy, maxV)
	}
}

func lerp[T Sample](a, b T, s int64, maxV int32) T {
	v := int64(a)*(precShifts-s) + int64(b)*s
	return clip[T](motion.RoundPow2Signed(v, precBits), maxV)
}

// ntap filters columns ix-2..ix+3 vertically, then the six results
// horizontally, rounding after each pass.
func ntap[T Sample](ref *Plane[T], ix, iy int, sx, sy int64, maxV int32) T {
	var col [FilterTaps]int64
	vk := &filterTable[sy]
	top := iy - FilterTaps/2 + 1
	for k := range col {
		x := ix + k - FilterTaps/2 + 1
		var sum int64
		for i, tap := range vk {
			sum += int64(ref.At(x, top+i)) * int64(tap)
		}
		col[k] = motion.RoundPow2Signed(sum, FilterBits)
	}

	var sum int64
	for k, tap := range &filterTable[sx] {
		sum += col[k] * int64(tap)
	}
	return clip[T](motion.RoundPow2Signed(sum, FilterBits), maxV)
}

// cubic applies a Catmull-Rom kernel over columns ix-1..ix+2 and rows
// iy-1..iy+2, vertical pass first.
func cubic[T Sample](ref *Plane[T], ix, iy int, sx, sy int64, maxV int32) T {
	var col [4]int64
	for k := range col {
		x := ix + k - 1
		col[k] = motion.RoundPow2Signed(cubicTap(
			int64(ref.At(x, iy-1)), int64(ref.At(x, iy)),
			int64(ref.At(x, iy+1)), int64(ref.At(x, iy+2)), sy), FilterBits)
	}
	v := cubicTap(col[0], col[1], col[2], col[3], sx)
	return clip[T](motion.RoundPow2Signed(v, FilterBits), maxV)
}

// cubicTap interpolates between p0 and p1 at phase s, scaled by 1<<FilterBits.
func cubicTap(pm1, p0, p1, p2, s int64) int64 {
	if s == 0 {
		return p0 << FilterBits
	}
	v1 := s * s * s * (3*(p0-p1) + p2 - pm1)
	v2 := s * s * (2*pm1 - 5*p0 + 4*p1 - p2)
	v3 := s * (p1 - pm1)
	v4 := 2 * p0
	return motion.RoundPow2Signed(
		v4<<(3*precBits)+v3<<(2*precBits)+v2<<precBits+v1,
		3*precBits+1-FilterBits)
}

func bilinear[T Sample](ref *Plane[T], ix, iy int, sx, sy int64, maxV int32) T {
	x1 := min(ix+1, ref.Width-1)
	y1 := min(iy+1, ref.Height-1)
	v := int64(ref.At(ix, iy))*(precShifts-sy)*(precShifts-sx) +
		int64(ref.At(x1, iy))*(precShifts-sy)*sx +
		int64(ref.At(ix, y1))*sy*(precShifts-sx) +
		int64(ref.At(x1, y1))*sy*sx
	return clip[T](motion.RoundPow2Signed(v, 2*precBits), maxV)
}
