// Package cvref renders reference predictions with OpenCV so the fixed-point
// warp can be checked against an independent floating-point implementation.
package cvref

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/mat"

	"globalmotion/internal/motion"
	"globalmotion/internal/warp"
	"globalmotion/pkg/geometry"
)

// ErrNotInvertible is returned for models with a singular 3x3 matrix.
var ErrNotInvertible = errors.New("cvref: model is not invertible")

// planeToMat copies an 8-bit plane into a single-channel Mat.
func planeToMat(p *warp.Plane[uint8]) gocv.Mat {
	m := gocv.NewMatWithSize(p.Height, p.Width, gocv.MatTypeCV8U)
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			m.SetUCharAt(y, x, p.At(x, y))
		}
	}
	return m
}

func matToPlane(m gocv.Mat) (*warp.Plane[uint8], error) {
	p, err := warp.NewPlane[uint8](m.Cols(), m.Rows(), 8)
	if err != nil {
		return nil, err
	}
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			p.Set(x, y, m.GetUCharAt(y, x))
		}
	}
	return p, nil
}

// forwardMatrix returns the map from reference positions to positions in the
// predicted block. The model maps block pixels into the reference, so this is
// the inverse of model · translate(region origin).
func forwardMatrix(f motion.FloatModel, region geometry.RectInt) (*mat.Dense, error) {
	shift := geometry.Matrix3{1, 0, float64(region.X), 0, 1, float64(region.Y), 0, 0, 1}
	h := f.Matrix3().Mul(shift)

	var inv mat.Dense
	if err := inv.Inverse(mat.NewDense(3, 3, h[:])); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", f.Type, ErrNotInvertible, err)
	}
	return &inv, nil
}

// Warp predicts region of an 8-bit luma plane from ref through f using
// OpenCV bilinear interpolation with replicated borders. Only unit scale and
// unsubsampled planes are supported.
func Warp(f motion.FloatModel, ref *warp.Plane[uint8], region geometry.RectInt) (*warp.Plane[uint8], error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	if region.Empty() {
		return nil, fmt.Errorf("region %+v: %w", region, warp.ErrInvalidRegion)
	}
	inv, err := forwardMatrix(f, region)
	if err != nil {
		return nil, err
	}

	src := planeToMat(ref)
	defer src.Close()

	transformMat := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV64F)
	defer transformMat.Close()
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			transformMat.SetDoubleAt(r, c, inv.At(r, c))
		}
	}

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.WarpPerspectiveWithParams(src, &dst, transformMat, image.Pt(region.Width, region.Height),
		gocv.InterpolationLinear, gocv.BorderReplicate, color.RGBA{})

	return matToPlane(dst)
}

// PSNR returns the peak signal-to-noise ratio of b against a in dB, using the
// peak value of a's bit depth. Identical planes give +Inf.
func PSNR[T warp.Sample](a, b *warp.Plane[T]) (float64, error) {
	if err := a.Validate(); err != nil {
		return 0, err
	}
	if err := b.Validate(); err != nil {
		return 0, err
	}
	if a.Width != b.Width || a.Height != b.Height || a.BitDepth != b.BitDepth {
		return 0, fmt.Errorf("psnr %dx%d@%d vs %dx%d@%d: %w",
			a.Width, a.Height, a.BitDepth, b.Width, b.Height, b.BitDepth, warp.ErrInvalidPlane)
	}

	var sse float64
	for y := 0; y < a.Height; y++ {
		for x := 0; x < a.Width; x++ {
			d := float64(a.At(x, y)) - float64(b.At(x, y))
			sse += d * d
		}
	}
	if sse == 0 {
		return math.Inf(1), nil
	}
	peak := float64(a.MaxValue())
	mse := sse / float64(a.Width*a.Height)
	return 10 * math.Log10(peak*peak/mse), nil
}
