package warp

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"globalmotion/internal/motion"
	"globalmotion/pkg/geometry"
)

// Scale factors carry ScaleBits fractional bits; ScaleUnity means the
// reference has the same size as the current frame.
const (
	ScaleBits  = 4
	ScaleUnity = 1 << ScaleBits
)

// Params locates a prediction block.
type Params struct {
	// Region is the block in current-frame coordinates of the plane being
	// predicted.
	Region geometry.RectInt
	// SubX and SubY mark chroma subsampling on each axis.
	SubX, SubY bool
	// XScale and YScale map projected positions onto the reference when its
	// size differs. Zero is treated as ScaleUnity.
	XScale, YScale int
}

func (p Params) scales() (int64, int64) {
	xs, ys := int64(p.XScale), int64(p.YScale)
	if xs == 0 {
		xs = ScaleUnity
	}
	if ys == 0 {
		ys = ScaleUnity
	}
	return xs, ys
}

// source returns the 1/64 pel reference position predicting pixel (x, y).
func source(m *motion.Model, x, y int, p *Params, xs, ys int64) (int, int) {
	px, py := m.ProjectPoint(x, y, p.SubX, p.SubY)
	return int(motion.RoundPow2Signed(int64(px)*xs, ScaleBits)),
		int(motion.RoundPow2Signed(int64(py)*ys, ScaleBits))
}

func checkWarp[T Sample](m *motion.Model, ref, out *Plane[T], p *Params) error {
	if !m.Type.Valid() {
		return fmt.Errorf("warp %s: %w", m.Type, motion.ErrInvalidModelType)
	}
	if err := ref.Validate(); err != nil {
		return fmt.Errorf("reference: %w", err)
	}
	if err := out.Validate(); err != nil {
		return fmt.Errorf("prediction: %w", err)
	}
	if ref.BitDepth != out.BitDepth {
		return fmt.Errorf("bit depth %d vs %d: %w", ref.BitDepth, out.BitDepth, ErrInvalidPlane)
	}
	if p.Region.Empty() || p.Region.Width > out.Width || p.Region.Height > out.Height {
		return fmt.Errorf("region %+v into %dx%d prediction: %w", p.Region, out.Width, out.Height, ErrInvalidRegion)
	}
	if p.XScale < 0 || p.YScale < 0 {
		return fmt.Errorf("negative scale %d/%d: %w", p.XScale, p.YScale, ErrInvalidRegion)
	}
	return nil
}

// WarpPlane fills pred with the reference resampled through m. Pixel (x, y)
// of p.Region is written to pred at (x-Region.X, y-Region.Y).
func WarpPlane[T Sample](m *motion.Model, ref, pred *Plane[T], p Params) error {
	if err := checkWarp(m, ref, pred, &p); err != nil {
		return err
	}
	warpRows(m, ref, pred, &p, p.Region.Y, p.Region.Y+p.Region.Height)
	return nil
}

// WarpPlaneParallel is WarpPlane split into horizontal bands across workers
// goroutines. Bands write disjoint rows of pred, so the output is identical
// to WarpPlane. workers <= 0 uses GOMAXPROCS.
func WarpPlaneParallel[T Sample](m *motion.Model, ref, pred *Plane[T], p Params, workers int) error {
	if err := checkWarp(m, ref, pred, &p); err != nil {
		return err
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = min(workers, p.Region.Height)
	band := (p.Region.Height + workers - 1) / workers

	var wg sync.WaitGroup
	for y0 := p.Region.Y; y0 < p.Region.Y+p.Region.Height; y0 += band {
		y1 := min(y0+band, p.Region.Y+p.Region.Height)
		wg.Add(1)
		go func(y0, y1 int) {
			defer wg.Done()
			warpRows(m, ref, pred, &p, y0, y1)
		}(y0, y1)
	}
	wg.Wait()
	return nil
}

func warpRows[T Sample](m *motion.Model, ref, pred *Plane[T], p *Params, y0, y1 int) {
	xs, ys := p.scales()
	r := p.Region
	for y := y0; y < y1; y++ {
		row := pred.Pix[(y-r.Y)*pred.Stride:]
		for x := r.X; x < r.X+r.Width; x++ {
			sx, sy := source(m, x, y, p, xs, ys)
			row[x-r.X] = Interpolate(ref, sx, sy)
		}
	}
}

// ErrorAdvantage compares the warped prediction of p.Region against cur with
// a zero-motion copy of the same region from ref. It returns the ratio of the
// two sums of squared errors; below 1 the model beats no motion. When both
// sums are zero the ratio is 1, and when only the zero-motion sum is zero it
// is +Inf.
func ErrorAdvantage[T Sample](m *motion.Model, ref, cur *Plane[T], p Params) (float64, error) {
	if err := checkWarp(m, ref, cur, &p); err != nil {
		return 0, err
	}
	r := p.Region
	if !r.Within(cur.Width, cur.Height) || !r.Within(ref.Width, ref.Height) {
		return 0, fmt.Errorf("region %+v outside %dx%d / %dx%d: %w",
			r, cur.Width, cur.Height, ref.Width, ref.Height, ErrInvalidRegion)
	}

	xs, ys := p.scales()
	var warpSSE, zeroSSE int64
	for y := r.Y; y < r.Y+r.Height; y++ {
		for x := r.X; x < r.X+r.Width; x++ {
			sx, sy := source(m, x, y, &p, xs, ys)
			want := int64(cur.At(x, y))
			d := want - int64(Interpolate(ref, sx, sy))
			warpSSE += d * d
			d = want - int64(ref.At(x, y))
			zeroSSE += d * d
		}
	}

	switch {
	case zeroSSE != 0:
		return float64(warpSSE) / float64(zeroSSE), nil
	case warpSSE == 0:
		return 1, nil
	default:
		return math.Inf(1), nil
	}
}
