// Package warp resamples a reference plane through a quantized global motion
// model to build prediction blocks, and scores how much a model helps.
package warp

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPlane is returned for a plane whose geometry or bit depth is
	// inconsistent with its buffer.
	ErrInvalidPlane = errors.New("warp: invalid plane")

	// ErrInvalidRegion is returned when a destination region does not fit the
	// planes it is applied to.
	ErrInvalidRegion = errors.New("warp: invalid region")
)

// Sample is the storage type of one pixel: 8-bit content in uint8, 10- and
// 12-bit content widened to uint16.
type Sample interface {
	~uint8 | ~uint16
}

// Plane is a single raster channel.
type Plane[T Sample] struct {
	Pix      []T
	Stride   int
	Width    int
	Height   int
	BitDepth int // 8, 10 or 12
}

// NewPlane allocates a zeroed width×height plane with Stride == Width.
func NewPlane[T Sample](width, height, bitDepth int) (*Plane[T], error) {
	p := &Plane[T]{Stride: width, Width: width, Height: height, BitDepth: bitDepth}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("new plane %dx%d: %w", width, height, ErrInvalidPlane)
	}
	p.Pix = make([]T, width*height)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks dimensions, stride, buffer length and bit depth.
func (p *Plane[T]) Validate() error {
	if p == nil {
		return fmt.Errorf("nil plane: %w", ErrInvalidPlane)
	}
	if p.Width <= 0 || p.Height <= 0 || p.Stride < p.Width {
		return fmt.Errorf("plane %dx%d stride %d: %w", p.Width, p.Height, p.Stride, ErrInvalidPlane)
	}
	if need := (p.Height-1)*p.Stride + p.Width; len(p.Pix) < need {
		return fmt.Errorf("plane buffer has %d samples, need %d: %w", len(p.Pix), need, ErrInvalidPlane)
	}
	wide := storageBits[T]() == 16
	switch {
	case p.BitDepth == 8:
	case wide && (p.BitDepth == 10 || p.BitDepth == 12):
	default:
		return fmt.Errorf("bit depth %d for %d-bit storage: %w", p.BitDepth, storageBits[T](), ErrInvalidPlane)
	}
	return nil
}

// At returns the sample at column x, row y.
func (p *Plane[T]) At(x, y int) T {
	return p.Pix[y*p.Stride+x]
}

// Set stores a sample at column x, row y.
func (p *Plane[T]) Set(x, y int, v T) {
	p.Pix[y*p.Stride+x] = v
}

// MaxValue returns the largest sample value for the plane's bit depth.
func (p *Plane[T]) MaxValue() int32 {
	return int32(1)<<p.BitDepth - 1
}

func storageBits[T Sample]() int {
	if ^T(0) > 255 {
		return 16
	}
	return 8
}

// clip clamps v into [0, maxV].
func clip[T Sample](v int64, maxV int32) T {
	if v < 0 {
		return 0
	}
	if v > int64(maxV) {
		return T(maxV)
	}
	return T(v)
}
