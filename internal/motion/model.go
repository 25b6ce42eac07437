// Package motion fits global motion models to point correspondences and
// freezes them into the fixed-point layout carried in the bitstream.
//
// Coefficients live in an 8-slot array populated by family:
//
//	[0] [1]  horizontal, vertical translation        (all families)
//	[2] [3]  first row linear terms                  (RotZoom and wider)
//	[4] [5]  second row linear terms                 (Affine and wider)
//	[6] [7]  perspective terms of the bottom row     (Homography)
//
// RotZoom derives its second row from slots 2 and 3 as (-[3], [2]).
// The bottom-right homography coefficient is normalized to 1 and never stored.
package motion

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"globalmotion/pkg/geometry"
)

// Fixed-point precisions of the model and of projected coordinates.
const (
	// ModelPrecBits is the fractional precision of translation and linear terms.
	ModelPrecBits = 8
	// PerspectivePrecBits is the fractional precision of slots 6 and 7.
	PerspectivePrecBits = 12
	// PixelPrecBits is the subpel precision of projected coordinates.
	PixelPrecBits = 6
	// PixelPrecShifts is the number of subpel phases per pixel.
	PixelPrecShifts = 1 << PixelPrecBits
	// DiffPrecBits is the shift from model precision down to subpel precision.
	DiffPrecBits = ModelPrecBits - PixelPrecBits

	// MaxParams is the number of coefficient slots in a model.
	MaxParams = 8
)

// MaxCorrespondences bounds the scratch space a single fit may allocate.
const MaxCorrespondences = 1 << 18

var (
	// ErrAllocationFailure is returned when a fit would need more scratch
	// space than MaxCorrespondences allows.
	ErrAllocationFailure = errors.New("motion: scratch allocation failed")

	// ErrNumericalNonConvergence is returned when the SVD exceeds its sweep cap.
	ErrNumericalNonConvergence = errors.New("motion: numerical non-convergence")

	// ErrDegenerateFit is returned when the correspondences do not constrain
	// the model.
	ErrDegenerateFit = errors.New("motion: degenerate fit")

	// ErrInvalidModelType is returned for an unrecognized family tag.
	ErrInvalidModelType = errors.New("motion: invalid model type")

	// ErrInvalidInput is returned when source and destination point sets
	// differ in length.
	ErrInvalidInput = errors.New("motion: invalid correspondence set")
)

// TransformType tags a model family.
type TransformType int

const (
	Translation TransformType = iota // 2 DOF
	RotZoom                          // 4 DOF: uniform scale, rotation, translation
	Affine                           // 6 DOF
	Homography                       // 8 DOF
)

var transformNames = [...]string{"translation", "rotzoom", "affine", "homography"}

func (t TransformType) String() string {
	if t.Valid() {
		return transformNames[t]
	}
	return fmt.Sprintf("TransformType(%d)", int(t))
}

// Valid reports whether t names a known family.
func (t TransformType) Valid() bool {
	return t >= Translation && t <= Homography
}

// Params returns the number of populated coefficient slots.
func (t TransformType) Params() int {
	switch t {
	case Translation:
		return 2
	case RotZoom:
		return 4
	case Affine:
		return 6
	case Homography:
		return 8
	default:
		return 0
	}
}

// MinPoints returns the fewest correspondences that determine the family.
func (t TransformType) MinPoints() int {
	return t.Params() / 2
}

// ParseTransformType parses a family name as printed by String.
func ParseTransformType(s string) (TransformType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range transformNames {
		if n == name {
			return TransformType(i), nil
		}
	}
	return 0, fmt.Errorf("%q: %w", s, ErrInvalidModelType)
}

// MarshalText implements encoding.TextMarshaler.
func (t TransformType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%d: %w", int(t), ErrInvalidModelType)
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TransformType) UnmarshalText(text []byte) error {
	v, err := ParseTransformType(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// precBits returns the fractional precision of coefficient slot i.
func precBits(i int) int {
	if i >= 6 {
		return PerspectivePrecBits
	}
	return ModelPrecBits
}

// FloatModel is a fitted model before quantization.
type FloatModel struct {
	Type   TransformType
	Params [MaxParams]float64
}

// IdentityModel returns the zero-motion model of a family.
func IdentityModel(t TransformType) FloatModel {
	m := FloatModel{Type: t}
	switch t {
	case RotZoom:
		m.Params[2] = 1
	case Affine, Homography:
		m.Params[2] = 1
		m.Params[5] = 1
	}
	return m
}

// Matrix3 returns the model as a 3x3 matrix mapping (x, y, 1).
func (m FloatModel) Matrix3() geometry.Matrix3 {
	p := m.Params
	switch m.Type {
	case Translation:
		return geometry.Matrix3{1, 0, p[0], 0, 1, p[1], 0, 0, 1}
	case RotZoom:
		return geometry.Matrix3{p[2], p[3], p[0], -p[3], p[2], p[1], 0, 0, 1}
	case Affine:
		return geometry.Matrix3{p[2], p[3], p[0], p[4], p[5], p[1], 0, 0, 1}
	case Homography:
		return geometry.Matrix3{p[2], p[3], p[0], p[4], p[5], p[1], p[6], p[7], 1}
	default:
		return geometry.Identity3()
	}
}

// Apply maps a full-resolution point through the model.
func (m FloatModel) Apply(p geometry.Point2D) geometry.Point2D {
	return m.Matrix3().Apply(p)
}

// ProjectPoint maps pixel (x, y) of a plane with the given subsampling and
// returns the position in 1/64 pel, without any rounding. It is the
// real-valued counterpart of Model.ProjectPoint.
func (m FloatModel) ProjectPoint(x, y int, subX, subY bool) (float64, float64) {
	px, py := float64(x), float64(y)
	if subX {
		px = 2*px + 0.5
	}
	if subY {
		py = 2*py + 0.5
	}
	q := m.Apply(geometry.Point2D{X: px, Y: py})
	if subX {
		q.X = (q.X - 0.5) / 2
	}
	if subY {
		q.Y = (q.Y - 0.5) / 2
	}
	return q.X * PixelPrecShifts, q.Y * PixelPrecShifts
}

// Model is a quantized model. Slots beyond Type.Params() are zero.
type Model struct {
	Type   TransformType
	Params [MaxParams]int32
}

// Valid reports whether the family tag is known and unused slots are zero.
func (m *Model) Valid() bool {
	if !m.Type.Valid() {
		return false
	}
	for i := m.Type.Params(); i < MaxParams; i++ {
		if m.Params[i] != 0 {
			return false
		}
	}
	return true
}

// Dequantize converts the model back to floating point.
func (m *Model) Dequantize() FloatModel {
	f := FloatModel{Type: m.Type}
	for i := 0; i < m.Type.Params(); i++ {
		f.Params[i] = float64(m.Params[i]) / float64(int64(1)<<precBits(i))
	}
	return f
}

func (m *Model) String() string {
	n := m.Type.Params()
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = fmt.Sprintf("%d", m.Params[i])
	}
	return fmt.Sprintf("%s[%s]", m.Type, strings.Join(parts, " "))
}

// Quantize freezes a float model to fixed point: slots 0-5 at ModelPrecBits,
// slots 6-7 at PerspectivePrecBits, rounding half away from zero. Only the
// slots the family populates are written.
func Quantize(f FloatModel, t TransformType) (Model, error) {
	if !t.Valid() {
		return Model{}, fmt.Errorf("quantize %s: %w", t, ErrInvalidModelType)
	}
	m := Model{Type: t}
	for i := 0; i < t.Params(); i++ {
		v := math.Round(math.Ldexp(f.Params[i], precBits(i)))
		switch {
		case math.IsNaN(v):
			v = 0
		case v > math.MaxInt32:
			v = math.MaxInt32
		case v < math.MinInt32:
			v = math.MinInt32
		}
		m.Params[i] = int32(v)
	}
	return m, nil
}
