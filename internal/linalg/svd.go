package linalg

import (
	"fmt"
	"math"
)

// MaxSweeps is the number of implicit-shift QR sweeps allowed per singular
// value before SVD gives up.
const MaxSweeps = 30

// NearZero is the magnitude below which a singular value is treated as zero
// when inverting.
const NearZero = 1e-12

// Decomposition holds the factors of A = U * diag(Values) * Vᵀ.
// U is m×n with orthonormal columns, V is n×n orthogonal and every value is
// non-negative. Values are not sorted.
type Decomposition struct {
	U      *Matrix
	Values []float64
	V      *Matrix
}

// SVD factorizes an m×n matrix with m >= n. The input is not modified.
//
// The matrix is reduced to bidiagonal form by alternating Householder column
// and row reflections, each scaled by the sum of magnitudes of the vector it
// annihilates, then diagonalized by implicit-shift QR. A singular value that
// needs more than MaxSweeps sweeps fails the whole decomposition.
func SVD(a *Matrix) (*Decomposition, error) {
	m, n := a.Dims()
	if m < n {
		return nil, fmt.Errorf("svd of %dx%d needs rows >= cols: %w", m, n, ErrShape)
	}

	u := a.Clone()
	v := NewMatrix(n, n, nil)
	w := make([]float64, n)
	rv1 := make([]float64, n)
	ud, vd := u.data, v.data

	// Householder reduction to bidiagonal form.
	var g, scale, anorm float64
	var l int
	for i := 0; i < n; i++ {
		l = i + 1
		rv1[i] = scale * g
		g, scale = 0, 0
		var s float64
		if i < m {
			for k := i; k < m; k++ {
				scale += math.Abs(ud[k*n+i])
			}
			if scale != 0 {
				for k := i; k < m; k++ {
					ud[k*n+i] /= scale
					s += ud[k*n+i] * ud[k*n+i]
				}
				f := ud[i*n+i]
				g = -sign(math.Sqrt(s), f)
				h := f*g - s
				ud[i*n+i] = f - g
				for j := l; j < n; j++ {
					s = 0
					for k := i; k < m; k++ {
						s += ud[k*n+i] * ud[k*n+j]
					}
					f = s / h
					for k := i; k < m; k++ {
						ud[k*n+j] += f * ud[k*n+i]
					}
				}
				for k := i; k < m; k++ {
					ud[k*n+i] *= scale
				}
			}
		}
		w[i] = scale * g
		g, s, scale = 0, 0, 0
		if i < m && i != n-1 {
			for k := l; k < n; k++ {
				scale += math.Abs(ud[i*n+k])
			}
			if scale != 0 {
				for k := l; k < n; k++ {
					ud[i*n+k] /= scale
					s += ud[i*n+k] * ud[i*n+k]
				}
				f := ud[i*n+l]
				g = -sign(math.Sqrt(s), f)
				h := f*g - s
				ud[i*n+l] = f - g
				for k := l; k < n; k++ {
					rv1[k] = ud[i*n+k] / h
				}
				for j := l; j < m; j++ {
					s = 0
					for k := l; k < n; k++ {
						s += ud[j*n+k] * ud[i*n+k]
					}
					for k := l; k < n; k++ {
						ud[j*n+k] += s * rv1[k]
					}
				}
				for k := l; k < n; k++ {
					ud[i*n+k] *= scale
				}
			}
		}
		anorm = math.Max(anorm, math.Abs(w[i])+math.Abs(rv1[i]))
	}

	// Accumulate right-hand transformations into V.
	for i := n - 1; i >= 0; i-- {
		if i < n-1 {
			if g != 0 {
				// Double division avoids possible underflow.
				for j := l; j < n; j++ {
					vd[j*n+i] = (ud[i*n+j] / ud[i*n+l]) / g
				}
				for j := l; j < n; j++ {
					var s float64
					for k := l; k < n; k++ {
						s += ud[i*n+k] * vd[k*n+j]
					}
					for k := l; k < n; k++ {
						vd[k*n+j] += s * vd[k*n+i]
					}
				}
			}
			for j := l; j < n; j++ {
				vd[i*n+j] = 0
				vd[j*n+i] = 0
			}
		}
		vd[i*n+i] = 1
		g = rv1[i]
		l = i
	}

	// Accumulate left-hand transformations into U.
	for i := n - 1; i >= 0; i-- {
		l = i + 1
		g = w[i]
		for j := l; j < n; j++ {
			ud[i*n+j] = 0
		}
		if g != 0 {
			g = 1 / g
			for j := l; j < n; j++ {
				var s float64
				for k := l; k < m; k++ {
					s += ud[k*n+i] * ud[k*n+j]
				}
				f := (s / ud[i*n+i]) * g
				for k := i; k < m; k++ {
					ud[k*n+j] += f * ud[k*n+i]
				}
			}
			for j := i; j < m; j++ {
				ud[j*n+i] *= g
			}
		} else {
			for j := i; j < m; j++ {
				ud[j*n+i] = 0
			}
		}
		ud[i*n+i]++
	}

	// Diagonalize the bidiagonal form.
	for k := n - 1; k >= 0; k-- {
		for its := 0; ; its++ {
			split := true
			var nm int
			for l = k; l >= 0; l-- {
				nm = l - 1
				if nm < 0 || math.Abs(rv1[l])+anorm == anorm {
					split = false
					break
				}
				if math.Abs(w[nm])+anorm == anorm {
					break
				}
			}
			if split {
				// Cancel rv1[l] when w[l-1] is negligible.
				c, s := 0.0, 1.0
				for i := l; i <= k; i++ {
					f := s * rv1[i]
					rv1[i] = c * rv1[i]
					if math.Abs(f)+anorm == anorm {
						break
					}
					g := w[i]
					h := pythag(f, g)
					w[i] = h
					h = 1 / h
					c = g * h
					s = -f * h
					for j := 0; j < m; j++ {
						y, z := ud[j*n+nm], ud[j*n+i]
						ud[j*n+nm] = y*c + z*s
						ud[j*n+i] = z*c - y*s
					}
				}
			}

			z := w[k]
			if l == k {
				if z < 0 {
					w[k] = -z
					for j := 0; j < n; j++ {
						vd[j*n+k] = -vd[j*n+k]
					}
				}
				break
			}
			if its == MaxSweeps-1 {
				return nil, fmt.Errorf("singular value %d after %d sweeps: %w", k, MaxSweeps, ErrNonConvergence)
			}

			// Shift from the bottom 2x2 minor.
			x := w[l]
			nm = k - 1
			y := w[nm]
			g := rv1[nm]
			h := rv1[k]
			f := ((y-z)*(y+z) + (g-h)*(g+h)) / (2 * h * y)
			g = pythag(f, 1)
			f = ((x-z)*(x+z) + h*((y/(f+sign(g, f)))-h)) / x

			// Next QR transformation.
			c, s := 1.0, 1.0
			for j := l; j <= nm; j++ {
				i := j + 1
				g = rv1[i]
				y = w[i]
				h = s * g
				g = c * g
				z = pythag(f, h)
				rv1[j] = z
				c = f / z
				s = h / z
				f = x*c + g*s
				g = g*c - x*s
				h = y * s
				y *= c
				for jj := 0; jj < n; jj++ {
					x, z = vd[jj*n+j], vd[jj*n+i]
					vd[jj*n+j] = x*c + z*s
					vd[jj*n+i] = z*c - x*s
				}
				z = pythag(f, h)
				w[j] = z
				if z != 0 {
					z = 1 / z
					c = f * z
					s = h * z
				}
				f = c*g + s*y
				x = c*y - s*g
				for jj := 0; jj < m; jj++ {
					y, z = ud[jj*n+j], ud[jj*n+i]
					ud[jj*n+j] = y*c + z*s
					ud[jj*n+i] = z*c - y*s
				}
			}
			rv1[l] = 0
			rv1[k] = f
			w[k] = x
		}
	}

	return &Decomposition{U: u, Values: w, V: v}, nil
}

// PseudoInverse returns the n×m Moore-Penrose inverse V * diag(1/w) * Uᵀ of
// an m×n matrix. It fails with ErrSingular if any singular value is below
// NearZero in magnitude.
func PseudoInverse(a *Matrix) (*Matrix, error) {
	d, err := SVD(a)
	if err != nil {
		return nil, err
	}
	m, n := a.Dims()
	for i, sv := range d.Values {
		if math.Abs(sv) < NearZero {
			return nil, fmt.Errorf("singular value %d is %g: %w", i, sv, ErrSingular)
		}
	}

	inv := NewMatrix(n, m, nil)
	ud, vd := d.U.data, d.V.data
	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			var ans float64
			for k := 0; k < n; k++ {
				ans += vd[i*n+k] * ud[j*n+k] / d.Values[k]
			}
			inv.data[i*m+j] = ans
		}
	}
	return inv, nil
}

// Solve returns the least-squares solution of a*x = b via the pseudo-inverse.
func Solve(a *Matrix, b []float64) ([]float64, error) {
	inv, err := PseudoInverse(a)
	if err != nil {
		return nil, err
	}
	return MulVec(inv, b)
}

// sign returns |a| carrying the sign of b, with b == 0 treated as positive.
func sign(a, b float64) float64 {
	if b >= 0 {
		return math.Abs(a)
	}
	return -math.Abs(a)
}

// pythag computes sqrt(a²+b²) without destructive underflow or overflow.
func pythag(a, b float64) float64 {
	absa, absb := math.Abs(a), math.Abs(b)
	if absa > absb {
		r := absb / absa
		return absa * math.Sqrt(1+r*r)
	}
	if absb == 0 {
		return 0
	}
	r := absa / absb
	return absb * math.Sqrt(1+r*r)
}
