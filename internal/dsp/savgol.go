package dsp

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// SavitzkyGolay smooths a sequence by fitting a local polynomial in a sliding
// window. Near the ends, where the window does not fit, the polynomial fitted
// to the first or last full window is evaluated instead.
type SavitzkyGolay struct {
	window int
	coeffs []float64  // center-point weights for interior samples
	edge   *mat.Dense // window×window projection onto the fitted polynomial
}

// NewSavitzkyGolay precomputes the filter for an odd window and a polynomial
// order smaller than the window.
func NewSavitzkyGolay(window, order int) (*SavitzkyGolay, error) {
	if window%2 == 0 || window <= order || order < 0 {
		return nil, fmt.Errorf("%w: window=%d order=%d", ErrInvalidWindow, window, order)
	}
	half := window / 2

	centered := vandermonde(window, order, -float64(half))
	pinv, err := pseudoInverse(centered)
	if err != nil {
		return nil, err
	}

	anchored := vandermonde(window, order, 0)
	anchoredPinv, err := pseudoInverse(anchored)
	if err != nil {
		return nil, err
	}
	var edge mat.Dense
	edge.Mul(anchored, anchoredPinv)

	return &SavitzkyGolay{
		window: window,
		coeffs: mat.Row(nil, 0, pinv),
		edge:   &edge,
	}, nil
}

// Apply returns the smoothed sequence. Inputs shorter than the window are
// returned as a copy.
func (s *SavitzkyGolay) Apply(x []float64) []float64 {
	n := len(x)
	if n < s.window {
		return append([]float64(nil), x...)
	}
	half := s.window / 2
	y := make([]float64, n)

	for i := half; i < n-half; i++ {
		var acc float64
		for j, c := range s.coeffs {
			acc += c * x[i-half+j]
		}
		y[i] = acc
	}

	head := s.fit(x[:s.window])
	copy(y[:half], head[:half])
	tail := s.fit(x[n-s.window:])
	copy(y[n-half:], tail[s.window-half:])

	return y
}

func (s *SavitzkyGolay) fit(segment []float64) []float64 {
	var out mat.VecDense
	out.MulVec(s.edge, mat.NewVecDense(len(segment), append([]float64(nil), segment...)))
	return mat.Col(nil, 0, &out)
}

// vandermonde builds rows [1, t, t², …] for t = start, start+1, ….
func vandermonde(rows, order int, start float64) *mat.Dense {
	m := mat.NewDense(rows, order+1, nil)
	for i := 0; i < rows; i++ {
		t := start + float64(i)
		v := 1.0
		for j := 0; j <= order; j++ {
			m.Set(i, j, v)
			v *= t
		}
	}
	return m
}

// pseudoInverse returns (AᵀA)⁻¹Aᵀ for a full column rank A.
func pseudoInverse(a *mat.Dense) (*mat.Dense, error) {
	var ata mat.Dense
	ata.Mul(a.T(), a)

	var inv mat.Dense
	if err := inv.Inverse(&ata); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidWindow, err)
	}

	var p mat.Dense
	p.Mul(&inv, a.T())
	return &p, nil
}
