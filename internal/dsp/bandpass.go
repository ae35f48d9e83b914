package dsp

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// MinFilterLength is the padding forward-backward filtering of a bandpass of
// the given order needs. Inputs of this length or shorter pass through.
func MinFilterLength(order int) int {
	return 3 * (2*order + 1)
}

// Bandpass is a digital Butterworth bandpass applied with zero phase.
// It is immutable after construction and safe for concurrent use.
type Bandpass struct {
	b, a []float64
	zi   []float64 // steady-state initial conditions for a unit step
	pad  int
}

// NewBandpass designs a Butterworth bandpass of the given order with cutoffs in Hz.
func NewBandpass(lowCut, highCut, sampleRate float64, order int) (*Bandpass, error) {
	if order < 1 {
		return nil, fmt.Errorf("%w: order %d", ErrInvalidOrder, order)
	}
	nyquist := sampleRate / 2
	if sampleRate <= 0 || lowCut <= 0 || highCut <= lowCut || highCut >= nyquist {
		return nil, fmt.Errorf("%w: low=%g high=%g fs=%g", ErrInvalidBand, lowCut, highCut, sampleRate)
	}

	b, a := butterBandpass(lowCut/nyquist, highCut/nyquist, order)
	zi, err := steadyState(b, a)
	if err != nil {
		return nil, err
	}

	return &Bandpass{b: b, a: a, zi: zi, pad: MinFilterLength(order)}, nil
}

// Coefficients returns copies of the numerator and denominator polynomials.
func (f *Bandpass) Coefficients() (b, a []float64) {
	return append([]float64(nil), f.b...), append([]float64(nil), f.a...)
}

// Apply filters x forward and backward so peak timing is not shifted.
// The result has the same length as x; short inputs are returned as a copy.
func (f *Bandpass) Apply(x []float64) []float64 {
	if len(x) <= f.pad {
		return append([]float64(nil), x...)
	}

	ext := oddExtend(x, f.pad)

	y := f.lfilter(ext, ext[0])
	reverse(y)
	y = f.lfilter(y, y[0])
	reverse(y)

	return y[f.pad : len(y)-f.pad]
}

// lfilter runs the transposed direct form II recursion with the state primed
// for a constant input of value x0.
func (f *Bandpass) lfilter(x []float64, x0 float64) []float64 {
	n := len(f.a)
	z := make([]float64, n-1)
	for i, v := range f.zi {
		z[i] = v * x0
	}

	y := make([]float64, len(x))
	for i, xi := range x {
		yi := f.b[0]*xi + z[0]
		for j := 0; j < n-2; j++ {
			z[j] = f.b[j+1]*xi + z[j+1] - f.a[j+1]*yi
		}
		z[n-2] = f.b[n-1]*xi - f.a[n-1]*yi
		y[i] = yi
	}
	return y
}

// butterBandpass designs the filter in zero/pole/gain form through the analog
// prototype, the lowpass-to-bandpass transform and the bilinear transform.
// Cutoffs are normalized to the Nyquist frequency.
func butterBandpass(low, high float64, order int) (b, a []float64) {
	const fs2 = 4.0 // 2*fs with fs=2 for Nyquist-normalized frequencies

	wl := fs2 * math.Tan(math.Pi*low/2)
	wh := fs2 * math.Tan(math.Pi*high/2)
	bw := wh - wl
	w0 := math.Sqrt(wl * wh)

	poles := make([]complex128, 0, 2*order)
	for m := -order + 1; m < order; m += 2 {
		p := -cmplx.Exp(complex(0, math.Pi*float64(m)/float64(2*order)))
		pl := p * complex(bw/2, 0)
		root := cmplx.Sqrt(pl*pl - complex(w0*w0, 0))
		poles = append(poles, pl+root, pl-root)
	}

	// order zeros at s=0 map to z=1, the remaining order zeros at infinity to z=-1.
	zeros := make([]complex128, 0, 2*order)
	for i := 0; i < order; i++ {
		zeros = append(zeros, 1, -1)
	}

	gain := complex(math.Pow(bw, float64(order))*math.Pow(fs2, float64(order)), 0)
	digitalPoles := make([]complex128, len(poles))
	for i, p := range poles {
		gain /= complex(fs2, 0) - p
		digitalPoles[i] = (complex(fs2, 0) + p) / (complex(fs2, 0) - p)
	}
	k := real(gain)

	bc := poly(zeros)
	ac := poly(digitalPoles)
	b = make([]float64, len(bc))
	a = make([]float64, len(ac))
	for i := range bc {
		b[i] = k * real(bc[i])
		a[i] = real(ac[i])
	}
	return b, a
}

// poly expands the monic polynomial with the given roots, highest power first.
func poly(roots []complex128) []complex128 {
	c := []complex128{1}
	for _, r := range roots {
		next := make([]complex128, len(c)+1)
		for i, v := range c {
			next[i] += v
			next[i+1] -= v * r
		}
		c = next
	}
	return c
}

// steadyState solves (I - Aᵀ)·zi = b[1:] - a[1:]·b[0], the filter state after
// an infinitely long unit step.
func steadyState(b, a []float64) ([]float64, error) {
	n := len(a) - 1
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, 0, a[i+1])
		m.Set(i, i, m.At(i, i)+1)
		if i > 0 {
			m.Set(i-1, i, -1)
		}
	}

	rhs := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		rhs.SetVec(i, b[i+1]-a[i+1]*b[0])
	}

	var zi mat.VecDense
	if err := zi.SolveVec(m, rhs); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnstableFilter, err)
	}
	return mat.Col(nil, 0, &zi), nil
}

// oddExtend reflects pad samples about each end point.
func oddExtend(x []float64, pad int) []float64 {
	n := len(x)
	ext := make([]float64, 0, n+2*pad)
	for i := pad; i >= 1; i-- {
		ext = append(ext, 2*x[0]-x[i])
	}
	ext = append(ext, x...)
	for i := n - 2; i >= n-1-pad; i-- {
		ext = append(ext, 2*x[n-1]-x[i])
	}
	return ext
}

func reverse(x []float64) {
	for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
		x[i], x[j] = x[j], x[i]
	}
}
