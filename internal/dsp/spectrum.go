package dsp

import (
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DominantFrequency returns the frequency in Hz of the largest magnitude bin in
// the positive half of the spectrum of x, DC included.
func DominantFrequency(x []float64, sampleRate float64) float64 {
	n := len(x)
	if n < 2 {
		return 0
	}

	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, x)

	best, bestMag := 0, -1.0
	for i := 0; i < n/2; i++ {
		if m := cmplx.Abs(coeffs[i]); m > bestMag {
			best, bestMag = i, m
		}
	}
	return fft.Freq(best) * sampleRate
}

// Mean is the arithmetic mean; zero for an empty sequence.
func Mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return stat.Mean(x, nil)
}

// PeakToPeak is max(x) - min(x); zero for an empty sequence.
func PeakToPeak(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return floats.Max(x) - floats.Min(x)
}
