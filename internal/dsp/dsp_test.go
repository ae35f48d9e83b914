package dsp

import (
	"errors"
	"math"
	"math/cmplx"
	"testing"
)

func sine(n int, freq, fs, amp, offset float64) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = offset + amp*math.Sin(2*math.Pi*freq*float64(i)/fs)
	}
	return x
}

func rms(x []float64) float64 {
	var s float64
	for _, v := range x {
		s += v * v
	}
	return math.Sqrt(s / float64(len(x)))
}

func TestMinFilterLength(t *testing.T) {
	if got := MinFilterLength(4); got != 27 {
		t.Fatalf("MinFilterLength(4) = %d, want 27", got)
	}
}

func TestNewBandpassRejectsInvalidParameters(t *testing.T) {
	cases := []struct {
		name            string
		low, high, fs   float64
		order           int
		wantErr         error
	}{
		{"zero order", 0.85, 2.3, 30, 0, ErrInvalidOrder},
		{"inverted band", 2.3, 0.85, 30, 4, ErrInvalidBand},
		{"above nyquist", 0.85, 16, 30, 4, ErrInvalidBand},
		{"zero low", 0, 2.3, 30, 4, ErrInvalidBand},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewBandpass(tc.low, tc.high, tc.fs, tc.order)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestBandpassPassThroughBelowMinimumLength(t *testing.T) {
	f, err := NewBandpass(0.85, 2.3, 30, 4)
	if err != nil {
		t.Fatalf("NewBandpass failed: %v", err)
	}
	for _, n := range []int{0, 1, 10, 27} {
		x := sine(n, 1.2, 30, 1, 100)
		y := f.Apply(x)
		if len(y) != len(x) {
			t.Fatalf("n=%d: length %d, want %d", n, len(y), len(x))
		}
		for i := range x {
			if y[i] != x[i] {
				t.Fatalf("n=%d: sample %d changed from %v to %v", n, i, x[i], y[i])
			}
		}
	}
}

func TestBandpassPreservesLengthAndBand(t *testing.T) {
	f, err := NewBandpass(0.85, 2.3, 30, 4)
	if err != nil {
		t.Fatalf("NewBandpass failed: %v", err)
	}

	for _, n := range []int{28, 100, 600} {
		if got := len(f.Apply(sine(n, 1.2, 30, 1, 0))); got != n {
			t.Fatalf("length %d, want %d", got, n)
		}
	}

	inBand := f.Apply(sine(600, 1.5, 30, 1, 50))
	mid := inBand[100:500]
	if r := rms(mid); math.Abs(r-1/math.Sqrt2) > 0.05 {
		t.Errorf("in-band rms = %.3f, want ~%.3f", r, 1/math.Sqrt2)
	}
	if m := Mean(mid); math.Abs(m) > 0.05 {
		t.Errorf("DC offset not removed, mean = %.3f", m)
	}

	outOfBand := f.Apply(sine(600, 6, 30, 1, 0))
	if r := rms(outOfBand[100:500]); r > 0.05 {
		t.Errorf("6 Hz rms = %.3f, expected strong attenuation", r)
	}
}

func TestBandpassCoefficients(t *testing.T) {
	f, err := NewBandpass(0.85, 2.3, 30, 4)
	if err != nil {
		t.Fatalf("NewBandpass failed: %v", err)
	}
	b, a := f.Coefficients()
	if len(b) != 9 || len(a) != 9 {
		t.Fatalf("got %d/%d coefficients, want 9/9", len(b), len(a))
	}
	if math.Abs(a[0]-1) > 1e-12 {
		t.Errorf("a[0] = %v, want 1", a[0])
	}

	// Four zeros at z=1 and four at z=-1 give b proportional to (1-z^-2)^4.
	pattern := []float64{1, 0, -4, 0, 6, 0, -4, 0, 1}
	for i, want := range pattern {
		if got := b[i] / b[0]; math.Abs(got-want) > 1e-9 {
			t.Errorf("b[%d]/b[0] = %v, want %v", i, got, want)
		}
	}

	// Unit gain at the centre of the prewarped band.
	wl := 4 * math.Tan(math.Pi*(0.85/15)/2)
	wh := 4 * math.Tan(math.Pi*(2.3/15)/2)
	w := 2 * math.Atan(math.Sqrt(wl*wh)/4)
	z := cmplx.Exp(complex(0, -w))
	var num, den complex128
	zk := complex(1, 0)
	for i := range b {
		num += complex(b[i], 0) * zk
		den += complex(a[i], 0) * zk
		zk *= z
	}
	if g := cmplx.Abs(num / den); math.Abs(g-1) > 1e-6 {
		t.Errorf("centre gain = %v, want 1", g)
	}

	b[0] = 42
	if again, _ := f.Coefficients(); again[0] == 42 {
		t.Error("Coefficients must return a copy")
	}
}

func TestBandpassIsZeroPhase(t *testing.T) {
	f, err := NewBandpass(0.85, 2.3, 30, 4)
	if err != nil {
		t.Fatalf("NewBandpass failed: %v", err)
	}
	x := sine(600, 1.2, 30, 1, 0)
	y := f.Apply(x)

	xPeaks := FindPeaks(x[60:540], 0.5, 15)
	yPeaks := FindPeaks(y[60:540], 0.5, 15)
	if len(xPeaks) != len(yPeaks) {
		t.Fatalf("peak count changed: %d vs %d", len(xPeaks), len(yPeaks))
	}
	for i := range xPeaks {
		if d := xPeaks[i] - yPeaks[i]; d < -1 || d > 1 {
			t.Errorf("peak %d shifted by %d samples", i, d)
		}
	}
}

func TestSavitzkyGolayKeepsCubics(t *testing.T) {
	s, err := NewSavitzkyGolay(11, 3)
	if err != nil {
		t.Fatalf("NewSavitzkyGolay failed: %v", err)
	}
	x := make([]float64, 40)
	for i := range x {
		v := float64(i)
		x[i] = 0.01*v*v*v - 0.2*v*v + v - 3
	}
	y := s.Apply(x)
	for i := range x {
		if math.Abs(y[i]-x[i]) > 1e-6 {
			t.Fatalf("sample %d: got %v, want %v", i, y[i], x[i])
		}
	}
}

func TestSavitzkyGolayValidation(t *testing.T) {
	if _, err := NewSavitzkyGolay(10, 3); !errors.Is(err, ErrInvalidWindow) {
		t.Errorf("even window: expected ErrInvalidWindow, got %v", err)
	}
	if _, err := NewSavitzkyGolay(3, 3); !errors.Is(err, ErrInvalidWindow) {
		t.Errorf("window <= order: expected ErrInvalidWindow, got %v", err)
	}
	s, _ := NewSavitzkyGolay(11, 3)
	short := []float64{1, 5, 2}
	if got := s.Apply(short); len(got) != 3 || got[1] != 5 {
		t.Errorf("short input should pass through, got %v", got)
	}
}

func TestFindPeaks(t *testing.T) {
	x := []float64{0, 1, 0, 3, 0, 2, 2, 2, 0, 5, 4, 0}
	got := FindPeaks(x, 0, 0)
	want := []int{1, 3, 6, 9}
	if len(got) != len(want) {
		t.Fatalf("peaks = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("peaks = %v, want %v", got, want)
		}
	}

	if got := FindPeaks(x, 2.5, 0); len(got) != 2 || got[0] != 3 || got[1] != 9 {
		t.Errorf("height filter: got %v, want [3 9]", got)
	}

	// distance keeps the taller of two close peaks
	if got := FindPeaks(x, 0, 4); len(got) != 2 || got[0] != 3 || got[1] != 9 {
		t.Errorf("distance filter: got %v, want [3 9]", got)
	}
}

func TestSinusoidPeakSpacing(t *testing.T) {
	const fs, f0 = 30.0, 1.2
	x := sine(600, f0, fs, 1, 0)
	peaks := FindPeaks(x, 0, fs/2)
	iv := Intervals(peaks, fs)
	if len(iv) < 10 {
		t.Fatalf("expected many intervals, got %d", len(iv))
	}
	for _, v := range iv {
		if math.Abs(v*fs-fs/f0) > 1 {
			t.Fatalf("interval %.3fs is not ~%.1f samples", v, fs/f0)
		}
	}
}

func TestIntervalsNeedTwoPeaks(t *testing.T) {
	if iv := Intervals([]int{4}, 30); iv != nil {
		t.Errorf("expected nil, got %v", iv)
	}
	iv := Intervals([]int{0, 30, 45}, 30)
	if len(iv) != 2 || iv[0] != 1 || iv[1] != 0.5 {
		t.Errorf("unexpected intervals %v", iv)
	}
}

func TestDominantFrequency(t *testing.T) {
	for _, f0 := range []float64{0.9, 1.2, 1.75, 2.2} {
		got := DominantFrequency(sine(600, f0, 30, 1, 0), 30) * 60
		if math.Abs(got-f0*60) > 2 {
			t.Errorf("f0=%.2f Hz: got %.2f BPM, want %.2f±2", f0, got, f0*60)
		}
	}
	if DominantFrequency([]float64{1}, 30) != 0 {
		t.Error("single sample should report 0")
	}
}

func TestPeakToPeak(t *testing.T) {
	if got := PeakToPeak([]float64{3, -1, 2}); got != 4 {
		t.Errorf("PeakToPeak = %v, want 4", got)
	}
	if PeakToPeak(nil) != 0 || Mean(nil) != 0 {
		t.Error("empty input should give 0")
	}
}
