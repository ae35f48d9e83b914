package vitals

import (
	"github.com/sanspareilsmyn/vitalens/internal/dsp"
)

// HeartRate smooths a bandpassed signal, picks beats and reads the rate off the
// spectrum. The spectral rate is authoritative; peaks only feed interval-based
// metrics. Peaks closer than half a second are merged, capping them at 120/min.
func (e *Estimator) HeartRate(filtered []float64) HeartRate {
	smoothed := e.smoother.Apply(filtered)
	fs := e.cfg.SampleRate

	peaks := dsp.FindPeaks(smoothed, dsp.Mean(smoothed)*peakHeightFactor, fs/2)

	return HeartRate{
		BPM:       dsp.DominantFrequency(smoothed, fs) * 60,
		Intervals: dsp.Intervals(peaks, fs),
		Peaks:     peaks,
	}
}
