package vitals

import (
	"github.com/sanspareilsmyn/vitalens/internal/dsp"
)

// Respiration reads the breathing rate off the slow modulation of the
// heart-rate signal. Peaks closer than two seconds are merged, so the rate is
// capped at 30/min. No qualifying peaks gives 0.
func (e *Estimator) Respiration(filtered []float64) float64 {
	smoothed := e.smoother.Apply(filtered)
	fs := e.cfg.SampleRate

	peaks := dsp.FindPeaks(smoothed, dsp.Mean(smoothed)*peakHeightFactor, fs*2)
	intervals := dsp.Intervals(peaks, fs)
	if len(intervals) == 0 {
		return 0
	}

	mean := dsp.Mean(intervals)
	if mean <= 0 {
		return 0
	}
	return 60 / mean
}
