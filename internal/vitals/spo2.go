package vitals

import (
	"math"

	"github.com/sanspareilsmyn/vitalens/internal/dsp"
)

const maxSpO2 = 98

// SpO2 estimates oxygen saturation from the red and infra-proxy histories by
// the ratio of ratios. Both AC and DC come from the bandpassed channel: DC is
// its mean and AC its deviation from that mean. ok is false when either
// channel is too short, too flat or has a zero DC or infra AC.
func (e *Estimator) SpO2(red, infra []float64) (spo2 float64, ok bool) {
	if len(red) <= e.minLen || len(infra) <= e.minLen {
		return 0, false
	}
	if !SignalStrong(red, e.cfg.SignalStrengthThreshold) || !SignalStrong(infra, e.cfg.SignalStrengthThreshold) {
		return 0, false
	}

	acRed, dcRed := acDC(e.Filter(red))
	acInfra, dcInfra := acDC(e.Filter(infra))
	if dcRed == 0 || dcInfra == 0 || acInfra == 0 {
		return 0, false
	}

	r := (acRed / dcRed) / (acInfra / dcInfra)
	v := 100 - 2*r
	if math.IsNaN(v) {
		return 0, false
	}
	return math.Max(0, math.Min(maxSpO2, v)), true
}

// acDC returns mean(|x - mean(x)|) and mean(x).
func acDC(x []float64) (ac, dc float64) {
	if len(x) == 0 {
		return 0, 0
	}
	dc = dsp.Mean(x)
	for _, v := range x {
		ac += math.Abs(v - dc)
	}
	return ac / float64(len(x)), dc
}

// SignalStrong reports whether the peak-to-peak amplitude exceeds threshold.
func SignalStrong(x []float64, threshold float64) bool {
	return dsp.PeakToPeak(x) > threshold
}
