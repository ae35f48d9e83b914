package vitals

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// ComputeHRV returns mean interval, SDNN (population standard deviation) and
// RMSSD. Fewer than two intervals give all zeros.
func ComputeHRV(intervals []float64) HRVStats {
	if len(intervals) < 2 {
		return HRVStats{}
	}
	mean, sdnn := stat.PopMeanStdDev(intervals, nil)
	return HRVStats{
		MeanInterval: mean,
		SDNN:         sdnn,
		RMSSD:        rmssd(intervals),
	}
}

func rmssd(intervals []float64) float64 {
	if len(intervals) < 2 {
		return 0
	}
	var sum float64
	for i := 1; i < len(intervals); i++ {
		d := intervals[i] - intervals[i-1]
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(intervals)-1))
}

// StressLevel classifies the RMSSD of the intervals.
func StressLevel(intervals []float64) string {
	if len(intervals) < 2 {
		return StressInsufficient
	}
	return ClassifyStress(rmssd(intervals) * 1000)
}

// ClassifyStress maps an RMSSD in milliseconds to a stress label.
// 30 and 50 both read as mild.
func ClassifyStress(rmssdMs float64) string {
	switch {
	case rmssdMs > 50:
		return StressVeryLow
	case rmssdMs >= 30:
		return StressMild
	case rmssdMs >= 15:
		return StressModerate
	default:
		return StressHigh
	}
}

// BloodPressure is an uncalibrated linear heuristic on the mean beat interval.
// It needs at least two intervals.
func BloodPressure(intervals []float64) (systolic, diastolic float64, ok bool) {
	if len(intervals) < 2 {
		return 0, 0, false
	}
	mean := stat.Mean(intervals, nil)
	return 85 + mean*40, 50 + mean*20, true
}
