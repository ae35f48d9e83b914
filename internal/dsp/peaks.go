package dsp

import (
	"math"
	"sort"
)

// FindPeaks returns the indices of local maxima of x that reach minHeight and
// are at least minDistance samples apart. Flat-topped peaks report their
// middle sample. When two peaks are too close the taller one is kept.
func FindPeaks(x []float64, minHeight, minDistance float64) []int {
	candidates := localMaxima(x)

	peaks := candidates[:0]
	for _, p := range candidates {
		if x[p] >= minHeight {
			peaks = append(peaks, p)
		}
	}

	distance := int(math.Ceil(minDistance))
	if distance <= 1 || len(peaks) < 2 {
		return peaks
	}
	return selectByDistance(x, peaks, distance)
}

// Intervals converts consecutive peak indices into durations in seconds.
// Fewer than two peaks yield nil.
func Intervals(peaks []int, sampleRate float64) []float64 {
	if len(peaks) < 2 {
		return nil
	}
	out := make([]float64, len(peaks)-1)
	for i := 1; i < len(peaks); i++ {
		out[i-1] = float64(peaks[i]-peaks[i-1]) / sampleRate
	}
	return out
}

func localMaxima(x []float64) []int {
	var peaks []int
	i := 1
	last := len(x) - 1
	for i < last {
		if x[i-1] < x[i] {
			ahead := i + 1
			for ahead < last && x[ahead] == x[i] {
				ahead++
			}
			if x[ahead] < x[i] {
				peaks = append(peaks, (i+ahead-1)/2)
				i = ahead
			}
		}
		i++
	}
	return peaks
}

func selectByDistance(x []float64, peaks []int, distance int) []int {
	order := make([]int, len(peaks))
	for i := range order {
		order[i] = i
	}
	// tallest first, earlier index wins ties
	sort.SliceStable(order, func(a, b int) bool {
		return x[peaks[order[a]]] > x[peaks[order[b]]]
	})

	keep := make([]bool, len(peaks))
	for i := range keep {
		keep[i] = true
	}

	for _, j := range order {
		if !keep[j] {
			continue
		}
		for k := j - 1; k >= 0 && peaks[j]-peaks[k] < distance; k-- {
			keep[k] = false
		}
		for k := j + 1; k < len(peaks) && peaks[k]-peaks[j] < distance; k++ {
			keep[k] = false
		}
	}

	out := make([]int, 0, len(peaks))
	for i, p := range peaks {
		if keep[i] {
			out = append(out, p)
		}
	}
	return out
}
