package vitals

import (
	"fmt"

	"github.com/sanspareilsmyn/vitalens/internal/config"
	"github.com/sanspareilsmyn/vitalens/internal/dsp"
)

const (
	smoothingWindow = 11
	smoothingOrder  = 3

	// peaks lower than this fraction of the smoothed mean are noise
	peakHeightFactor = 0.7
)

// Estimator turns channel histories into per-frame vital-sign estimates.
// It holds only precomputed filters and is safe for concurrent use.
type Estimator struct {
	cfg      config.SignalConfig
	filter   *dsp.Bandpass
	smoother *dsp.SavitzkyGolay
	minLen   int
}

// NewEstimator validates the signal configuration and designs the filters once.
func NewEstimator(cfg config.SignalConfig) (*Estimator, error) {
	if err := config.ValidateSignal(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSignalConfig, err)
	}

	filter, err := dsp.NewBandpass(cfg.LowCut, cfg.HighCut, cfg.SampleRate, cfg.FilterOrder)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSignalConfig, err)
	}
	smoother, err := dsp.NewSavitzkyGolay(smoothingWindow, smoothingOrder)
	if err != nil {
		return nil, err
	}

	return &Estimator{
		cfg:      cfg,
		filter:   filter,
		smoother: smoother,
		minLen:   dsp.MinFilterLength(cfg.FilterOrder),
	}, nil
}

// MinLength is the buffer length at or below which no estimate is produced.
func (e *Estimator) MinLength() int { return e.minLen }

// Config returns the signal configuration the estimator was built with.
func (e *Estimator) Config() config.SignalConfig { return e.cfg }

// Filter applies the heart-rate bandpass.
func (e *Estimator) Filter(x []float64) []float64 { return e.filter.Apply(x) }

// Estimate runs every per-frame stage over the full channel histories.
// The slices are read, never modified.
func (e *Estimator) Estimate(green, red, infra []float64) Estimate {
	if len(green) <= e.minLen {
		return Estimate{Stress: StressInsufficient}
	}

	filtered := e.Filter(green)
	hr := e.HeartRate(filtered)

	est := Estimate{
		Ready:       true,
		HeartRate:   hr,
		Stress:      StressLevel(hr.Intervals),
		Respiration: e.Respiration(filtered),
	}

	if len(hr.Intervals) >= 2 {
		est.HRV = ComputeHRV(hr.Intervals)
		est.HasHRV = true
	}
	est.Systolic, est.Diastolic, est.HasPressure = BloodPressure(hr.Intervals)
	est.SpO2, est.HasSpO2 = e.SpO2(red, infra)

	return est
}
