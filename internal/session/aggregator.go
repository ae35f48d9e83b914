package session

import (
	"github.com/sanspareilsmyn/vitalens/internal/config"
	"github.com/sanspareilsmyn/vitalens/internal/dsp"
	"github.com/sanspareilsmyn/vitalens/internal/vitals"
)

// series is the history of one metric's point estimates and its stabilized
// average. The average stays put until the history reaches threshold entries.
type series struct {
	values    []float64
	threshold int
	window    int // 0 averages the whole history
	average   float64
}

func (s *series) add(v float64) {
	s.values = append(s.values, v)
	if len(s.values) < s.threshold {
		return
	}
	tail := s.values
	if s.window > 0 && len(tail) > s.window {
		tail = tail[len(tail)-s.window:]
	}
	s.average = vitals.Round2(dsp.Mean(tail))
}

func (s *series) reset() {
	s.values = s.values[:0]
	s.average = 0
}

// aggregator folds per-frame estimates into running averages.
type aggregator struct {
	bpm         series
	hrv         series
	spo2        series
	respiration series
	systolic    series
	diastolic   series

	current vitals.Metrics
	stress  string
}

func newAggregator(cfg config.SignalConfig) *aggregator {
	t := cfg.Thresholds
	return &aggregator{
		bpm:         series{threshold: t.HeartRate, window: cfg.HeartRateWindow},
		hrv:         series{threshold: t.HRV},
		spo2:        series{threshold: t.SpO2},
		respiration: series{threshold: t.Respiration},
		systolic:    series{threshold: t.Pressure},
		diastolic:   series{threshold: t.Pressure},
	}
}

// fold records the values an estimate carries. Absent values leave both the
// history and the current reading untouched.
func (a *aggregator) fold(est vitals.Estimate) {
	if !est.Ready {
		return
	}

	a.stress = est.Stress

	if est.HeartRate.BPM > 0 {
		a.current.BPM = est.HeartRate.BPM
		a.bpm.add(est.HeartRate.BPM)
	}

	if est.HasSpO2 {
		a.current.SpO2 = est.SpO2
		a.spo2.add(est.SpO2)
	}

	if est.HasHRV {
		hrvMs := est.HRV.SDNN * 1000
		a.current.HRV = hrvMs
		a.hrv.add(hrvMs)
	}

	a.current.Respiration = est.Respiration
	a.respiration.add(est.Respiration)

	if est.HasPressure {
		a.current.Systolic = est.Systolic
		a.current.Diastolic = est.Diastolic
		a.systolic.add(est.Systolic)
		a.diastolic.add(est.Diastolic)
	}
}

func (a *aggregator) averages() vitals.Metrics {
	return vitals.Metrics{
		BPM:         a.bpm.average,
		HRV:         a.hrv.average,
		SpO2:        a.spo2.average,
		Respiration: a.respiration.average,
		Systolic:    a.systolic.average,
		Diastolic:   a.diastolic.average,
	}
}

func (a *aggregator) snapshot() vitals.Snapshot {
	return vitals.Snapshot{
		Current: a.current,
		Average: a.averages(),
		Stress:  a.stress,
	}
}

func (a *aggregator) reset() {
	for _, s := range []*series{&a.bpm, &a.hrv, &a.spo2, &a.respiration, &a.systolic, &a.diastolic} {
		s.reset()
	}
	a.current = vitals.Metrics{}
	a.stress = ""
}
