package session

import (
	"errors"
	"math"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/sanspareilsmyn/vitalens/internal/config"
	"github.com/sanspareilsmyn/vitalens/internal/roi"
	"github.com/sanspareilsmyn/vitalens/internal/vitals"
)

func testSignalConfig() config.SignalConfig {
	return config.SignalConfig{
		SampleRate:              30,
		LowCut:                  0.85,
		HighCut:                 2.3,
		FilterOrder:             4,
		SignalStrengthThreshold: 0.1,
		TotalFrames:             600,
		HeartRateWindow:         100,
		Thresholds: config.Thresholds{
			HeartRate: 500, HRV: 510, SpO2: 530, Respiration: 520, Pressure: 540,
		},
	}
}

func newTestSession(t *testing.T, cfg config.SignalConfig) *Session {
	t.Helper()
	e, err := vitals.NewEstimator(cfg)
	if err != nil {
		t.Fatalf("NewEstimator failed: %v", err)
	}
	return New(e, zaptest.NewLogger(t))
}

// pulse is a 1.2 Hz (72 bpm) signal sampled at 30 fps.
func pulse(i int) roi.Sample {
	phase := 2 * math.Pi * 1.2 * float64(i) / 30
	return roi.Sample{
		Green: 120 + 2*math.Sin(phase),
		Red:   150 + 1.5*math.Sin(phase),
		Infra: 130 + 1.2*math.Sin(phase),
	}
}

func TestSessionCompletesOnceWithExpectedHeartRate(t *testing.T) {
	s := newTestSession(t, testSignalConfig())

	completions := 0
	var final FrameResult
	for i := 0; i < 650; i++ {
		res := s.Append(pulse(i))
		if res.Completed {
			completions++
			if res.Frames != 600 {
				t.Errorf("completed at frame %d, want 600", res.Frames)
			}
			final = res
		}
		if i >= 600 && !res.Ignored {
			t.Fatalf("frame %d after completion was not ignored", i+1)
		}
	}

	if completions != 1 {
		t.Fatalf("completions = %d, want 1", completions)
	}
	if s.State() != StateComplete || s.Frames() != 600 {
		t.Errorf("state %v frames %d", s.State(), s.Frames())
	}
	if got := final.Snapshot.Average.BPM; math.Abs(got-72) > 3 {
		t.Errorf("average bpm %v, want 72±3", got)
	}
	if final.Scores == (vitals.ScoreSet{}) {
		t.Error("expected scores on completion")
	}
	if s.Scores() != final.Scores {
		t.Error("scores changed after completion")
	}
}

func TestAveragesWaitForThreshold(t *testing.T) {
	s := newTestSession(t, testSignalConfig())

	var res FrameResult
	for i := 0; i < 200; i++ {
		res = s.Append(pulse(i))
	}
	if res.Snapshot.Current.BPM <= 0 {
		t.Fatalf("expected a current bpm after 200 frames, got %+v", res.Snapshot.Current)
	}
	if res.Snapshot.Average != (vitals.Metrics{}) {
		t.Errorf("averages should be zero below every threshold, got %+v", res.Snapshot.Average)
	}
	if res.State != StateAccumulating {
		t.Errorf("state = %v", res.State)
	}
}

func TestShortBufferProducesNoEstimate(t *testing.T) {
	s := newTestSession(t, testSignalConfig())
	for i := 0; i < 27; i++ {
		res := s.Append(pulse(i))
		if res.Snapshot.Current != (vitals.Metrics{}) {
			t.Fatalf("frame %d: expected no estimate, got %+v", i+1, res.Snapshot.Current)
		}
	}
}

func TestResetIsIdempotent(t *testing.T) {
	s := newTestSession(t, testSignalConfig())
	attrs := vitals.UserAttributes{Age: 30, Weight: 70, Height: 175}
	if err := s.SetAttributes(attrs); err != nil {
		t.Fatalf("SetAttributes failed: %v", err)
	}
	for i := 0; i < 80; i++ {
		s.Append(pulse(i))
	}

	s.Reset()
	first := s.Snapshot()
	s.Reset()

	if s.Snapshot() != first || first != (vitals.Snapshot{}) {
		t.Errorf("reset left state behind: %+v", first)
	}
	if s.State() != StateEmpty || s.Frames() != 0 {
		t.Errorf("state %v frames %d after reset", s.State(), s.Frames())
	}
	if s.Attributes() != attrs {
		t.Error("reset should keep attributes")
	}
}

func TestResetAfterCompletionAllowsNewRun(t *testing.T) {
	cfg := testSignalConfig()
	cfg.TotalFrames = 60
	cfg.Thresholds = config.Thresholds{HeartRate: 10, HRV: 10, SpO2: 10, Respiration: 10, Pressure: 10}
	s := newTestSession(t, cfg)

	for i := 0; i < 60; i++ {
		s.Append(pulse(i))
	}
	if err := s.SetAttributes(vitals.UserAttributes{Age: 40}); !errors.Is(err, ErrSessionComplete) {
		t.Errorf("expected ErrSessionComplete, got %v", err)
	}

	s.Reset()
	completions := 0
	for i := 0; i < 60; i++ {
		if s.Append(pulse(i)).Completed {
			completions++
		}
	}
	if completions != 1 {
		t.Errorf("completions after reset = %d, want 1", completions)
	}
}

func TestAppendEstimatedMatchesAppend(t *testing.T) {
	cfg := testSignalConfig()
	cfg.TotalFrames = 120
	cfg.Thresholds = config.Thresholds{HeartRate: 40, HRV: 40, SpO2: 40, Respiration: 40, Pressure: 40}
	e, err := vitals.NewEstimator(cfg)
	if err != nil {
		t.Fatalf("NewEstimator failed: %v", err)
	}
	streamed := New(e, zaptest.NewLogger(t))
	batched := New(e, zaptest.NewLogger(t))

	var green, red, infra []float64
	var a, b FrameResult
	for i := 0; i < 120; i++ {
		smp := pulse(i)
		green, red, infra = append(green, smp.Green), append(red, smp.Red), append(infra, smp.Infra)
		a = streamed.Append(smp)
		b = batched.AppendEstimated(smp, e.Estimate(green, red, infra))
	}
	if a != b {
		t.Errorf("fold mismatch:\nstream %+v\nbatch  %+v", a, b)
	}
}
