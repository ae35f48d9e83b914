// Package session owns per-subject measurement state: the channel buffers,
// running averages, completion and the wellness scores computed at the end.
package session

import (
	"sync"

	"go.uber.org/zap"

	"github.com/sanspareilsmyn/vitalens/internal/config"
	"github.com/sanspareilsmyn/vitalens/internal/roi"
	"github.com/sanspareilsmyn/vitalens/internal/vitals"
)

// State is the lifecycle position of a session.
type State int

const (
	StateEmpty State = iota
	StateAccumulating
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateAccumulating:
		return "accumulating"
	case StateComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// FrameResult is what one appended frame produced.
type FrameResult struct {
	Snapshot vitals.Snapshot
	Scores   vitals.ScoreSet // zero until the session completes
	State    State
	Frames   int

	// Completed is true only for the frame that finished the session.
	Completed bool
	// Ignored is true when the frame arrived after completion.
	Ignored bool
}

// Session accumulates samples until the completion ceiling is reached.
type Session struct {
	cfg       config.SignalConfig
	estimator *vitals.Estimator
	logger    *zap.Logger

	mu     sync.Mutex
	buf    *SampleBuffer
	agg    *aggregator
	attrs  vitals.UserAttributes
	scores vitals.ScoreSet
	state  State
}

// New creates an empty session using the estimator's signal configuration.
func New(estimator *vitals.Estimator, logger *zap.Logger) *Session {
	cfg := estimator.Config()
	return &Session{
		cfg:       cfg,
		estimator: estimator,
		logger:    logger,
		buf:       newSampleBuffer(cfg.TotalFrames),
		agg:       newAggregator(cfg),
	}
}

// Append adds one sample, estimates over the last TotalFrames samples (the
// whole history of a live session) and folds the result into the running
// averages.
func (s *Session) Append(sample roi.Sample) FrameResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateComplete {
		return s.resultLocked(false, true)
	}

	s.buf.Append(sample)
	n := s.cfg.TotalFrames
	est := s.estimator.Estimate(s.buf.Window(Green, n), s.buf.Window(Red, n), s.buf.Window(Infra, n))
	return s.foldLocked(est)
}

// AppendEstimated adds a sample whose estimate was already computed over the
// same history prefix, so the fold matches Append exactly.
func (s *Session) AppendEstimated(sample roi.Sample, est vitals.Estimate) FrameResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateComplete {
		return s.resultLocked(false, true)
	}

	s.buf.Append(sample)
	return s.foldLocked(est)
}

func (s *Session) foldLocked(est vitals.Estimate) FrameResult {
	s.state = StateAccumulating
	s.agg.fold(est)

	if s.buf.Len() < s.cfg.TotalFrames {
		return s.resultLocked(false, false)
	}

	s.state = StateComplete
	s.scores = vitals.Scores(s.agg.averages(), s.attrs)
	s.logger.Info("Session complete",
		zap.Int("frames", s.buf.Len()),
		zap.Float64("avg_bpm", s.agg.bpm.average),
		zap.String("stress_level", s.agg.stress),
	)
	return s.resultLocked(true, false)
}

func (s *Session) resultLocked(completed, ignored bool) FrameResult {
	return FrameResult{
		Snapshot:  s.agg.snapshot(),
		Scores:    s.scores,
		State:     s.state,
		Frames:    s.buf.Len(),
		Completed: completed,
		Ignored:   ignored,
	}
}

// Reset clears signals, averages and scores. Attributes are kept.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf.Reset()
	s.agg.reset()
	s.scores = vitals.ScoreSet{}
	s.state = StateEmpty
}

// SetAttributes records the subject details used for scoring. It fails once
// the scores have been computed.
func (s *Session) SetAttributes(attrs vitals.UserAttributes) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateComplete {
		return ErrSessionComplete
	}
	s.attrs = attrs
	return nil
}

func (s *Session) Attributes() vitals.UserAttributes {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attrs
}

func (s *Session) Snapshot() vitals.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agg.snapshot()
}

// Scores returns the wellness scores; all zero before completion.
func (s *Session) Scores() vitals.ScoreSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scores
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Frames is the number of accepted samples.
func (s *Session) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Len()
}
