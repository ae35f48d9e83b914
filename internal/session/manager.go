package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/vitalens/internal/config"
	"github.com/sanspareilsmyn/vitalens/internal/roi"
	"github.com/sanspareilsmyn/vitalens/internal/vitals"
)

// Per-frame status reported to streaming clients.
const (
	StatusNoFace        = "no face detected"
	StatusLowConfidence = "low confidence"
	StatusMovement      = "movement detected"
	StatusNoMovement    = "no movement"
)

// Gate applies the face, confidence and (when tracker is non-nil) movement
// checks to a frame. It returns the status and whether the frame is usable.
func Gate(f roi.Frame, cfg config.ROIConfig, tracker *roi.Tracker) (string, bool) {
	if f.Face == nil {
		return StatusNoFace, false
	}
	if !roi.Confident(*f.Face, f.Width, f.Height, cfg.ConfidenceThreshold) {
		return StatusLowConfidence, false
	}
	if tracker != nil && tracker.Moving(*f.Face) {
		return StatusMovement, false
	}
	return StatusNoMovement, true
}

// Outcome is the result of processing one frame on a stream.
type Outcome struct {
	Status   string
	Accepted bool
	Result   FrameResult
}

// Stream is a session bound to one connection or producer, with its own
// movement tracker.
type Stream struct {
	ID      string
	Session *Session

	roiCfg config.ROIConfig
	logger *zap.Logger

	mu       sync.Mutex
	tracker  *roi.Tracker
	lastSeen time.Time
}

// Process gates, extracts and appends one frame. Extraction failures and
// recovered panics are returned as errors and leave both the session and the
// tracked face position untouched.
func (st *Stream) Process(f roi.Frame) (out Outcome, err error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.lastSeen = time.Now()

	baseline := st.tracker.Previous()
	defer func() {
		if r := recover(); r != nil {
			st.tracker.Restore(baseline)
			st.logger.Error("Recovered panic while processing frame",
				zap.String("session_id", st.ID),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			out = Outcome{}
			err = fmt.Errorf("%w: %v", ErrFrameProcessing, r)
		}
	}()

	status, ok := Gate(f, st.roiCfg, st.tracker)
	if !ok {
		return Outcome{Status: status, Result: st.current()}, nil
	}

	sample, err := roi.Extract(f)
	if err != nil {
		st.tracker.Restore(baseline)
		return Outcome{Status: status, Result: st.current()}, err
	}

	res := st.Session.Append(sample)
	return Outcome{Status: status, Accepted: !res.Ignored, Result: res}, nil
}

// Reset clears the session and forgets the tracked face position.
func (st *Stream) Reset() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.lastSeen = time.Now()
	st.tracker.Reset()
	st.Session.Reset()
}

func (st *Stream) touch() {
	st.mu.Lock()
	st.lastSeen = time.Now()
	st.mu.Unlock()
}

func (st *Stream) idleSince() time.Time {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.lastSeen
}

func (st *Stream) current() FrameResult {
	s := st.Session
	return FrameResult{
		Snapshot: s.Snapshot(),
		Scores:   s.Scores(),
		State:    s.State(),
		Frames:   s.Frames(),
	}
}

// Manager is the registry of live streams keyed by session id.
type Manager struct {
	estimator *vitals.Estimator
	roiCfg    config.ROIConfig
	sessCfg   config.SessionConfig
	logger    *zap.Logger

	mu      sync.Mutex
	streams map[string]*Stream
}

func NewManager(estimator *vitals.Estimator, roiCfg config.ROIConfig, sessCfg config.SessionConfig, logger *zap.Logger) *Manager {
	return &Manager{
		estimator: estimator,
		roiCfg:    roiCfg,
		sessCfg:   sessCfg,
		logger:    logger,
		streams:   make(map[string]*Stream),
	}
}

// Create registers a stream under a fresh uuid.
func (m *Manager) Create() *Stream {
	return m.GetOrCreate(uuid.NewString())
}

// GetOrCreate returns the stream for id, creating it on first use.
func (m *Manager) GetOrCreate(id string) *Stream {
	m.mu.Lock()
	defer m.mu.Unlock()

	if st, ok := m.streams[id]; ok {
		st.touch()
		return st
	}

	logger := m.logger.With(zap.String("session_id", id))
	st := &Stream{
		ID:       id,
		Session:  New(m.estimator, logger),
		roiCfg:   m.roiCfg,
		logger:   logger,
		tracker:  roi.NewTracker(m.roiCfg.MovementThreshold),
		lastSeen: time.Now(),
	}
	m.streams[id] = st
	logger.Debug("Stream created", zap.Int("active_streams", len(m.streams)))
	return st
}

func (m *Manager) Get(id string) (*Stream, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.streams[id]
	return st, ok
}

// Reset clears the session registered under id.
func (m *Manager) Reset(id string) error {
	st, ok := m.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrStreamNotFound, id)
	}
	st.Reset()
	return nil
}

func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.streams[id]; ok {
		delete(m.streams, id)
		m.logger.Debug("Stream removed", zap.String("session_id", id), zap.Int("active_streams", len(m.streams)))
	}
}

// Len is the number of live streams.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.streams)
}

// Sweep evicts streams idle for longer than the configured TTL and returns
// how many were removed.
func (m *Manager) Sweep(now time.Time) int {
	if m.sessCfg.IdleTTL <= 0 {
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for id, st := range m.streams {
		if now.Sub(st.idleSince()) > m.sessCfg.IdleTTL {
			delete(m.streams, id)
			evicted++
		}
	}
	if evicted > 0 {
		m.logger.Info("Evicted idle streams",
			zap.Int("evicted", evicted),
			zap.Int("active_streams", len(m.streams)),
		)
	}
	return evicted
}

// Run sweeps idle streams periodically until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	if m.sessCfg.SweepEvery <= 0 || m.sessCfg.IdleTTL <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(m.sessCfg.SweepEvery)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			m.Sweep(now)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
