package pipeline

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sanspareilsmyn/vitalens/internal/session"
)

// Frame outcome labels.
const (
	OutcomeAccepted = "accepted"
	OutcomeNoFace   = "no_face"
	OutcomeLowConf  = "low_confidence"
	OutcomeMovement = "movement"
	OutcomeIgnored  = "ignored"
	OutcomeError    = "error"
)

var (
	framesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vitalens_frames_processed_total",
			Help: "Frames processed, by source and outcome.",
		},
		[]string{"source", "outcome"},
	)
	frameLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vitalens_frame_processing_seconds",
			Help:    "Time spent gating, extracting and estimating one frame.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"source"},
	)
	sessionsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vitalens_sessions_completed_total",
			Help: "Sessions that reached the frame ceiling, by source.",
		},
		[]string{"source"},
	)
	finalHeartRate = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vitalens_final_heart_rate_bpm",
			Help:    "Average heart rate of completed sessions.",
			Buckets: prometheus.LinearBuckets(40, 10, 14),
		},
	)
	batchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vitalens_batch_requests_total",
			Help: "Batch evaluations, by result.",
		},
		[]string{"result"},
	)
	reportDeliveryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vitalens_report_delivery_failures_total",
			Help: "Reports that could not be published or stored, by target.",
		},
		[]string{"target"},
	)
)

// RegisterActiveStreams exposes the number of live streams held by m.
// Registering a second time is a no-op.
func RegisterActiveStreams(reg prometheus.Registerer, m *session.Manager) error {
	gauge := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "vitalens_active_streams",
			Help: "Streams currently held by the session manager.",
		},
		func() float64 { return float64(m.Len()) },
	)
	if err := reg.Register(gauge); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return nil
		}
		return err
	}
	return nil
}

// outcomeLabel maps a processed frame to its metric label.
func outcomeLabel(out session.Outcome, err error) string {
	if err != nil {
		return OutcomeError
	}
	if out.Accepted {
		return OutcomeAccepted
	}
	if out.Result.Ignored {
		return OutcomeIgnored
	}
	switch out.Status {
	case session.StatusNoFace:
		return OutcomeNoFace
	case session.StatusLowConfidence:
		return OutcomeLowConf
	case session.StatusMovement:
		return OutcomeMovement
	default:
		return OutcomeIgnored
	}
}

// ObserveFrame records one processed frame.
func ObserveFrame(source string, out session.Outcome, err error, elapsed time.Duration) {
	framesProcessed.WithLabelValues(source, outcomeLabel(out, err)).Inc()
	frameLatency.WithLabelValues(source).Observe(elapsed.Seconds())
}
