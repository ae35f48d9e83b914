package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/vitalens/internal/message"
	"github.com/sanspareilsmyn/vitalens/internal/notify"
	"github.com/sanspareilsmyn/vitalens/internal/session"
	"github.com/sanspareilsmyn/vitalens/internal/vitals"
)

const deliveryTimeout = 10 * time.Second

// ReportSaver persists completion reports.
type ReportSaver interface {
	Save(ctx context.Context, r message.Report) error
}

// NewReport describes a completed session.
func NewReport(sessionID, source string, res session.FrameResult, attrs vitals.UserAttributes) message.Report {
	return message.Report{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		Source:      source,
		Metrics:     res.Snapshot,
		Scores:      res.Scores,
		Attributes:  attrs,
		Frames:      res.Frames,
		CompletedAt: time.Now().UTC(),
	}
}

// Reporter hands completion reports to the publishers and the store.
// Delivery failures are logged and counted; they never fail a session.
type Reporter struct {
	publisher notify.Publisher
	saver     ReportSaver
	input     <-chan message.Report
	logger    *zap.Logger
}

// NewReporter creates a Reporter. saver may be nil when storage is disabled;
// input may be nil when the reporter is only called through Deliver.
func NewReporter(publisher notify.Publisher, saver ReportSaver, input <-chan message.Report, logger *zap.Logger) *Reporter {
	if publisher == nil {
		publisher = notify.Multi{}
	}
	return &Reporter{
		publisher: publisher,
		saver:     saver,
		input:     input,
		logger:    logger,
	}
}

// Run delivers reports from the input channel until it closes or ctx ends.
func (r *Reporter) Run(ctx context.Context) error {
	r.logger.Info("Starting reporter loop...")
	defer r.logger.Info("Reporter loop stopped.")

	for {
		select {
		case rep, ok := <-r.input:
			if !ok {
				r.logger.Debug("Reporter input channel closed.")
				return nil
			}
			r.Deliver(ctx, rep)

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Deliver records, publishes and stores one report.
func (r *Reporter) Deliver(ctx context.Context, rep message.Report) {
	sessionsCompleted.WithLabelValues(rep.Source).Inc()
	finalHeartRate.Observe(rep.Metrics.Average.BPM)

	// Reports outlive the request or stream that produced them.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deliveryTimeout)
	defer cancel()

	if err := r.publisher.Publish(ctx, rep); err != nil {
		reportDeliveryFailures.WithLabelValues("publish").Inc()
		r.logger.Warn("Failed to publish report",
			zap.String("report_id", rep.ID),
			zap.String("session_id", rep.SessionID),
			zap.Error(err),
		)
	}

	if r.saver != nil {
		if err := r.saver.Save(ctx, rep); err != nil {
			reportDeliveryFailures.WithLabelValues("store").Inc()
			r.logger.Warn("Failed to store report",
				zap.String("report_id", rep.ID),
				zap.String("session_id", rep.SessionID),
				zap.Error(err),
			)
		}
	}

	r.logger.Info("Session report delivered",
		zap.String("report_id", rep.ID),
		zap.String("session_id", rep.SessionID),
		zap.String("source", rep.Source),
		zap.Float64("avg_bpm", rep.Metrics.Average.BPM),
		zap.String("stress_level", rep.Metrics.Stress),
	)
}
