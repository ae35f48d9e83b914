package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sanspareilsmyn/vitalens/internal/message"
	"github.com/sanspareilsmyn/vitalens/internal/session"
)

// Processor folds Kafka frame messages into per-producer streams and emits a
// report whenever a stream completes. It is the only writer of those streams.
type Processor struct {
	manager *session.Manager
	input   <-chan message.FrameMessage
	output  chan<- message.Report
	logger  *zap.Logger
}

func NewProcessor(manager *session.Manager, input <-chan message.FrameMessage, output chan<- message.Report, logger *zap.Logger) *Processor {
	logger.Info("Processor initialized")
	return &Processor{
		manager: manager,
		input:   input,
		output:  output,
		logger:  logger,
	}
}

// Run processes messages until the input closes or ctx is cancelled.
func (p *Processor) Run(ctx context.Context) error {
	p.logger.Info("Starting processor loop...")
	defer p.logger.Info("Processor loop stopped.")

	for {
		select {
		case msg, ok := <-p.input:
			if !ok {
				p.logger.Debug("Processor input channel closed.")
				return nil
			}
			if err := p.handle(ctx, msg); err != nil {
				return err
			}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// handle applies one message. Only a cancelled context is returned as an
// error; per-frame problems are logged and counted.
func (p *Processor) handle(ctx context.Context, msg message.FrameMessage) error {
	st := p.manager.GetOrCreate(msg.SessionID)
	logger := p.logger.With(zap.String("session_id", msg.SessionID))

	if msg.Reset {
		st.Reset()
		logger.Debug("Session reset")
	}
	if msg.Attributes != nil {
		if err := st.Session.SetAttributes(*msg.Attributes); err != nil {
			logger.Warn("Attributes ignored", zap.Error(err))
		}
	}
	if !msg.HasFrame() {
		return nil
	}

	start := time.Now()
	frame, err := msg.Frame(0, 0)
	if err != nil {
		ObserveFrame(message.SourceKafka, session.Outcome{}, err, time.Since(start))
		logger.Warn("Skipping undecodable frame", zap.Error(err))
		return nil
	}

	out, err := st.Process(frame)
	ObserveFrame(message.SourceKafka, out, err, time.Since(start))
	if err != nil {
		logger.Warn("Frame processing failed", zap.Error(err))
		return nil
	}
	if !out.Result.Completed {
		return nil
	}

	rep := NewReport(st.ID, message.SourceKafka, out.Result, st.Session.Attributes())
	select {
	case p.output <- rep:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
