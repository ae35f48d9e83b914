// Package pipeline connects the session core to its transports: the Kafka
// frame stream, the batch evaluator and report delivery.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/sanspareilsmyn/vitalens/internal/config"
	"github.com/sanspareilsmyn/vitalens/internal/message"
	"github.com/sanspareilsmyn/vitalens/internal/session"
)

const channelBufferSize = 100

// Pipeline runs the Kafka stages: consumer, parser, processor, reporter.
type Pipeline struct {
	consumer  *Consumer
	processor *Processor
	reporter  *Reporter
	logger    *zap.Logger

	rawMessages    chan []byte
	frameMessages  chan message.FrameMessage
	reportMessages chan message.Report
}

// New wires the Kafka pipeline. Completed sessions are delivered through the
// reporter's publisher and saver.
func New(cfg config.KafkaConfig, manager *session.Manager, reporter *Reporter, logger *zap.Logger) (*Pipeline, error) {
	initLogger := logger.Named("pipeline.init")

	rawMessages := make(chan []byte, channelBufferSize)
	frameMessages := make(chan message.FrameMessage, channelBufferSize)
	reportMessages := make(chan message.Report, channelBufferSize)

	consumer, err := NewConsumer(cfg, rawMessages, logger.Named("consumer"))
	if err != nil {
		initLogger.Error("Failed to create consumer", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrConsumerCreationFailed, err)
	}

	processor := NewProcessor(manager, frameMessages, reportMessages, logger.Named("processor"))
	pipeReporter := NewReporter(reporter.publisher, reporter.saver, reportMessages, logger.Named("reporter"))

	initLogger.Info("Pipeline instance created", zap.Int("buffer_size", channelBufferSize))
	return &Pipeline{
		consumer:       consumer,
		processor:      processor,
		reporter:       pipeReporter,
		logger:         logger.Named("pipeline"),
		rawMessages:    rawMessages,
		frameMessages:  frameMessages,
		reportMessages: reportMessages,
	}, nil
}

// Run starts every stage and waits for cancellation or the first stage error.
func (p *Pipeline) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 4)

	p.logger.Info("Starting pipeline components...")
	wg.Add(4)
	go p.runConsumer(ctx, &wg, errCh)
	go p.runParser(ctx, &wg)
	go p.runProcessor(ctx, &wg, errCh)
	go p.runReporter(ctx, &wg, errCh)

	var firstErr error
	select {
	case <-ctx.Done():
		p.logger.Info("Context cancelled, waiting for components to finish...")
		firstErr = ctx.Err()
	case err := <-errCh:
		p.logger.Error("Component failed, initiating shutdown", zap.Error(err))
		firstErr = err
		cancel()
	}

	wg.Wait()
	p.logger.Info("All pipeline components finished.")

	if firstErr != nil && !errors.Is(firstErr, context.Canceled) {
		return firstErr
	}
	return nil
}

func (p *Pipeline) runConsumer(ctx context.Context, wg *sync.WaitGroup, errCh chan<- error) {
	defer wg.Done()
	defer close(p.rawMessages)

	if err := p.consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		errCh <- fmt.Errorf("%w: %w", ErrConsumerRunFailed, err)
	}
}

// runParser decodes raw messages; malformed ones are logged and dropped.
func (p *Pipeline) runParser(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	defer close(p.frameMessages)

	logger := p.logger.Named("parser")
	for {
		select {
		case raw, ok := <-p.rawMessages:
			if !ok {
				return
			}

			msg, err := message.ParseFrameMessage(raw)
			if err != nil {
				logger.Warn("Failed to parse message, skipping",
					zap.String("payload", message.Snippet(raw, 80)),
					zap.Error(err),
				)
				continue
			}

			select {
			case p.frameMessages <- msg:
			case <-ctx.Done():
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

func (p *Pipeline) runProcessor(ctx context.Context, wg *sync.WaitGroup, errCh chan<- error) {
	defer wg.Done()
	defer close(p.reportMessages)

	if err := p.processor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		errCh <- fmt.Errorf("%w: %w", ErrProcessorRunFailed, err)
	}
}

func (p *Pipeline) runReporter(ctx context.Context, wg *sync.WaitGroup, errCh chan<- error) {
	defer wg.Done()

	if err := p.reporter.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		errCh <- fmt.Errorf("%w: %w", ErrReporterRunFailed, err)
	}
}
