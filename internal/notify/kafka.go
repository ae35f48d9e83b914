package notify

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/vitalens/internal/config"
	"github.com/sanspareilsmyn/vitalens/internal/message"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes reports to the results topic keyed by session id, so
// every report for a subject lands on the same partition.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger *zap.Logger
}

func NewKafkaPublisher(cfg config.KafkaConfig, logger *zap.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.ResultsTopic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	logger.Info("Kafka report writer created",
		zap.String("topic", cfg.ResultsTopic),
		zap.Strings("brokers", cfg.Brokers),
	)
	return &KafkaPublisher{writer: w, topic: cfg.ResultsTopic, logger: logger}
}

func (p *KafkaPublisher) Name() string { return "kafka" }

func (p *KafkaPublisher) Publish(ctx context.Context, r message.Report) error {
	data, err := encode(r)
	if err != nil {
		return err
	}
	msg := kafka.Message{Key: []byte(r.SessionID), Value: data, Time: r.CompletedAt}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	p.logger.Debug("Report written", zap.String("topic", p.topic), zap.String("session_id", r.SessionID))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
