// Package notify publishes completion reports to message brokers.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sanspareilsmyn/vitalens/internal/config"
	"github.com/sanspareilsmyn/vitalens/internal/message"
)

// Publisher delivers a report to one destination.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, r message.Report) error
	Close() error
}

// Multi fans a report out to every publisher it holds.
type Multi []Publisher

func (m Multi) Name() string { return "multi" }

// Publish attempts every publisher and joins their failures.
func (m Multi) Publish(ctx context.Context, r message.Report) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, r); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// New connects every publisher enabled in cfg. Publishers that were already
// connected are closed if a later one fails.
func New(cfg *config.Config, logger *zap.Logger) (Multi, error) {
	var pubs Multi

	if cfg.Kafka.Enabled && cfg.Kafka.ResultsTopic != "" {
		pubs = append(pubs, NewKafkaPublisher(cfg.Kafka, logger.Named("kafka-publisher")))
	}

	if cfg.NATS.Enabled {
		p, err := NewNATSPublisher(cfg.NATS, logger.Named("nats-publisher"))
		if err != nil {
			_ = pubs.Close()
			return nil, err
		}
		pubs = append(pubs, p)
	}

	if cfg.MQTT.Enabled {
		p, err := NewMQTTPublisher(cfg.MQTT, logger.Named("mqtt-publisher"))
		if err != nil {
			_ = pubs.Close()
			return nil, err
		}
		pubs = append(pubs, p)
	}

	names := make([]string, 0, len(pubs))
	for _, p := range pubs {
		names = append(names, p.Name())
	}
	logger.Info("Report publishers configured", zap.Strings("publishers", names))
	return pubs, nil
}

func encode(r message.Report) ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncodeReport, err)
	}
	return data, nil
}
