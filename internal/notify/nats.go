package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/vitalens/internal/config"
	"github.com/sanspareilsmyn/vitalens/internal/message"
)

type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	logger  *zap.Logger
}

func NewNATSPublisher(cfg config.NATSConfig, logger *zap.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(
		cfg.URL,
		nats.Name("vitalens"),
		nats.Timeout(3*time.Second),
		nats.ReconnectWait(500*time.Millisecond),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: nats %s: %w", ErrConnectFailed, cfg.URL, err)
	}
	logger.Info("Connected to NATS", zap.String("url", cfg.URL), zap.String("subject", cfg.Subject))
	return &NATSPublisher{conn: nc, subject: cfg.Subject, logger: logger}, nil
}

func (p *NATSPublisher) Name() string { return "nats" }

func (p *NATSPublisher) Publish(ctx context.Context, r message.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encode(r)
	if err != nil {
		return err
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// Close drains pending messages before closing the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
