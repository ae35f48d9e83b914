package notify

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/vitalens/internal/config"
	"github.com/sanspareilsmyn/vitalens/internal/message"
)

const mqttConnectTimeout = 5 * time.Second

type MQTTPublisher struct {
	client mqtt.Client
	topic  string
	qos    byte
	logger *zap.Logger
}

func NewMQTTPublisher(cfg config.MQTTConfig, logger *zap.Logger) (*MQTTPublisher, error) {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = fmt.Sprintf("vitalens-%d", time.Now().Unix())
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn("MQTT connection lost, will auto-reconnect", zap.Error(err))
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("%w: mqtt %s: timeout", ErrConnectFailed, cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: mqtt %s: %w", ErrConnectFailed, cfg.Broker, err)
	}

	logger.Info("Connected to MQTT broker",
		zap.String("broker", cfg.Broker),
		zap.String("client_id", clientID),
		zap.String("topic", cfg.Topic),
	)
	return &MQTTPublisher{client: client, topic: cfg.Topic, qos: byte(cfg.QoS), logger: logger}, nil
}

func (p *MQTTPublisher) Name() string { return "mqtt" }

// Publish sends the report under <topic>/<session_id> and waits for the
// broker acknowledgement or ctx.
func (p *MQTTPublisher) Publish(ctx context.Context, r message.Report) error {
	data, err := encode(r)
	if err != nil {
		return err
	}

	token := p.client.Publish(p.topic+"/"+r.SessionID, p.qos, false, data)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

func (p *MQTTPublisher) Close() error {
	if p.client.IsConnected() {
		p.client.Disconnect(250)
	}
	return nil
}
