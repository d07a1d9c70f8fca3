// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/ManuGH/nebula/internal/log"
)

// ErrNotConnected is returned while the broker connection is down.
var ErrNotConnected = errors.New("mqtt: not connected")

// MQTTConfig configures the broker connection.
type MQTTConfig struct {
	// Broker is host:port or a full URL (tcp://, ssl://, ws://).
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
	// PublishTimeout bounds the wait for the broker acknowledgement.
	PublishTimeout time.Duration
}

// MQTTPublisher publishes JSON messages to prefix/topic.
type MQTTPublisher struct {
	client  mqtt.Client
	prefix  string
	qos     byte
	timeout time.Duration
	logger  zerolog.Logger
}

// NewMQTTPublisher connects to the broker with auto reconnect enabled.
func NewMQTTPublisher(cfg MQTTConfig) (*MQTTPublisher, error) {
	logger := log.WithComponent("notify")
	broker := cfg.Broker
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		logger.Info().Str("broker", broker).Str("client_id", cfg.ClientID).Msg("mqtt connection established")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn().Err(err).Str("broker", broker).Msg("mqtt connection lost, will auto-reconnect")
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		client.Disconnect(0)
		return nil, fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connection failed: %w", err)
	}
	return newMQTTPublisher(client, cfg, logger), nil
}

func newMQTTPublisher(client mqtt.Client, cfg MQTTConfig, logger zerolog.Logger) *MQTTPublisher {
	prefix := strings.TrimSuffix(cfg.TopicPrefix, "/")
	if prefix == "" {
		prefix = "nebula"
	}
	timeout := cfg.PublishTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &MQTTPublisher{client: client, prefix: prefix, qos: cfg.QoS, timeout: timeout, logger: logger}
}

// TopicFor is the broker topic for a notify topic.
func (p *MQTTPublisher) TopicFor(topic string) string {
	return p.prefix + "/" + topic
}

// Publish sends msg and waits for the broker, bounded by the publish
// timeout and ctx. Status messages are retained so late subscribers see
// the current state.
func (p *MQTTPublisher) Publish(ctx context.Context, topic string, msg Message) error {
	if !p.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("mqtt: encode: %w", err)
	}

	full := p.TopicFor(topic)
	token := p.client.Publish(full, p.qos, msg.Kind == KindStatus, payload)
	timer := time.NewTimer(p.timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
	case <-timer.C:
		return fmt.Errorf("mqtt: publish %s: timeout", full)
	case <-ctx.Done():
		return fmt.Errorf("mqtt: publish %s: %w", full, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: publish %s: %w", full, err)
	}
	p.logger.Debug().Str("topic", full).Int("size", len(payload)).Msg("notification published")
	return nil
}

// Close disconnects with a short grace period.
func (p *MQTTPublisher) Close() error {
	if p.client.IsConnected() {
		p.client.Disconnect(250)
	}
	return nil
}

var _ Publisher = (*MQTTPublisher)(nil)
