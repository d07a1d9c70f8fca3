// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package notify publishes playout state to observers such as operator UIs.
package notify

import (
	"context"
	"fmt"
	"time"
)

// Kind distinguishes the periodic status feed from discrete advances.
type Kind string

const (
	KindStatus  Kind = "status"
	KindAdvance Kind = "advance"
)

// Message is the envelope every backend carries.
type Message struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	ChannelID int       `json:"channel_id"`
	Time      time.Time `json:"time"`
	Data      any       `json:"data,omitempty"`
}

// Publisher delivers messages to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, msg Message) error
	Close() error
}

// Topic is the per-channel topic for kind, e.g. "channel/1/status".
func Topic(channel int, kind Kind) string {
	return fmt.Sprintf("channel/%d/%s", channel, kind)
}

// Config selects and configures a backend.
type Config struct {
	Backend string
	Redis   RedisConfig
	MQTT    MQTTConfig
}

// Open creates the configured publisher. The memory bus is also returned
// so in-process subscribers can attach; it is nil for other backends.
func Open(ctx context.Context, cfg Config) (Publisher, *MemoryBus, error) {
	switch cfg.Backend {
	case "", "memory":
		bus := NewMemoryBus()
		return bus, bus, nil
	case "redis":
		p, err := NewRedisPublisher(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return p, nil, nil
	case "mqtt":
		p, err := NewMQTTPublisher(cfg.MQTT)
		if err != nil {
			return nil, nil, err
		}
		return p, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown notify backend: %s (supported: memory, redis, mqtt)", cfg.Backend)
}
