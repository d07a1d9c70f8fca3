// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig selects the server and the channel prefix messages go to.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Prefix is prepended to the topic; default "nebula".
	Prefix string
}

// RedisPublisher sends JSON messages with PUBLISH to prefix/topic.
type RedisPublisher struct {
	client *redis.Client
	prefix string
}

// NewRedisPublisher connects and pings the server.
func NewRedisPublisher(ctx context.Context, cfg RedisConfig) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis notify: connect %s: %w", cfg.Addr, err)
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "nebula"
	}
	return &RedisPublisher{client: client, prefix: prefix}, nil
}

// Channel is the Redis channel name for a topic.
func (p *RedisPublisher) Channel(topic string) string {
	return p.prefix + "/" + topic
}

func (p *RedisPublisher) Publish(ctx context.Context, topic string, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("redis notify: encode: %w", err)
	}
	if err := p.client.Publish(ctx, p.Channel(topic), payload).Err(); err != nil {
		return fmt.Errorf("redis notify: publish %s: %w", topic, err)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

var _ Publisher = (*RedisPublisher)(nil)
