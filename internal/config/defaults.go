// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"time"

	"github.com/ManuGH/nebula/internal/device"
	"github.com/ManuGH/nebula/internal/notify"
)

const (
	DefaultConfigPath = "/etc/nebula/config.yaml"
	DefaultDataDir    = "/var/lib/nebula"
	DefaultListenAddr = ":9090"

	defaultAMCPPort = 5250
	defaultOSCPort  = 6250
	defaultLayer    = 10
)

// Defaults returns the configuration used for every key the file and the
// environment leave unset. Channel defaults are applied per channel by
// applyChannelDefaults.
func Defaults() AppConfig {
	return AppConfig{
		LogLevel:   "info",
		LogService: "nebula",
		DataDir:    DefaultDataDir,
		Store:      StoreConfig{Backend: "sqlite"},
		Ops: OpsConfig{
			ListenAddr:   DefaultListenAddr,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			RateLimit:    120,
		},
		Notify: NotifyConfig{
			Backend:        "memory",
			MaxRate:        notify.DefaultMaxRate,
			PublishTimeout: 500 * time.Millisecond,
			Redis:          RedisNotifyConfig{Addr: "127.0.0.1:6379", Channel: "nebula"},
			MQTT:           MQTTConfig{Broker: "tcp://127.0.0.1:1883", ClientID: "nebula-playout", TopicPrefix: "nebula"},
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
			Environment:  "production",
		},
		Cache: CacheConfig{
			Backend:   "memory",
			AssetTTL:  30 * time.Second,
			StatusTTL: 5 * time.Second,
			Redis:     RedisCacheConfig{Addr: "127.0.0.1:6379"},
		},
	}
}

func applyChannelDefaults(ch *ChannelConfig) {
	if ch.Name == "" {
		ch.Name = fmt.Sprintf("channel-%d", ch.ID)
	}
	d := &ch.Device
	if d.Kind == "" {
		d.Kind = string(device.KindCaspar)
	}
	if d.Host == "" {
		d.Host = "127.0.0.1"
	}
	if d.AMCPPort == 0 {
		d.AMCPPort = defaultAMCPPort
	}
	if d.OSCPort == 0 {
		d.OSCPort = defaultOSCPort
	}
	if d.Channel == 0 {
		d.Channel = 1
	}
	if d.Layer == 0 {
		d.Layer = defaultLayer
	}
	if d.CommandTimeout == 0 {
		d.CommandTimeout = 5 * time.Second
	}
	if d.PollInterval == 0 {
		d.PollInterval = 200 * time.Millisecond
	}
	if d.StaleAfter == 0 {
		d.StaleAfter = 2 * time.Second
	}
	if ch.FPS == 0 {
		ch.FPS = device.DefaultFPS
	}
	if ch.LiveSource == "" {
		ch.LiveSource = "DECKLINK 1"
	}
	if ch.LiveProducer == "" {
		ch.LiveProducer = "decklink"
	}
	if ch.StallGrace == 0 {
		ch.StallGrace = 3 * time.Second
	}
	if ch.CueRetry == 0 {
		ch.CueRetry = 5 * time.Second
	}
}
