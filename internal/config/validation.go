// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/nebula/internal/device"
	"github.com/ManuGH/nebula/internal/playout"
	"github.com/ManuGH/nebula/internal/predicate"
	"github.com/ManuGH/nebula/internal/validate"
)

// Validate checks the whole configuration and reports every problem at
// once.
func Validate(cfg AppConfig) error {
	v := validate.New()

	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil || cfg.LogLevel == "" {
		v.AddError("logLevel", "invalid log level", cfg.LogLevel)
	}

	v.OneOf("store.backend", cfg.Store.Backend, []string{"sqlite", "memory"})
	if cfg.Store.Backend == "sqlite" {
		v.Directory("store.path", cfg.Store.Path, false)
	}

	v.ListenAddr("ops.listenAddr", cfg.Ops.ListenAddr)
	v.PositiveDuration("ops.readTimeout", cfg.Ops.ReadTimeout)
	v.PositiveDuration("ops.writeTimeout", cfg.Ops.WriteTimeout)
	v.NonNegative("ops.rateLimit", cfg.Ops.RateLimit)

	v.OneOf("notify.backend", cfg.Notify.Backend, []string{"memory", "redis", "mqtt"})
	if cfg.Notify.MaxRate <= 0 {
		v.AddError("notify.maxRate", "must be positive", cfg.Notify.MaxRate)
	}
	switch cfg.Notify.Backend {
	case "redis":
		v.NotEmpty("notify.redis.addr", cfg.Notify.Redis.Addr)
	case "mqtt":
		v.NotEmpty("notify.mqtt.broker", cfg.Notify.MQTT.Broker)
		v.Range("notify.mqtt.qos", cfg.Notify.MQTT.QoS, 0, 2)
	}

	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.exporter", cfg.Telemetry.Exporter, []string{"grpc", "http", "noop"})
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
	}
	v.FloatRange("telemetry.samplingRate", cfg.Telemetry.SamplingRate, 0, 1)

	v.OneOf("cache.backend", cfg.Cache.Backend, []string{"memory", "redis", "none"})
	if cfg.Cache.Backend != "none" {
		v.PositiveDuration("cache.assetTTL", cfg.Cache.AssetTTL)
		v.PositiveDuration("cache.statusTTL", cfg.Cache.StatusTTL)
	}
	if cfg.Cache.Backend == "redis" {
		v.NotEmpty("cache.redis.addr", cfg.Cache.Redis.Addr)
	}

	if len(cfg.Channels) == 0 {
		v.AddError("channels", "at least one channel is required", nil)
	}
	ids := make(map[int]struct{}, len(cfg.Channels))
	outputs := make(map[string]int, len(cfg.Channels))
	for i, ch := range cfg.Channels {
		validateChannel(v, fmt.Sprintf("channels[%d]", i), ch)
		if _, dup := ids[ch.ID]; dup {
			v.AddError(fmt.Sprintf("channels[%d].id", i), "duplicate channel id", ch.ID)
		}
		ids[ch.ID] = struct{}{}

		d := ch.Device
		out := fmt.Sprintf("%s:%d/%d-%d", d.Host, d.AMCPPort, d.Channel, d.Layer)
		if other, dup := outputs[out]; dup && d.Kind == string(device.KindCaspar) {
			v.AddError(fmt.Sprintf("channels[%d].device", i), fmt.Sprintf("same output layer as channel %d", other), out)
		}
		outputs[out] = ch.ID
	}

	return v.Err()
}

func validateChannel(v *validate.Validator, field string, ch ChannelConfig) {
	v.Positive(field+".id", ch.ID)
	v.OneOf(field+".device.kind", ch.Device.Kind, []string{string(device.KindCaspar), string(device.KindSoftPlayer)})
	if ch.Device.Kind == string(device.KindCaspar) {
		v.NotEmpty(field+".device.host", ch.Device.Host)
		v.Port(field+".device.amcpPort", ch.Device.AMCPPort)
		v.Port(field+".device.oscPort", ch.Device.OSCPort)
	}
	v.Positive(field+".device.channel", ch.Device.Channel)
	v.Positive(field+".device.layer", ch.Device.Layer)
	v.PositiveDuration(field+".device.commandTimeout", ch.Device.CommandTimeout)
	v.PositiveDuration(field+".device.pollInterval", ch.Device.PollInterval)
	v.PositiveDuration(field+".device.staleAfter", ch.Device.StaleAfter)
	v.PositiveDuration(field+".stallGrace", ch.StallGrace)
	v.PositiveDuration(field+".cueRetry", ch.CueRetry)

	if ch.FPS <= 0 || ch.FPS > 240 {
		v.AddError(field+".fps", "must be in (0, 240]", ch.FPS)
	}
	if _, err := playout.ParseDayStart(ch.DayStart); err != nil {
		v.AddError(field+".dayStart", err.Error(), ch.DayStart)
	}
	if ch.Timezone != "" {
		if _, err := time.LoadLocation(ch.Timezone); err != nil {
			v.AddError(field+".timezone", err.Error(), ch.Timezone)
		}
	}
	if ch.SkipWhen != "" {
		if _, err := predicate.Compile(ch.SkipWhen); err != nil {
			v.AddError(field+".skipWhen", err.Error(), ch.SkipWhen)
		}
	}
	known := playout.KnownPlugins()
	for j, id := range ch.Plugins {
		v.OneOf(fmt.Sprintf("%s.plugins[%d]", field, j), id, known)
	}
}
