// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// AppConfig is the whole process configuration.
type AppConfig struct {
	LogLevel   string `yaml:"logLevel"`
	LogService string `yaml:"logService"`
	DataDir    string `yaml:"dataDir"`

	Store     StoreConfig     `yaml:"store"`
	Ops       OpsConfig       `yaml:"ops"`
	Notify    NotifyConfig    `yaml:"notify"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Cache     CacheConfig     `yaml:"cache"`

	Channels []ChannelConfig `yaml:"channels"`
}

// StoreConfig selects the rundown store.
type StoreConfig struct {
	// Backend is sqlite or memory.
	Backend string `yaml:"backend"`
	// Path is the directory holding rundown.sqlite; defaults to dataDir.
	Path string `yaml:"path"`
	// Seed is an optional rundown YAML file loaded at startup.
	Seed string `yaml:"seed"`
}

// OpsConfig is the operations listener (health, readiness, metrics).
type OpsConfig struct {
	ListenAddr   string        `yaml:"listenAddr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	// RateLimit is requests per minute per client; 0 disables limiting.
	RateLimit int `yaml:"rateLimit"`
}

// NotifyConfig selects the notification backend.
type NotifyConfig struct {
	Backend        string            `yaml:"backend"`
	MaxRate        float64           `yaml:"maxRate"`
	PublishTimeout time.Duration     `yaml:"publishTimeout"`
	Redis          RedisNotifyConfig `yaml:"redis"`
	MQTT           MQTTConfig        `yaml:"mqtt"`
}

// RedisNotifyConfig configures the Redis publisher.
type RedisNotifyConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// Channel prefixes every PUBLISH channel.
	Channel string `yaml:"channel"`
}

// MQTTConfig configures the MQTT publisher.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"clientID"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topicPrefix"`
	QoS         int    `yaml:"qos"`
}

// TelemetryConfig configures tracing export.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
	Environment  string  `yaml:"environment"`
}

// CacheConfig configures the read-through cache in front of asset and
// playout status lookups.
type CacheConfig struct {
	// Backend is memory, redis or none.
	Backend   string           `yaml:"backend"`
	AssetTTL  time.Duration    `yaml:"assetTTL"`
	StatusTTL time.Duration    `yaml:"statusTTL"`
	Redis     RedisCacheConfig `yaml:"redis"`
}

// RedisCacheConfig configures the Redis cache backend.
type RedisCacheConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ChannelConfig is one playout channel. A running channel never sees a
// changed ChannelConfig; the daemon restarts it instead.
type ChannelConfig struct {
	ID     int          `yaml:"id"`
	Name   string       `yaml:"name"`
	Device DeviceConfig `yaml:"device"`

	FPS float64 `yaml:"fps"`
	// DayStart is the broadcast day boundary, "HH:MM".
	DayStart string `yaml:"dayStart"`
	// Timezone is an IANA zone name; empty means local time.
	Timezone string `yaml:"timezone"`

	LiveSource   string   `yaml:"liveSource"`
	LiveProducer string   `yaml:"liveProducer"`
	Plugins      []string `yaml:"plugins"`
	// SkipWhen is a predicate; matching items are skipped like SKIP items.
	SkipWhen string `yaml:"skipWhen"`

	StallGrace     time.Duration `yaml:"stallGrace"`
	CueRetry       time.Duration `yaml:"cueRetry"`
	RecoverOnStart *bool         `yaml:"recoverOnStart"`
}

// DeviceConfig addresses the playback device of one channel.
type DeviceConfig struct {
	// Kind is casparcg or softplayer.
	Kind           string        `yaml:"kind"`
	Host           string        `yaml:"host"`
	AMCPPort       int           `yaml:"amcpPort"`
	OSCPort        int           `yaml:"oscPort"`
	Channel        int           `yaml:"channel"`
	Layer          int           `yaml:"layer"`
	CommandTimeout time.Duration `yaml:"commandTimeout"`
	PollInterval   time.Duration `yaml:"pollInterval"`
	// StaleAfter marks telemetry older than this as unreachable.
	StaleAfter time.Duration `yaml:"staleAfter"`
}

// Recover reports whether the channel rebuilds its state on start.
func (c ChannelConfig) Recover() bool {
	return c.RecoverOnStart == nil || *c.RecoverOnStart
}

// Channel returns the channel with id.
func (c AppConfig) Channel(id int) (ChannelConfig, bool) {
	for _, ch := range c.Channels {
		if ch.ID == id {
			return ch, true
		}
	}
	return ChannelConfig{}, false
}
