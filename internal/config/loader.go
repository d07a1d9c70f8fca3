// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads the process configuration. Precedence is
// environment over file over defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence.
type Loader struct {
	configPath string
	version    string
	// ConsumedEnvKeys records every environment key the last Load read.
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a loader. An empty configPath loads defaults and
// environment only.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Path returns the file the loader reads.
func (l *Loader) Path() string { return l.configPath }

// Version returns the build version the loader was created with.
func (l *Loader) Version() string { return l.version }

// Load builds the configuration. It does not validate; see Validate.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()
	if l.configPath != "" {
		data, err := readFile(l.configPath)
		if err != nil {
			return AppConfig{}, err
		}
		if err := decodeStrict(data, &cfg); err != nil {
			return AppConfig{}, err
		}
	}
	l.ConsumedEnvKeys = make(map[string]struct{})
	l.mergeEnv(&cfg)
	finish(&cfg)
	return cfg, nil
}

// Parse decodes a YAML document over the defaults without consulting the
// environment.
func Parse(data []byte) (AppConfig, error) {
	cfg := Defaults()
	if err := decodeStrict(data, &cfg); err != nil {
		return AppConfig{}, err
	}
	finish(&cfg)
	return cfg, nil
}

func finish(cfg *AppConfig) {
	cfg.DataDir = os.ExpandEnv(cfg.DataDir)
	cfg.Store.Path = os.ExpandEnv(cfg.Store.Path)
	cfg.Store.Seed = os.ExpandEnv(cfg.Store.Seed)
	if cfg.Store.Path == "" {
		cfg.Store.Path = cfg.DataDir
	}
	for i := range cfg.Channels {
		applyChannelDefaults(&cfg.Channels[i])
	}
}

func readFile(path string) ([]byte, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}
	// #nosec G304 -- the path is chosen by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

// decodeStrict rejects unknown keys and trailing documents.
func decodeStrict(data []byte, cfg *AppConfig) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("%w: %v", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return ErrMultipleDocuments
	}
	return nil
}

func (l *Loader) envString(key, def string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, def)
}

func (l *Loader) envInt(key string, def int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, def)
}

func (l *Loader) envFloat(key string, def float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, def)
}

func (l *Loader) envBool(key string, def bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, def)
}

func (l *Loader) envDuration(key string, def time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, def)
}

// mergeEnv applies NEBULA_* overrides. Channels are file-only.
func (l *Loader) mergeEnv(cfg *AppConfig) {
	cfg.LogLevel = l.envString(EnvPrefix+"LOG_LEVEL", cfg.LogLevel)
	cfg.LogService = l.envString(EnvPrefix+"LOG_SERVICE", cfg.LogService)
	cfg.DataDir = l.envString(EnvPrefix+"DATA_DIR", cfg.DataDir)

	cfg.Store.Backend = l.envString(EnvPrefix+"STORE_BACKEND", cfg.Store.Backend)
	cfg.Store.Path = l.envString(EnvPrefix+"STORE_PATH", cfg.Store.Path)
	cfg.Store.Seed = l.envString(EnvPrefix+"STORE_SEED", cfg.Store.Seed)

	cfg.Ops.ListenAddr = l.envString(EnvPrefix+"OPS_LISTEN_ADDR", cfg.Ops.ListenAddr)
	cfg.Ops.ReadTimeout = l.envDuration(EnvPrefix+"OPS_READ_TIMEOUT", cfg.Ops.ReadTimeout)
	cfg.Ops.WriteTimeout = l.envDuration(EnvPrefix+"OPS_WRITE_TIMEOUT", cfg.Ops.WriteTimeout)
	cfg.Ops.RateLimit = l.envInt(EnvPrefix+"OPS_RATE_LIMIT", cfg.Ops.RateLimit)

	cfg.Notify.Backend = l.envString(EnvPrefix+"NOTIFY_BACKEND", cfg.Notify.Backend)
	cfg.Notify.MaxRate = l.envFloat(EnvPrefix+"NOTIFY_MAX_RATE", cfg.Notify.MaxRate)
	cfg.Notify.Redis.Addr = l.envString(EnvPrefix+"NOTIFY_REDIS_ADDR", cfg.Notify.Redis.Addr)
	cfg.Notify.Redis.Password = l.envString(EnvPrefix+"NOTIFY_REDIS_PASSWORD", cfg.Notify.Redis.Password)
	cfg.Notify.MQTT.Broker = l.envString(EnvPrefix+"NOTIFY_MQTT_BROKER", cfg.Notify.MQTT.Broker)
	cfg.Notify.MQTT.Username = l.envString(EnvPrefix+"NOTIFY_MQTT_USERNAME", cfg.Notify.MQTT.Username)
	cfg.Notify.MQTT.Password = l.envString(EnvPrefix+"NOTIFY_MQTT_PASSWORD", cfg.Notify.MQTT.Password)

	cfg.Telemetry.Enabled = l.envBool(EnvPrefix+"TELEMETRY_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = l.envString(EnvPrefix+"TELEMETRY_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = l.envString(EnvPrefix+"TELEMETRY_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = l.envFloat(EnvPrefix+"TELEMETRY_SAMPLING_RATE", cfg.Telemetry.SamplingRate)

	cfg.Cache.Backend = l.envString(EnvPrefix+"CACHE_BACKEND", cfg.Cache.Backend)
	cfg.Cache.Redis.Addr = l.envString(EnvPrefix+"CACHE_REDIS_ADDR", cfg.Cache.Redis.Addr)
	cfg.Cache.Redis.Password = l.envString(EnvPrefix+"CACHE_REDIS_PASSWORD", cfg.Cache.Redis.Password)
}
