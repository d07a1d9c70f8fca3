// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/nebula/internal/log"
)

// EnvPrefix starts every environment override.
const EnvPrefix = "NEBULA_"

// parseEnv reads key and converts it with parse. Unset, empty and invalid
// values fall back to def; every outcome is logged with its source.
func parseEnv[T any](logger zerolog.Logger, key string, def T, parse func(string) (T, error)) T {
	v, ok := os.LookupEnv(key)
	if !ok {
		logger.Debug().Str("key", key).Interface("default", def).Str("source", "default").Msg("using default value")
		return def
	}
	if v == "" {
		logger.Debug().Str("key", key).Interface("default", def).Str("source", "default").
			Msg("using default value (environment variable is empty)")
		return def
	}
	out, err := parse(v)
	if err != nil {
		logger.Warn().Err(err).Str("key", key).Str("value", v).Interface("default", def).
			Msg("invalid environment variable, using default")
		return def
	}
	ev := logger.Debug().Str("key", key).Str("source", "environment")
	if sensitive(key) {
		ev = ev.Bool("sensitive", true)
	} else {
		ev = ev.Interface("value", out)
	}
	ev.Msg("using environment variable")
	return out
}

func sensitive(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "password") || strings.Contains(k, "token")
}

// ParseString reads a string from the environment or returns def.
func ParseString(key, def string) string {
	return parseEnv(log.WithComponent("config"), key, def, func(s string) (string, error) { return s, nil })
}

// ParseInt reads an integer from the environment or returns def.
func ParseInt(key string, def int) int {
	return parseEnv(log.WithComponent("config"), key, def, strconv.Atoi)
}

// ParseFloat reads a float from the environment or returns def.
func ParseFloat(key string, def float64) float64 {
	return parseEnv(log.WithComponent("config"), key, def, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}

// ParseDuration reads a Go duration ("5s") from the environment or returns def.
func ParseDuration(key string, def time.Duration) time.Duration {
	return parseEnv(log.WithComponent("config"), key, def, time.ParseDuration)
}

// ParseBool reads a boolean from the environment or returns def. It accepts
// true/false, 1/0 and yes/no in any case.
func ParseBool(key string, def bool) bool {
	return parseEnv(log.WithComponent("config"), key, def, func(s string) (bool, error) {
		switch strings.ToLower(s) {
		case "true", "1", "yes":
			return true, nil
		case "false", "0", "no":
			return false, nil
		}
		return false, fmt.Errorf("not a boolean: %q", s)
	})
}
