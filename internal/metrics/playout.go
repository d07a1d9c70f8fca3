// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CommandsTotal counts channel commands by outcome (ok|rejected|failed).
	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nebula_playout_commands_total",
		Help: "Channel commands by command name and outcome",
	}, []string{"channel", "command", "outcome"})

	// AdvancesTotal counts detected on-air advances.
	AdvancesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nebula_playout_advances_total",
		Help: "On-air advances detected per channel",
	}, []string{"channel", "kind"}) // kind=auto|stall_take|play

	// AsRunWritesTotal counts as-run log writes (open|close) by outcome.
	AsRunWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nebula_asrun_writes_total",
		Help: "As-run log writes by operation and outcome",
	}, []string{"channel", "op", "outcome"})

	// ResolverExhaustedTotal counts next-item resolutions that gave up.
	ResolverExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nebula_resolver_exhausted_total",
		Help: "Next-item resolutions that found no playable item within the retry bound",
	}, []string{"channel"})

	// AutoCuesTotal counts event-driven auto cues by event run mode.
	AutoCuesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nebula_autocue_total",
		Help: "Event-driven auto cues by run mode",
	}, []string{"channel", "run_mode"})

	// RecoveriesTotal counts recovery runs by outcome.
	RecoveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nebula_recoveries_total",
		Help: "Channel recoveries by outcome (played|cued|idle|failed)",
	}, []string{"channel", "outcome"})

	onAirPosition = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "nebula_onair_position_seconds",
		Help: "Position of the on-air clip in seconds",
	}, []string{"channel"})

	onAirRemaining = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "nebula_onair_remaining_seconds",
		Help: "Remaining time of the on-air clip in seconds",
	}, []string{"channel"})
)

func ch(channel int) string { return strconv.Itoa(channel) }

// IncCommand records a command outcome.
func IncCommand(channel int, command, outcome string) {
	CommandsTotal.WithLabelValues(ch(channel), command, outcome).Inc()
}

// IncAdvance records an on-air advance.
func IncAdvance(channel int, kind string) {
	AdvancesTotal.WithLabelValues(ch(channel), kind).Inc()
}

// IncAsRunWrite records an as-run log write.
func IncAsRunWrite(channel int, op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	AsRunWritesTotal.WithLabelValues(ch(channel), op, outcome).Inc()
}

// IncResolverExhausted records a give-up of the next-item resolver.
func IncResolverExhausted(channel int) {
	ResolverExhaustedTotal.WithLabelValues(ch(channel)).Inc()
}

// IncAutoCue records an event-driven auto cue.
func IncAutoCue(channel int, runMode string) {
	AutoCuesTotal.WithLabelValues(ch(channel), runMode).Inc()
}

// IncRecovery records a recovery run outcome.
func IncRecovery(channel int, outcome string) {
	RecoveriesTotal.WithLabelValues(ch(channel), outcome).Inc()
}

// SetOnAir records position and remaining time of the on-air clip.
func SetOnAir(channel int, position, duration float64) {
	onAirPosition.WithLabelValues(ch(channel)).Set(position)
	remaining := duration - position
	if remaining < 0 {
		remaining = 0
	}
	onAirRemaining.WithLabelValues(ch(channel)).Set(remaining)
}
