// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OSCPacketsTotal counts telemetry datagrams by listener port and outcome.
	OSCPacketsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nebula_osc_packets_total",
		Help: "Telemetry datagrams received by listener port and outcome",
	}, []string{"port", "outcome"}) // outcome=ok|dropped|panic

	amcpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nebula_amcp_requests_total",
		Help: "AMCP command round trips by verb and status class",
	}, []string{"verb", "status_class"})

	amcpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nebula_amcp_request_duration_seconds",
		Help:    "Duration of AMCP command round trips",
		Buckets: prometheus.ExponentialBuckets(0.002, 2.0, 12),
	}, []string{"verb", "status_class"})

	// DeviceBadRequests counts failed telemetry/status reads per channel.
	DeviceBadRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nebula_device_bad_requests_total",
		Help: "Failed device status reads per channel",
	}, []string{"channel"})

	// DeviceReconnects counts forced reconnects after consecutive failures.
	DeviceReconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nebula_device_reconnects_total",
		Help: "Forced device reconnects per channel",
	}, []string{"channel", "outcome"})

	deviceConnected = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "nebula_device_connected",
		Help: "Whether the channel's device currently answers status reads (1) or not (0)",
	}, []string{"channel"})
)

// IncOSCPacket records one telemetry datagram outcome for a listener port.
func IncOSCPacket(port int, outcome string) {
	OSCPacketsTotal.WithLabelValues(strconv.Itoa(port), outcome).Inc()
}

// ObserveAMCP records one AMCP round trip.
func ObserveAMCP(verb string, code int, err error, d time.Duration) {
	class := amcpStatusClass(code, err)
	amcpRequestsTotal.WithLabelValues(verb, class).Inc()
	amcpRequestDuration.WithLabelValues(verb, class).Observe(d.Seconds())
}

func amcpStatusClass(code int, err error) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 200 && code < 300:
		return "2xx"
	case err != nil:
		return "error"
	}
	return "unknown"
}

// IncDeviceBadRequest records a failed status read.
func IncDeviceBadRequest(channel int) {
	DeviceBadRequests.WithLabelValues(strconv.Itoa(channel)).Inc()
}

// IncDeviceReconnect records a forced reconnect and its outcome (ok|failed).
func IncDeviceReconnect(channel int, outcome string) {
	DeviceReconnects.WithLabelValues(strconv.Itoa(channel), outcome).Inc()
}

// SetDeviceConnected flips the per-channel connectivity gauge.
func SetDeviceConnected(channel int, up bool) {
	v := 0.0
	if up {
		v = 1.0
	}
	deviceConnected.WithLabelValues(strconv.Itoa(channel)).Set(v)
}
