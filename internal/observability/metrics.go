// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nori Contributors

package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// NewRegistry returns a registry with the Go runtime and process collectors
// installed. The global registry is left alone.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Metrics holds nori's application metrics. A nil *Metrics records nothing.
type Metrics struct {
	AuthAttemptsTotal       *prometheus.CounterVec
	SessionsIssuedTotal     *prometheus.CounterVec
	SessionResolutionsTotal *prometheus.CounterVec
	HTTPRequestDuration     *prometheus.HistogramVec
}

// NewMetrics creates the application metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuthAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nori_auth_attempts_total",
				Help: "Registration and login attempts by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		SessionsIssuedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nori_sessions_issued_total",
				Help: "Sessions issued by kind (short or long_lived)",
			},
			[]string{"kind"},
		),
		SessionResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nori_session_resolutions_total",
				Help: "Session lookups by outcome",
			},
			[]string{"outcome"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nori_http_request_duration_seconds",
				Help:    "API request latency by route and status code",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"route", "code"},
		),
	}

	reg.MustRegister(
		m.AuthAttemptsTotal,
		m.SessionsIssuedTotal,
		m.SessionResolutionsTotal,
		m.HTTPRequestDuration,
	)
	return m
}

// RecordAuthAttempt counts a register or login attempt. outcome is "ok" or
// the failure kind.
func (m *Metrics) RecordAuthAttempt(operation, outcome string) {
	if m == nil {
		return
	}
	m.AuthAttemptsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordSessionIssued counts a newly created session.
func (m *Metrics) RecordSessionIssued(longLived bool) {
	if m == nil {
		return
	}
	kind := "short"
	if longLived {
		kind = "long_lived"
	}
	m.SessionsIssuedTotal.WithLabelValues(kind).Inc()
}

// RecordSessionResolution counts a session lookup.
func (m *Metrics) RecordSessionResolution(outcome string) {
	if m == nil {
		return
	}
	m.SessionResolutionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRequest records the latency of a finished API request.
func (m *Metrics) ObserveRequest(route string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestDuration.WithLabelValues(route, strconv.Itoa(code)).Observe(elapsed.Seconds())
}
