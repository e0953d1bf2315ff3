// Copyright (C) 2025 The AQAL Studio Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability holds the studio's Prometheus metrics.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "aqal"

// =============================================================================
// Metrics
// =============================================================================

// Metrics holds every studio collector on its own registry.
//
// # Description
//
// Each Metrics has a private registry so several services (and tests) can
// coexist in one process. Handler exposes that registry together with
// the Go runtime and process collectors.
//
// # Thread Safety
//
// All Record methods are safe for concurrent use.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
	insightGenerations *prometheus.CounterVec
	insightDuration    prometheus.Histogram
	storeOperations    *prometheus.CounterVec
	storeEvictions     prometheus.Counter
	authAttempts       *prometheus.CounterVec
	activeSessions     prometheus.Gauge
	ttlSweeps          *prometheus.CounterVec
	ttlRemoved         prometheus.Counter
	rateLimited        *prometheus.CounterVec
}

// New creates metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		// Labels: method, route (gin FullPath), status
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),

		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "route"}),

		// Labels: kind (insights, plan, report, packs, map)
		insightGenerations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "insights",
			Name:      "generations_total",
			Help:      "Insight engine runs by kind",
		}, []string{"kind"}),

		insightDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "insights",
			Name:      "generation_duration_seconds",
			Help:      "Insight engine latency in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}),

		// Labels: op (set, get, remove, clear, cleanup), status (success, error)
		storeOperations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Key-value store operations by outcome",
		}, []string{"op", "status"}),

		storeEvictions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "evictions_total",
			Help:      "Entries evicted to make space",
		}),

		// Labels: method (password, guest), status (success, failure)
		authAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "attempts_total",
			Help:      "Sign-in attempts by method and outcome",
		}, []string{"method", "status"}),

		activeSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "active_sessions",
			Help:      "Stored session records at the last sweep",
		}),

		// Labels: status (success, error)
		ttlSweeps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ttl",
			Name:      "sweeps_total",
			Help:      "TTL cleanup sweeps by outcome",
		}, []string{"status"}),

		ttlRemoved: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ttl",
			Name:      "removed_total",
			Help:      "Expired or corrupted entries removed by sweeps",
		}),

		// Labels: route
		rateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter",
		}, []string{"route"}),
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// =============================================================================
// Recording
// =============================================================================

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordHTTPRequest records one finished request. route is the matched
// route template, or "unmatched".
func (m *Metrics) RecordHTTPRequest(method, route string, code int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordInsightGeneration records one engine run.
func (m *Metrics) RecordInsightGeneration(kind string, d time.Duration) {
	m.insightGenerations.WithLabelValues(kind).Inc()
	m.insightDuration.Observe(d.Seconds())
}

// RecordStoreOperation implements kvstore.Metrics.
func (m *Metrics) RecordStoreOperation(op string, success bool) {
	m.storeOperations.WithLabelValues(op, status(success)).Inc()
}

// RecordEvictions implements kvstore.Metrics.
func (m *Metrics) RecordEvictions(n int) {
	m.storeEvictions.Add(float64(n))
}

// RecordAuthAttempt implements auth.Metrics.
func (m *Metrics) RecordAuthAttempt(method string, success bool) {
	s := "success"
	if !success {
		s = "failure"
	}
	m.authAttempts.WithLabelValues(method, s).Inc()
}

// SetActiveSessions sets the session gauge.
func (m *Metrics) SetActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}

// RecordSweep records a TTL sweep and how many entries it removed.
func (m *Metrics) RecordSweep(removed int, success bool) {
	m.ttlSweeps.WithLabelValues(status(success)).Inc()
	m.ttlRemoved.Add(float64(removed))
}

// RecordRateLimited records a rejected request.
func (m *Metrics) RecordRateLimited(route string) {
	m.rateLimited.WithLabelValues(route).Inc()
}
