// Package metrics exposes Prometheus metrics for database operations.
//
// Metrics are derived from log entries: Attach registers a log sink, so
// every operation the facade logs is also counted and timed. Each Metrics
// owns a private registry, which keeps tests isolated and avoids the
// global default registry.
package metrics

import (
	"net/http"

	"github.com/jpl-au/cmsdb/internal/log"
	"github.com/jpl-au/cmsdb/internal/version"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Source is the log source the facade writes under.
const Source = "database"

// Actions with dedicated metrics.
const (
	ActionConnect  = "connect"
	ActionShutdown = "shutdown"
)

// Metrics holds the collectors.
type Metrics struct {
	reg *prometheus.Registry

	ops       *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	connects  *prometheus.CounterVec
	connected prometheus.Gauge
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	info := version.Get()
	f.NewGauge(prometheus.GaugeOpts{
		Name: "cmsdb_build_info",
		Help: "Build information; always 1.",
		ConstLabels: prometheus.Labels{
			"version":    info.BuildTag,
			"commit":     info.GitCommit,
			"go_version": info.GoVersion,
		},
	}).Set(1)
	return &Metrics{
		reg: reg,
		ops: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cmsdb_operations_total",
			Help: "Database operations by operation, collection and status.",
		}, []string{"op", "collection", "status"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cmsdb_operation_duration_seconds",
			Help:    "Database operation latency.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"op"}),
		connects: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cmsdb_connection_attempts_total",
			Help: "Backend connection attempts by status.",
		}, []string{"status"}),
		connected: f.NewGauge(prometheus.GaugeOpts{
			Name: "cmsdb_connected",
			Help: "1 while a backend connection is established.",
		}),
	}
}

// Observe records one log entry. Entries from other sources are ignored.
func (m *Metrics) Observe(e log.Entry) {
	if e.Source != Source {
		return
	}
	status := "ok"
	if !e.Success {
		status = "error"
	}

	switch e.Action {
	case ActionConnect:
		m.connects.WithLabelValues(status).Inc()
		if e.Success {
			m.connected.Set(1)
		}
	case ActionShutdown:
		m.connected.Set(0)
	default:
		m.ops.WithLabelValues(e.Action, e.Collection, status).Inc()
		m.duration.WithLabelValues(e.Action).Observe(e.Duration().Seconds())
	}
}

// Attach subscribes m to the log and returns a function that detaches it.
func (m *Metrics) Attach() (detach func()) {
	return log.AddSink(m.Observe)
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
