// Package metrics exposes stream counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/thesyncim/vstream/pkg/rrweb"
)

// StreamMetrics counts rrweb events as they are collected. It implements
// rrweb.Observer.
type StreamMetrics struct {
	registry      *prometheus.Registry
	events        *prometheus.CounterVec
	fullSnapshots prometheus.Counter
	navigation    prometheus.Counter
	errors        prometheus.Counter
	connected     prometheus.Gauge
}

// New creates StreamMetrics registered on a fresh registry, together with
// the Go runtime and process collectors.
func New() *StreamMetrics {
	m := &StreamMetrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vstream_events_total",
			Help: "rrweb events received, by event type label.",
		}, []string{"type"}),
		fullSnapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vstream_fullsnapshots_total",
			Help: "rrweb FullSnapshot events received.",
		}),
		navigation: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vstream_navigation_markers_total",
			Help: "Navigation marker events received.",
		}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vstream_decode_errors_total",
			Help: "Frames that could not be handled.",
		}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vstream_listener_connected",
			Help: "1 while the stream listener holds an open connection.",
		}),
	}

	m.registry.MustRegister(
		m.events,
		m.fullSnapshots,
		m.navigation,
		m.errors,
		m.connected,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveEvent implements rrweb.Observer.
func (m *StreamMetrics) ObserveEvent(ev rrweb.Event) {
	m.events.WithLabelValues(ev.Label()).Inc()
	if ev.IsFullSnapshot() {
		m.fullSnapshots.Inc()
	}
	if ev.IsNavigationMarker() {
		m.navigation.Inc()
	}
}

// ObserveError implements rrweb.Observer.
func (m *StreamMetrics) ObserveError(error) {
	m.errors.Inc()
}

// SetConnected records the listener connection state.
func (m *StreamMetrics) SetConnected(up bool) {
	if up {
		m.connected.Set(1)
		return
	}
	m.connected.Set(0)
}

// Registry returns the underlying registry.
func (m *StreamMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *StreamMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
