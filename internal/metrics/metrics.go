// Package metrics exposes coordination counters in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "campus"

// Metrics holds every collector on a private registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Connections    prometheus.Gauge
	Events         *prometheus.CounterVec
	RejectedEvents *prometheus.CounterVec
	PolicyDenials  *prometheus.CounterVec
	DroppedFrames  prometheus.Counter
	RelayedSignals prometheus.Counter
	DroppedAudit   prometheus.Counter
	EventLatency   prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Open event channel connections.",
		}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Inbound events processed, by event name.",
		}, []string{"event"}),
		RejectedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_rejected_total",
			Help:      "Inbound events refused before reaching state, by reason.",
		}, []string{"reason"}),
		PolicyDenials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "policy_denials_total",
			Help:      "Admission denials sent to clients, by event.",
		}, []string{"event"}),
		DroppedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_frames_total",
			Help:      "Outbound frames dropped because a send buffer was full or closed.",
		}),
		RelayedSignals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relayed_signals_total",
			Help:      "Signaling payloads forwarded between peers.",
		}),
		DroppedAudit: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_dropped_total",
			Help:      "Audit entries dropped because the writer queue was full.",
		}),
		EventLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_duration_seconds",
			Help:      "Time to route one inbound event and apply its effects.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 8),
		}),
	}

	m.registry.MustRegister(
		m.Connections,
		m.Events,
		m.RejectedEvents,
		m.PolicyDenials,
		m.DroppedFrames,
		m.RelayedSignals,
		m.DroppedAudit,
		m.EventLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ConnectionOpened() {
	if m != nil {
		m.Connections.Inc()
	}
}

func (m *Metrics) ConnectionClosed() {
	if m != nil {
		m.Connections.Dec()
	}
}

func (m *Metrics) EventProcessed(event string, seconds float64) {
	if m != nil {
		m.Events.WithLabelValues(event).Inc()
		m.EventLatency.Observe(seconds)
	}
}

func (m *Metrics) EventRejected(reason string) {
	if m != nil {
		m.RejectedEvents.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) PolicyDenied(event string) {
	if m != nil {
		m.PolicyDenials.WithLabelValues(event).Inc()
	}
}

func (m *Metrics) FrameDropped() {
	if m != nil {
		m.DroppedFrames.Inc()
	}
}

func (m *Metrics) SignalRelayed() {
	if m != nil {
		m.RelayedSignals.Inc()
	}
}

func (m *Metrics) AuditDropped() {
	if m != nil {
		m.DroppedAudit.Inc()
	}
}
