package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use as a nil pointer; every recorder becomes a no-op.
type Metrics struct {
	reg *prometheus.Registry

	connections prometheus.Gauge
	online      prometheus.Gauge
	events      *prometheus.CounterVec
	dropped     *prometheus.CounterVec
	outbound    *prometheus.CounterVec
	stored      *prometheus.CounterVec
	slow        prometheus.Counter
	uploads     *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chat",
			Name:      "ws_connections",
			Help:      "Open websocket connections.",
		}),
		online: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chat",
			Name:      "users_online",
			Help:      "Connections that completed user_join.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat",
			Name:      "events_total",
			Help:      "Inbound events handled by the session router.",
		}, []string{"type"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat",
			Name:      "events_dropped_total",
			Help:      "Inbound events silently ignored.",
		}, []string{"reason"}),
		outbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat",
			Name:      "outbound_frames_total",
			Help:      "Frames queued to sockets.",
		}, []string{"type"}),
		stored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat",
			Name:      "messages_stored_total",
			Help:      "Messages appended to channel or private logs.",
		}, []string{"scope"}),
		slow: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chat",
			Name:      "slow_consumers_total",
			Help:      "Sockets closed because their send queue was full.",
		}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat",
			Name:      "uploads_total",
			Help:      "File uploads by result.",
		}, []string{"result"}),
	}

	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.connections, m.online, m.events, m.dropped, m.outbound, m.stored, m.slow, m.uploads,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) ConnOpened() {
	if m != nil {
		m.connections.Inc()
	}
}

func (m *Metrics) ConnClosed() {
	if m != nil {
		m.connections.Dec()
	}
}

func (m *Metrics) SetOnline(n int) {
	if m != nil {
		m.online.Set(float64(n))
	}
}

func (m *Metrics) Event(typ string) {
	if m != nil {
		m.events.WithLabelValues(typ).Inc()
	}
}

func (m *Metrics) Dropped(reason string) {
	if m != nil {
		m.dropped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) Outbound(typ string, n int) {
	if m != nil && n > 0 {
		m.outbound.WithLabelValues(typ).Add(float64(n))
	}
}

func (m *Metrics) Stored(scope string) {
	if m != nil {
		m.stored.WithLabelValues(scope).Inc()
	}
}

func (m *Metrics) SlowConsumer() {
	if m != nil {
		m.slow.Inc()
	}
}

func (m *Metrics) Upload(result string) {
	if m != nil {
		m.uploads.WithLabelValues(result).Inc()
	}
}
