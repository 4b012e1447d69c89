// Package metrics exposes Prometheus instruments for the chat server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type config struct {
	namespace string
	registry  prometheus.Registerer
}

type Option func(*config)

// WithNamespace sets the metrics namespace. Default: "chatter".
func WithNamespace(namespace string) Option {
	return func(c *config) {
		c.namespace = namespace
	}
}

// WithRegistry sets the registry the instruments are registered with.
// Default: prometheus.DefaultRegisterer.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *config) {
		c.registry = registry
	}
}

// Metrics counts what happens to chat sessions. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	connectionsAccepted prometheus.Counter
	activeSessions      prometheus.Gauge
	handshakes          *prometheus.CounterVec
	sessionErrors       *prometheus.CounterVec
	transitions         *prometheus.CounterVec
}

func New(opts ...Option) *Metrics {
	c := config{
		namespace: "chatter",
		registry:  prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(&c)
	}

	factory := promauto.With(c.registry)

	return &Metrics{
		connectionsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: c.namespace,
			Name:      "connections_accepted_total",
			Help:      "Total number of TCP connections accepted",
		}),

		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: c.namespace,
			Name:      "active_sessions",
			Help:      "Number of connections that have not closed yet",
		}),

		handshakes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: c.namespace,
			Name:      "handshakes_total",
			Help:      "Handshakes by result",
		}, []string{"result"}),

		sessionErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: c.namespace,
			Name:      "session_errors_total",
			Help:      "Sessions that ended with an error, by error class",
		}, []string{"error"}),

		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: c.namespace,
			Name:      "state_transitions_total",
			Help:      "Connection state transitions by target state",
		}, []string{"to"}),
	}
}

func (m *Metrics) ConnectionAccepted() {
	if m == nil {
		return
	}

	m.connectionsAccepted.Inc()
	m.activeSessions.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}

	m.activeSessions.Dec()
}

// Handshake records the outcome of a handshake, "accepted" or "failed".
func (m *Metrics) Handshake(result string) {
	if m == nil {
		return
	}

	m.handshakes.WithLabelValues(result).Inc()
}

func (m *Metrics) SessionError(class string) {
	if m == nil {
		return
	}

	m.sessionErrors.WithLabelValues(class).Inc()
}

func (m *Metrics) Transition(to string) {
	if m == nil {
		return
	}

	m.transitions.WithLabelValues(to).Inc()
}
