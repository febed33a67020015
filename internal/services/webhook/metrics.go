package webhook

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts webhook deliveries by event type and outcome.
type Metrics struct {
	events *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pearlbingo",
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Gateway webhook deliveries by event type and outcome.",
		}, []string{"type", "outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.events)
	}
	return m
}

func (m *Metrics) observe(eventType, outcome string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(eventType, outcome).Inc()
}
