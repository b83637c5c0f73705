package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the collector.
type Metrics struct {
	Events          *prometheus.CounterVec
	StoreErrors     *prometheus.CounterVec
	ForwardFailures prometheus.Counter
}

// New registers the collector metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pdftrack_collector_events_total",
			Help: "Events stored by the collector by event type",
		}, []string{"event"}),

		StoreErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pdftrack_collector_store_errors_total",
			Help: "Event store failures by operation",
		}, []string{"op"}), // op: append, list

		ForwardFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "pdftrack_collector_forward_failures_total",
			Help: "Events that could not be forwarded downstream",
		}),
	}
}

func (m *Metrics) IncrementEvent(event string) {
	if m != nil {
		m.Events.WithLabelValues(event).Inc()
	}
}

func (m *Metrics) IncrementStoreError(op string) {
	if m != nil {
		m.StoreErrors.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) IncrementForwardFailure() {
	if m != nil {
		m.ForwardFailures.Inc()
	}
}
