package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeSkipped  = "skipped"
	OutcomeRejected = "rejected"
)

// Metrics provides observability for issuances.
type Metrics struct {
	Issuances     *prometheus.CounterVec
	Notifications *prometheus.CounterVec
	IssueLatency  prometheus.Histogram
}

// NewMetrics registers the pipeline metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Issuances: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pdftrack_issuances_total",
			Help: "Tracked document issuances by outcome",
		}, []string{"outcome"}),

		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pdftrack_notifications_total",
			Help: "Collector notifications by outcome",
		}, []string{"outcome"}), // outcome: success, failure, rejected, skipped

		IssueLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "pdftrack_issue_duration_seconds",
			Help:    "Duration of a full issuance including notification",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

func (m *Metrics) IncrementIssuance(outcome string) {
	if m != nil {
		m.Issuances.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncrementNotification(outcome string) {
	if m != nil {
		m.Notifications.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) ObserveIssueLatency(d time.Duration) {
	if m != nil {
		m.IssueLatency.Observe(d.Seconds())
	}
}
