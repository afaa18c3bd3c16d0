package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the weekly dispatch runs.
type Metrics struct {
	DomainsTotal *prometheus.CounterVec
	RunDuration  prometheus.Histogram
}

// New creates a Metrics instance with all dispatch metrics registered.
func New() *Metrics {
	return &Metrics{
		DomainsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "clearshift_dispatch_domains_total",
			Help: "Per-domain dispatch outcomes by result",
		}, []string{"result"}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "clearshift_dispatch_run_duration_seconds",
			Help:    "Duration of full dispatch runs",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		}),
	}
}

// ObserveDomain records one per-domain outcome.
func (m *Metrics) ObserveDomain(result string) {
	m.DomainsTotal.WithLabelValues(result).Inc()
}

// ObserveRun records the duration of a full run.
func (m *Metrics) ObserveRun(start time.Time) {
	m.RunDuration.Observe(time.Since(start).Seconds())
}
