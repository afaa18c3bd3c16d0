package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the verification module. Check outcomes
// carry a result label so dashboards can separate matches, misses and lookup
// failures.
type Metrics struct {
	ChecksTotal   *prometheus.CounterVec
	CheckDuration prometheus.Histogram
	Initiated     prometheus.Counter
}

// New creates a Metrics instance with all verification metrics registered.
func New() *Metrics {
	return &Metrics{
		ChecksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "clearshift_verification_checks_total",
			Help: "Total DNS verification checks by result",
		}, []string{"result"}),
		CheckDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "clearshift_verification_check_duration_seconds",
			Help:    "Duration of DNS verification checks including the TXT lookup",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		Initiated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "clearshift_verifications_initiated_total",
			Help: "Total verification challenges issued",
		}),
	}
}

// ObserveCheck records one check outcome and its duration.
func (m *Metrics) ObserveCheck(result string, start time.Time) {
	m.ChecksTotal.WithLabelValues(result).Inc()
	m.CheckDuration.Observe(time.Since(start).Seconds())
}

// IncrementInitiated records a newly issued challenge.
func (m *Metrics) IncrementInitiated() {
	m.Initiated.Inc()
}
