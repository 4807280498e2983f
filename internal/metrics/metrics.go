package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Well outcomes counted per calculation.
const (
	OutcomeTransferred = "transferred"
	OutcomeErrored     = "errored"
	OutcomeUnbinned    = "unbinned"
)

// Metrics provides observability for plate calculations.
type Metrics struct {
	// Calculations by variant and status ("ok" or an error class)
	Calculations *prometheus.CounterVec

	// Wells by variant and outcome
	Wells *prometheus.CounterVec

	// Calculation latency by variant
	Duration *prometheus.HistogramVec
}

// New creates a Metrics instance with all collectors registered on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Calculations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "plate_calculations_total",
			Help: "Total plate calculations by variant and status",
		}, []string{"variant", "status"}),

		Wells: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "plate_calculation_wells_total",
			Help: "Wells processed by plate calculations, by variant and outcome",
		}, []string{"variant", "outcome"}),

		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "plate_calculation_duration_seconds",
			Help:    "Duration of plate calculations",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}, []string{"variant"}),
	}
}

// ObserveCalculation records the outcome and duration of one calculation.
func (m *Metrics) ObserveCalculation(variant, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.Calculations.WithLabelValues(variant, status).Inc()
	m.Duration.WithLabelValues(variant).Observe(d.Seconds())
}

// AddWells counts n wells with the given outcome.
func (m *Metrics) AddWells(variant, outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Wells.WithLabelValues(variant, outcome).Add(float64(n))
}
