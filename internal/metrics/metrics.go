package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the invoice pipeline instruments. A nil *Metrics is valid and records nothing.
type Metrics struct {
	renderTotal        *prometheus.CounterVec
	renderDuration     prometheus.Histogram
	validationFailures prometheus.Counter
	wizardMerges       *prometheus.CounterVec
	persistFailures    prometheus.Counter
}

// New creates the instruments and registers them on registerer
// (prometheus.DefaultRegisterer when nil).
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		renderTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invoice_render_total",
			Help: "Rendered invoice reports by result.",
		}, []string{"result"}),
		renderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "invoice_render_duration_seconds",
			Help:    "Time spent laying out and writing an invoice PDF.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		validationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "invoice_validation_failures_total",
			Help: "Invoice documents rejected by validation.",
		}),
		wizardMerges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wizard_merge_total",
			Help: "Wizard step merges by step and result.",
		}, []string{"step", "result"}),
		persistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wizard_persist_failures_total",
			Help: "Wizard snapshot writes that failed after all retries.",
		}),
	}

	registerer.MustRegister(
		m.renderTotal,
		m.renderDuration,
		m.validationFailures,
		m.wizardMerges,
		m.persistFailures,
	)
	return m
}

func (m *Metrics) ObserveRender(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.renderTotal.WithLabelValues(result).Inc()
	m.renderDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) IncValidationFailure() {
	if m == nil {
		return
	}
	m.validationFailures.Inc()
}

func (m *Metrics) IncMerge(step, result string) {
	if m == nil {
		return
	}
	m.wizardMerges.WithLabelValues(step, result).Inc()
}

func (m *Metrics) IncPersistFailure() {
	if m == nil {
		return
	}
	m.persistFailures.Inc()
}
