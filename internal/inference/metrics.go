package inference

import (
	"github.com/darshan-rambhia/hostwatch/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Error kinds reported by hostwatch_predict_errors_total.
const (
	ErrorKindInvalidRequest = "invalid_request"
	ErrorKindInternal       = "internal"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	predictions    *prometheus.CounterVec
	errors         *prometheus.CounterVec
	lastConfidence prometheus.Gauge
}

// NewMetrics registers the service collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		predictions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "hostwatch_predictions_total",
				Help: "Successful classifications by predicted category",
			},
			[]string{"category"},
		),
		errors: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "hostwatch_predict_errors_total",
				Help: "Failed classifications by error kind",
			},
			[]string{"kind"},
		),
		lastConfidence: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "hostwatch_last_confidence",
				Help: "Confidence of the most recent classification, 0-100",
			},
		),
	}
	// Pre-create series so every category is exported from the start.
	for _, c := range model.AllCategories() {
		m.predictions.WithLabelValues(c.String())
	}
	m.errors.WithLabelValues(ErrorKindInvalidRequest)
	m.errors.WithLabelValues(ErrorKindInternal)
	return m
}

func (m *Metrics) observe(r model.ClassificationResult) {
	if m == nil {
		return
	}
	m.predictions.WithLabelValues(r.Label.String()).Inc()
	m.lastConfidence.Set(r.Confidence)
}

func (m *Metrics) failed(kind string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(kind).Inc()
}
