package enrich

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for enrichment passes. Increment
// methods tolerate a nil receiver.
type Metrics struct {
	Registry            *prometheus.Registry
	BatchesTotal        *prometheus.CounterVec
	ProductsTotal       *prometheus.CounterVec
	ProviderErrorsTotal prometheus.Counter
}

// NewMetrics constructs and registers all collectors on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	batches := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrich_batches_total",
			Help: "Enrichment batches by outcome (parsed or fallback).",
		},
		[]string{"outcome"},
	)
	products := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrich_products_total",
			Help: "Products categorized, by mode (provider or fallback).",
		},
		[]string{"mode"},
	)
	providerErrors := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "enrich_provider_errors_total",
			Help: "Failed or unusable provider calls.",
		},
	)

	registry.MustRegister(batches, products, providerErrors)

	return &Metrics{
		Registry:            registry,
		BatchesTotal:        batches,
		ProductsTotal:       products,
		ProviderErrorsTotal: providerErrors,
	}
}

// IncBatch counts one finalized batch with its outcome label.
func (m *Metrics) IncBatch(outcome string) {
	if m == nil {
		return
	}
	m.BatchesTotal.WithLabelValues(outcome).Inc()
}

// IncProduct counts one categorized product by mode.
func (m *Metrics) IncProduct(mode string) {
	if m == nil {
		return
	}
	m.ProductsTotal.WithLabelValues(mode).Inc()
}

// IncProviderError counts one failed or unusable provider call.
func (m *Metrics) IncProviderError() {
	if m == nil {
		return
	}
	m.ProviderErrorsTotal.Inc()
}
