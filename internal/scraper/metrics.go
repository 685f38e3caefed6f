package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for scrape runs. All increment
// methods tolerate a nil receiver so instrumentation stays optional.
type Metrics struct {
	Registry          *prometheus.Registry
	ElementsSeenTotal *prometheus.CounterVec
	ProductsTotal     *prometheus.CounterVec
	SkippedTotal      *prometheus.CounterVec
	RunsTotal         *prometheus.CounterVec
	RunDuration       prometheus.Histogram
}

// NewMetrics constructs and registers all collectors on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	elementsSeen := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrape_elements_seen_total",
			Help: "Container elements matched on the target page.",
		},
		[]string{"target"},
	)
	products := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrape_products_extracted_total",
			Help: "Products successfully extracted from elements.",
		},
		[]string{"target"},
	)
	skipped := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrape_elements_skipped_total",
			Help: "Elements skipped because extraction yielded nothing.",
		},
		[]string{"target"},
	)
	runs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrape_runs_total",
			Help: "Scrape runs by outcome.",
		},
		[]string{"target", "outcome"},
	)
	duration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scrape_run_duration_seconds",
			Help:    "Wall-clock duration of a full scrape run.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	registry.MustRegister(elementsSeen, products, skipped, runs, duration)

	return &Metrics{
		Registry:          registry,
		ElementsSeenTotal: elementsSeen,
		ProductsTotal:     products,
		SkippedTotal:      skipped,
		RunsTotal:         runs,
		RunDuration:       duration,
	}
}

// IncElementSeen counts one matched container element.
func (m *Metrics) IncElementSeen(target string) {
	if m == nil {
		return
	}
	m.ElementsSeenTotal.WithLabelValues(target).Inc()
}

// IncProduct counts one successfully extracted product.
func (m *Metrics) IncProduct(target string) {
	if m == nil {
		return
	}
	m.ProductsTotal.WithLabelValues(target).Inc()
}

// IncSkipped counts one element that produced no usable fields.
func (m *Metrics) IncSkipped(target string) {
	if m == nil {
		return
	}
	m.SkippedTotal.WithLabelValues(target).Inc()
}

// IncRun counts one finished run with its outcome label.
func (m *Metrics) IncRun(target, outcome string) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(target, outcome).Inc()
}

// ObserveRunDuration records how long a run took end to end.
func (m *Metrics) ObserveRunDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RunDuration.Observe(d.Seconds())
}
