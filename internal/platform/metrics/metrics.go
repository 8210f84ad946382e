// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Billing outcome labels.
const (
	OutcomeCommitted         = "committed"
	OutcomeRejected          = "rejected"
	OutcomeInsufficientStock = "insufficient_stock"
	OutcomeConcurrentChange  = "concurrent_change"
	OutcomeTimeout           = "timeout"
	OutcomeInvalidTotal      = "invalid_total"
	OutcomeError             = "error"
)

type Metrics struct {
	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
	BillingOutcomes   *prometheus.CounterVec
	BillingTxDuration prometheus.Histogram
	UnitsDeducted     prometheus.Counter
	StockAdjustments  *prometheus.CounterVec
	CacheLookups      *prometheus.CounterVec
}

// New registers every collector on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "opd",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "opd",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		BillingOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "opd",
			Subsystem: "billing",
			Name:      "attempts_total",
			Help:      "Billing attempts by outcome.",
		}, []string{"outcome"}),
		BillingTxDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "opd",
			Subsystem: "billing",
			Name:      "transaction_duration_seconds",
			Help:      "Wall time of the billing transaction, commit or rollback included.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		UnitsDeducted: f.NewCounter(prometheus.CounterOpts{
			Namespace: "opd",
			Subsystem: "billing",
			Name:      "units_deducted_total",
			Help:      "Inventory units deducted by committed billing transactions.",
		}),
		StockAdjustments: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "opd",
			Subsystem: "pharmacy",
			Name:      "stock_adjustments_total",
			Help:      "Manual quantity adjustments by result.",
		}, []string{"result"}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "opd",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Inventory stats cache lookups by result.",
		}, []string{"result"}),
	}
}

// NewNop returns collectors registered on a private registry. Tests and
// commands that never serve /metrics use it.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
