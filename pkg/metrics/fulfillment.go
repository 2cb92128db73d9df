package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// FulfillmentMetrics records counters for the per-item fulfillment pipeline
// and the reveal gate.
type FulfillmentMetrics struct {
	itemsFulfilled *prometheus.CounterVec
	itemsFailed    *prometheus.CounterVec
	supplierCall   *prometheus.HistogramVec
	reveals        *prometheus.CounterVec
}

// NewFulfillmentMetrics registers the fulfillment metrics on the provided registerer.
func NewFulfillmentMetrics(reg prometheus.Registerer) *FulfillmentMetrics {
	if reg == nil {
		return &FulfillmentMetrics{}
	}
	itemsFulfilled := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_items_total",
		Help: "Line items fulfilled, by source (local/supplier).",
	}, []string{"source"})
	itemsFailed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_item_failures_total",
		Help: "Line items that failed fulfillment, by reason.",
	}, []string{"reason"})
	supplierCall := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "supplier_call_duration_seconds",
		Help:    "Duration of outbound supplier purchase calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"supplier"})
	reveals := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reveal_outcomes_total",
		Help: "Reveal attempts, by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(itemsFulfilled, itemsFailed, supplierCall, reveals)
	return &FulfillmentMetrics{
		itemsFulfilled: itemsFulfilled,
		itemsFailed:    itemsFailed,
		supplierCall:   supplierCall,
		reveals:        reveals,
	}
}

// IncFulfilled counts a fulfilled item for the given source.
func (m *FulfillmentMetrics) IncFulfilled(source string) {
	if m == nil || m.itemsFulfilled == nil {
		return
	}
	m.itemsFulfilled.WithLabelValues(normalizeLabel(source)).Inc()
}

// IncFailed counts a failed item for the given reason.
func (m *FulfillmentMetrics) IncFailed(reason string) {
	if m == nil || m.itemsFailed == nil {
		return
	}
	m.itemsFailed.WithLabelValues(normalizeLabel(reason)).Inc()
}

// ObserveSupplierCall records the duration of one purchase call.
func (m *FulfillmentMetrics) ObserveSupplierCall(supplier string, duration time.Duration) {
	if m == nil || m.supplierCall == nil {
		return
	}
	m.supplierCall.WithLabelValues(normalizeLabel(supplier)).Observe(duration.Seconds())
}

// IncReveal counts a reveal attempt outcome.
func (m *FulfillmentMetrics) IncReveal(outcome string) {
	if m == nil || m.reveals == nil {
		return
	}
	m.reveals.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
