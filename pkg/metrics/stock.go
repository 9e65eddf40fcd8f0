package metrics

import "github.com/prometheus/client_golang/prometheus"

// Mutation outcomes recorded by StockMetrics.
const (
	OutcomeApplied           = "applied"
	OutcomeNotFound          = "not_found"
	OutcomeInsufficientStock = "insufficient_stock"
	OutcomeConflict          = "conflict"
	OutcomeError             = "error"
)

// StockMetrics tracks stock mutations, counter clamps and ledger drift.
type StockMetrics struct {
	mutations  *prometheus.CounterVec
	clamps     *prometheus.CounterVec
	mismatches prometheus.Gauge
}

// NewStockMetrics registers the stock metrics on the provided registerer.
// A nil registerer yields a no-op collector.
func NewStockMetrics(reg prometheus.Registerer) *StockMetrics {
	if reg == nil {
		return &StockMetrics{}
	}
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "terra_stock_mutations_total",
		Help: "Stock mutations by operation and outcome.",
	}, []string{"operation", "outcome"})
	clamps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "terra_stock_clamp_total",
		Help: "Mutations whose counters were clamped at zero.",
	}, []string{"operation"})
	mismatches := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "terra_stock_reconcile_mismatches",
		Help: "Size entries whose counters disagree with the ledger at the last reconciliation.",
	})
	reg.MustRegister(mutations, clamps, mismatches)
	return &StockMetrics{
		mutations:  mutations,
		clamps:     clamps,
		mismatches: mismatches,
	}
}

// ObserveMutation counts one mutation attempt.
func (s *StockMetrics) ObserveMutation(operation, outcome string) {
	if s == nil || s.mutations == nil {
		return
	}
	s.mutations.WithLabelValues(normalizeLabel(operation), normalizeLabel(outcome)).Inc()
}

// IncClamp counts a clamped counter update.
func (s *StockMetrics) IncClamp(operation string) {
	if s == nil || s.clamps == nil {
		return
	}
	s.clamps.WithLabelValues(normalizeLabel(operation)).Inc()
}

// SetReconcileMismatches publishes the mismatch count of the latest run.
func (s *StockMetrics) SetReconcileMismatches(count int) {
	if s == nil || s.mismatches == nil {
		return
	}
	s.mismatches.Set(float64(count))
}
