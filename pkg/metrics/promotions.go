package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PromotionMetrics records promotion evaluation and pricing calculation metrics.
type PromotionMetrics struct {
	evaluations *prometheus.CounterVec
	applied     *prometheus.CounterVec
	discount    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	failures    *prometheus.CounterVec
	cache       *prometheus.CounterVec
}

// NewPromotionMetrics registers the promotion metrics on the provided registerer.
func NewPromotionMetrics(reg prometheus.Registerer) *PromotionMetrics {
	if reg == nil {
		return &PromotionMetrics{}
	}
	evaluations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "promotion_evaluations_total",
		Help: "Promotion evaluations by outcome.",
	}, []string{"outcome"})
	applied := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "promotion_applied_total",
		Help: "Promotions applied to carts.",
	}, []string{"promotion"})
	discount := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "promotion_discount_amount_total",
		Help: "Discount amount granted per promotion.",
	}, []string{"promotion"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pricing_calculation_duration_seconds",
		Help:    "Duration of pricing calculations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pricing_calculation_failures_total",
		Help: "Failed pricing calculations.",
	}, []string{"operation"})
	cache := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "promotion_cache_requests_total",
		Help: "Active promotion cache lookups by result.",
	}, []string{"result"})
	reg.MustRegister(evaluations, applied, discount, duration, failures, cache)
	return &PromotionMetrics{
		evaluations: evaluations,
		applied:     applied,
		discount:    discount,
		duration:    duration,
		failures:    failures,
		cache:       cache,
	}
}

// IncEvaluation counts one promotion evaluation with the given outcome.
func (m *PromotionMetrics) IncEvaluation(outcome string) {
	if m == nil || m.evaluations == nil {
		return
	}
	m.evaluations.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveApplied counts an applied promotion and the discount it granted.
func (m *PromotionMetrics) ObserveApplied(promotion string, amount float64) {
	if m == nil || m.applied == nil {
		return
	}
	label := normalizeLabel(promotion)
	m.applied.WithLabelValues(label).Inc()
	if amount > 0 {
		m.discount.WithLabelValues(label).Add(amount)
	}
}

// ObserveCalculation records the duration of a pricing operation.
func (m *PromotionMetrics) ObserveCalculation(operation string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(operation)).Observe(duration.Seconds())
}

// IncCalculationFailure counts a failed pricing operation.
func (m *PromotionMetrics) IncCalculationFailure(operation string) {
	if m == nil || m.failures == nil {
		return
	}
	m.failures.WithLabelValues(normalizeLabel(operation)).Inc()
}

// IncCacheResult counts an active promotion cache lookup (hit, miss, error).
func (m *PromotionMetrics) IncCacheResult(result string) {
	if m == nil || m.cache == nil {
		return
	}
	m.cache.WithLabelValues(normalizeLabel(result)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
