// Package metrics exposes Prometheus collectors for optimisation runs,
// budget prediction, the prediction cache, the predictor circuit breaker and
// the HTTP API. Everything registers with the default registry and is served
// at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OptimizationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safar_optimizations_total",
			Help: "Optimisation runs by outcome",
		},
		[]string{"outcome"}, // ok, invalid, error
	)

	SelectedStrategy = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safar_selected_strategy_total",
			Help: "Selected itinerary strategy",
		},
		[]string{"strategy", "safety_compliant"},
	)

	ItineraryScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "safar_itinerary_score",
			Help:    "Score of the selected itinerary",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	PredictionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "safar_budget_prediction_duration_seconds",
			Help:    "Budget prediction latency",
			Buckets: []float64{.005, .01, .05, .1, .5, 1, 2, 5, 10},
		},
		[]string{"source"},
	)

	PredictionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safar_budget_prediction_errors_total",
			Help: "Failed budget predictions",
		},
		[]string{"source"},
	)

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safar_cache_hits_total",
			Help: "Cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safar_cache_misses_total",
			Help: "Cache misses",
		},
		[]string{"cache_type"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "safar_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safar_circuit_breaker_state_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safar_api_requests_total",
			Help: "HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "safar_api_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordOptimization records the outcome of one run. strategy is empty for
// failed runs.
func RecordOptimization(outcome, strategy string, safetyCompliant bool, score float64) {
	OptimizationsTotal.WithLabelValues(outcome).Inc()
	if strategy == "" {
		return
	}
	compliant := "false"
	if safetyCompliant {
		compliant = "true"
	}
	SelectedStrategy.WithLabelValues(strategy, compliant).Inc()
	ItineraryScore.Observe(score)
}

// RecordPrediction records one budget prediction attempt.
func RecordPrediction(source string, duration time.Duration, err error) {
	PredictionDuration.WithLabelValues(source).Observe(duration.Seconds())
	if err != nil {
		PredictionErrors.WithLabelValues(source).Inc()
	}
}

// RecordCache records a cache lookup.
func RecordCache(cacheType string, hit bool) {
	if hit {
		CacheHits.WithLabelValues(cacheType).Inc()
		return
	}
	CacheMisses.WithLabelValues(cacheType).Inc()
}

// RecordBreakerTransition records a state change; states are the gobreaker
// names (closed, half-open, open).
func RecordBreakerTransition(name, from, to string) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
	CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
}

func breakerStateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}

// RecordAPIRequest records an HTTP request.
func RecordAPIRequest(method, endpoint, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
