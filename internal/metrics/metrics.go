// Package metrics exposes Prometheus instrumentation for registrar calls.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels
const (
	OutcomeSuccess        = "success"
	OutcomeFailure        = "failure"
	OutcomeTransportError = "transport_error"
	OutcomeConfigError    = "config_error"
)

var (
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	predicateTotal  *prometheus.CounterVec

	metricsOnce       sync.Once
	metricsRegistered bool
)

// RegistrarMetrics records registrar request outcomes. A nil
// *RegistrarMetrics is valid and records nothing.
type RegistrarMetrics struct{}

// NewRegistrarMetrics creates a new RegistrarMetrics instance.
func NewRegistrarMetrics() *RegistrarMetrics {
	return &RegistrarMetrics{}
}

// InitMetrics registers all collectors with the default registry.
// Safe to call more than once.
func InitMetrics() {
	metricsOnce.Do(func() {
		requestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pidops_registrar_requests_total",
				Help: "Total number of registrar requests by operation and outcome",
			},
			[]string{"operation", "outcome"},
		)

		requestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pidops_registrar_request_duration_seconds",
				Help:    "Duration of registrar requests in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"operation"},
		)

		predicateTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pidops_identifier_checks_total",
				Help: "Total number of entity identifier checks by result",
			},
			[]string{"identifier", "result"},
		)

		metricsRegistered = true
	})
}

// RecordRequest records one registrar request.
func (m *RegistrarMetrics) RecordRequest(operation, outcome string, durationSeconds float64) {
	if m == nil || !metricsRegistered {
		return
	}

	if requestsTotal != nil {
		requestsTotal.WithLabelValues(operation, outcome).Inc()
	}

	if requestDuration != nil && outcome != OutcomeConfigError {
		requestDuration.WithLabelValues(operation).Observe(durationSeconds)
	}
}

// RecordCheck records one identifier predicate evaluation.
func (m *RegistrarMetrics) RecordCheck(identifierName string, has bool) {
	if m == nil || !metricsRegistered || predicateTotal == nil {
		return
	}
	result := "absent"
	if has {
		result = "present"
	}
	predicateTotal.WithLabelValues(identifierName, result).Inc()
}

// GetRequestsTotal returns the request counter for testing.
func GetRequestsTotal() *prometheus.CounterVec {
	return requestsTotal
}

// GetRequestDuration returns the request duration histogram for testing.
func GetRequestDuration() *prometheus.HistogramVec {
	return requestDuration
}

// GetChecksTotal returns the predicate counter for testing.
func GetChecksTotal() *prometheus.CounterVec {
	return predicateTotal
}

// IsMetricsRegistered returns whether metrics have been registered.
func IsMetricsRegistered() bool {
	return metricsRegistered
}
