// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the gate service.
//
// # Description
//
// Metrics cover the three phases of every gated query:
//   - Resolution counters (by outcome)
//   - Traversal step counters and durations (by action, success)
//   - Provenance validation counters (valid / invalid)
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Use with Prometheus +
// Grafana for dashboards and alerting on refusal spikes or stub-source
// citations.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "aleutian"

// Subsystem for gate metrics
const gateSubsystem = "gate"

// GateMetrics holds all Prometheus metrics for gate operations.
//
// # Fields
//
//   - ResolutionsTotal: resolutions by outcome
//   - RefusalsTotal: refusals by refusal kind (refused, unresolved, demo_only)
//   - DemoWarningsTotal: demo/hybrid disclosures emitted
//   - TraversalStepsTotal: traversal steps by action and success
//   - TraversalDurationSeconds: traversal step duration by action
//   - ProvenanceChecksTotal: provenance validations by result
//
// # Thread Safety
//
// All operations are thread-safe.
type GateMetrics struct {
	// ResolutionsTotal counts resolutions by outcome.
	// Labels: outcome (resolved, multi_source, demo_only, unresolved, refused)
	ResolutionsTotal *prometheus.CounterVec

	// RefusalsTotal counts non-proceeding gate decisions.
	// Labels: outcome
	RefusalsTotal *prometheus.CounterVec

	// DemoWarningsTotal counts demo/hybrid/stub disclosures attached to
	// resolutions. No labels; warning text identifies the source.
	DemoWarningsTotal prometheus.Counter

	// TraversalStepsTotal counts verification actions executed.
	// Labels: action, success (true, false)
	TraversalStepsTotal *prometheus.CounterVec

	// TraversalDurationSeconds measures per-action traversal latency.
	// Labels: action
	TraversalDurationSeconds *prometheus.HistogramVec

	// ProvenanceChecksTotal counts provenance validations.
	// Labels: result (valid, invalid)
	ProvenanceChecksTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance of GateMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *GateMetrics

// InitMetrics initializes the default metrics instance.
//
// # Description
//
// Creates and registers all Prometheus metrics. Call once at application
// startup. Calling twice panics (promauto duplicate registration), which
// is the fail-fast behavior we want for wiring mistakes.
//
// # Outputs
//
//   - *GateMetrics: the initialized metrics instance
//
// # Examples
//
//	func main() {
//	    observability.InitMetrics()
//	    // ... start server ...
//	}
func InitMetrics() *GateMetrics {
	DefaultMetrics = &GateMetrics{
		ResolutionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: gateSubsystem,
			Name:      "resolutions_total",
			Help:      "Source resolutions by outcome.",
		}, []string{"outcome"}),

		RefusalsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: gateSubsystem,
			Name:      "refusals_total",
			Help:      "Gate decisions that did not proceed, by outcome.",
		}, []string{"outcome"}),

		DemoWarningsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: gateSubsystem,
			Name:      "demo_warnings_total",
			Help:      "Demo/hybrid/stub disclosures attached to resolutions.",
		}),

		TraversalStepsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: gateSubsystem,
			Name:      "traversal_steps_total",
			Help:      "Verification actions executed, by action and success.",
		}, []string{"action", "success"}),

		TraversalDurationSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: gateSubsystem,
			Name:      "traversal_duration_seconds",
			Help:      "Latency of individual verification actions.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),

		ProvenanceChecksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: gateSubsystem,
			Name:      "provenance_checks_total",
			Help:      "Provenance validations by result.",
		}, []string{"result"}),
	}
	return DefaultMetrics
}

// RecordResolution increments the resolution counters for one outcome.
// Safe to call when InitMetrics has not run (no-op), so library users who
// skip metrics wiring pay nothing.
func RecordResolution(outcome string, proceeded bool, demoWarnings int) {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.ResolutionsTotal.WithLabelValues(outcome).Inc()
	if !proceeded {
		DefaultMetrics.RefusalsTotal.WithLabelValues(outcome).Inc()
	}
	DefaultMetrics.DemoWarningsTotal.Add(float64(demoWarnings))
}

// RecordTraversalStep observes one executed verification action.
func RecordTraversalStep(action string, success bool, seconds float64) {
	if DefaultMetrics == nil {
		return
	}
	successLabel := "false"
	if success {
		successLabel = "true"
	}
	DefaultMetrics.TraversalStepsTotal.WithLabelValues(action, successLabel).Inc()
	DefaultMetrics.TraversalDurationSeconds.WithLabelValues(action).Observe(seconds)
}

// RecordProvenanceCheck counts one provenance validation result.
func RecordProvenanceCheck(valid bool) {
	if DefaultMetrics == nil {
		return
	}
	result := "invalid"
	if valid {
		result = "valid"
	}
	DefaultMetrics.ProvenanceChecksTotal.WithLabelValues(result).Inc()
}
