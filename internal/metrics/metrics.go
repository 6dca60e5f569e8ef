// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	validationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keymint_license_validations_total",
			Help: "License validation requests by terminal outcome",
		},
		[]string{"outcome"},
	)

	licensesIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "keymint_licenses_issued_total",
			Help: "License keys created through batch provisioning",
		},
	)

	rateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keymint_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"scope"},
	)
)

// RecordValidation counts one validation terminal state. Outcome is "valid",
// a soft reason code, or "error".
func RecordValidation(outcome string) {
	validationTotal.WithLabelValues(outcome).Inc()
}

func RecordLicensesIssued(count int) {
	licensesIssued.Add(float64(count))
}

func RecordRateLimited(scope string) {
	rateLimited.WithLabelValues(scope).Inc()
}
