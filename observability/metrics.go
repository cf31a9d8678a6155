package observability

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"propchain/native/common"
)

// MarketplaceMetrics tracks engine operations as seen by the marketplace
// facade.
type MarketplaceMetrics struct {
	operations *prometheus.CounterVec
	failures   *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

var (
	marketplaceMetricsOnce sync.Once
	marketplaceRegistry    *MarketplaceMetrics
)

// Marketplace returns the lazily-initialised operation metrics registry.
func Marketplace() *MarketplaceMetrics {
	marketplaceMetricsOnce.Do(func() {
		marketplaceRegistry = &MarketplaceMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "propchain",
				Subsystem: "marketplace",
				Name:      "operations_total",
				Help:      "Total marketplace operations segmented by module, operation, and outcome.",
			}, []string{"module", "operation", "outcome"}),
			failures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "propchain",
				Subsystem: "marketplace",
				Name:      "failures_total",
				Help:      "Count of rejected marketplace operations segmented by module and reason.",
			}, []string{"module", "reason"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "propchain",
				Subsystem: "marketplace",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution for marketplace operations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "operation"}),
		}
		prometheus.MustRegister(
			marketplaceRegistry.operations,
			marketplaceRegistry.failures,
			marketplaceRegistry.latency,
		)
	})
	return marketplaceRegistry
}

// Observe records the outcome of a single operation.
func (m *MarketplaceMetrics) Observe(module, operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	module = labelOrUnknown(module)
	operation = labelOrUnknown(operation)
	outcome := "success"
	if err != nil {
		outcome = "error"
		m.failures.WithLabelValues(module, Reason(err)).Inc()
	}
	m.operations.WithLabelValues(module, operation, outcome).Inc()
	m.latency.WithLabelValues(module, operation).Observe(duration.Seconds())
}

// OperationsVec exposes the operation counter for tests and dashboards.
func (m *MarketplaceMetrics) OperationsVec() *prometheus.CounterVec { return m.operations }

// FailuresVec exposes the failure counter.
func (m *MarketplaceMetrics) FailuresVec() *prometheus.CounterVec { return m.failures }

var reasons = []struct {
	err   error
	label string
}{
	// ErrVerificationFailed wraps ErrUnauthorized, so it must be checked first.
	{common.ErrVerificationFailed, "verification_failed"},
	{common.ErrUnauthorized, "unauthorized"},
	{common.ErrAgreementNotActive, "agreement_not_active"},
	{common.ErrFundsAlreadyReleased, "funds_already_released"},
	{common.ErrInsufficientFunds, "insufficient_funds"},
	{common.ErrArithmeticOverflow, "arithmetic_overflow"},
	{common.ErrNotFound, "not_found"},
	{common.ErrInvalidAmount, "invalid_amount"},
	{common.ErrModulePaused, "module_paused"},
}

// Reason maps an engine error onto a stable, low-cardinality label.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.label
		}
	}
	return "internal"
}

func labelOrUnknown(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
