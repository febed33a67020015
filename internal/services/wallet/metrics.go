package wallet

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// NoopMetricsCollector is a no-op implementation of MetricsCollector
type NoopMetricsCollector struct{}

func (n *NoopMetricsCollector) RecordOperationDuration(string, time.Duration) {}
func (n *NoopMetricsCollector) RecordOperationResult(string, string)          {}
func (n *NoopMetricsCollector) RecordError(string, string)                    {}
func (n *NoopMetricsCollector) RecordTransaction(string, float64)             {}
func (n *NoopMetricsCollector) RecordInvariantViolation(uint)                 {}

// PrometheusCollector exports wallet metrics under the pearlbingo_wallet namespace.
type PrometheusCollector struct {
	duration   *prometheus.HistogramVec
	results    *prometheus.CounterVec
	errors     *prometheus.CounterVec
	volume     *prometheus.CounterVec
	violations *prometheus.CounterVec
}

func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	c := &PrometheusCollector{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pearlbingo",
			Subsystem: "wallet",
			Name:      "operation_duration_seconds",
			Help:      "Duration of wallet operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pearlbingo",
			Subsystem: "wallet",
			Name:      "operations_total",
			Help:      "Wallet operations by outcome.",
		}, []string{"operation", "result"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pearlbingo",
			Subsystem: "wallet",
			Name:      "errors_total",
			Help:      "Wallet operation failures by error code.",
		}, []string{"operation", "code"}),
		volume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pearlbingo",
			Subsystem: "wallet",
			Name:      "volume_pearls_total",
			Help:      "Pearls moved by transaction type.",
		}, []string{"type"}),
		violations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pearlbingo",
			Subsystem: "wallet",
			Name:      "invariant_violations_total",
			Help:      "Ledger sum mismatches detected.",
		}, []string{"user_id"}),
	}
	reg.MustRegister(c.duration, c.results, c.errors, c.volume, c.violations)
	return c
}

func (c *PrometheusCollector) RecordOperationDuration(op string, d time.Duration) {
	c.duration.WithLabelValues(op).Observe(d.Seconds())
}

func (c *PrometheusCollector) RecordOperationResult(op, result string) {
	c.results.WithLabelValues(op, result).Inc()
}

func (c *PrometheusCollector) RecordError(op, code string) {
	c.errors.WithLabelValues(op, code).Inc()
}

func (c *PrometheusCollector) RecordTransaction(txType string, amount float64) {
	c.volume.WithLabelValues(txType).Add(amount)
}

func (c *PrometheusCollector) RecordInvariantViolation(userID uint) {
	c.violations.WithLabelValues(strconv.FormatUint(uint64(userID), 10)).Inc()
}
