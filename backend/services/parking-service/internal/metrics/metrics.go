// Package metrics exposes Prometheus counters for ledger and parking operations.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records operation outcomes and money movements.
type Collector struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	amounts    *prometheus.CounterVec
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parkcard_operations_total",
			Help: "Business operations by name and result.",
		}, []string{"operation", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "parkcard_operation_duration_seconds",
			Help:    "Business operation latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		amounts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parkcard_amount_total",
			Help: "Currency units moved, by kind (recharge, fee).",
		}, []string{"kind"}),
	}

	reg.MustRegister(c.operations, c.duration, c.amounts)
	return c
}

// ObserveOperation counts one operation and records its latency.
func (c *Collector) ObserveOperation(operation, result string, took time.Duration) {
	c.operations.WithLabelValues(operation, result).Inc()
	c.duration.WithLabelValues(operation).Observe(took.Seconds())
}

// AddAmount adds a positive amount to the kind's running total.
func (c *Collector) AddAmount(kind string, amount int64) {
	if amount <= 0 {
		return
	}
	c.amounts.WithLabelValues(kind).Add(float64(amount))
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
