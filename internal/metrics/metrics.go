// Package metrics exposes Prometheus collectors for transaction boundaries
// and RPC calls.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mmynk/billtx/internal/txn"
)

const namespace = "billtx"

// Metrics holds the collectors registered on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	transactions *prometheus.CounterVec
	txDuration   *prometheus.HistogramVec
	rpcs         *prometheus.CounterVec
}

// New creates the collectors and registers them, along with the Go and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "Finished transaction boundaries by name, propagation and outcome.",
		}, []string{"name", "propagation", "outcome"}),
		txDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transaction_duration_seconds",
			Help:      "Time from boundary open to commit or rollback.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"name"}),
		rpcs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_requests_total",
			Help:      "RPC calls by procedure and result code.",
		}, []string{"procedure", "code"}),
	}

	m.registry.MustRegister(
		m.transactions,
		m.txDuration,
		m.rpcs,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// BoundaryFinished implements txn.Observer.
func (m *Metrics) BoundaryFinished(b *txn.Boundary, elapsed time.Duration) {
	name := b.Name
	if name == "" {
		name = "unnamed"
	}
	m.transactions.WithLabelValues(name, b.Propagation.String(), b.State().String()).Inc()
	m.txDuration.WithLabelValues(name).Observe(elapsed.Seconds())
}

// RecordRPC counts one finished RPC.
func (m *Metrics) RecordRPC(procedure, code string) {
	m.rpcs.WithLabelValues(procedure, code).Inc()
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
