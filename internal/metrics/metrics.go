// Package metrics tracks invocation and merge counters for Prometheus export.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quortexio/quortex-mcp/internal/diag"
)

const namespace = "quortex_mcp"

// Collector holds the server's Prometheus metrics. Each Collector owns its
// registry so tests can build as many as they need.
type Collector struct {
	registry *prometheus.Registry

	invocationsTotal *prometheus.CounterVec
	conflictsTotal   *prometheus.CounterVec
	exposedTotal     *prometheus.GaugeVec
}

// NewCollector creates a Collector with a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		invocationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invocations_total",
				Help:      "Total tool and resource invocations by operation and outcome",
			},
			[]string{"operation", "status"},
		),
		conflictsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "merge_conflicts_total",
				Help:      "Merge-time collisions and load-time skips by kind",
			},
			[]string{"kind"},
		),
		exposedTotal: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "exposed_operations",
				Help:      "Operations exposed after classification by kind",
			},
			[]string{"kind"},
		),
	}
}

// RecordInvocation counts one completed invocation.
func (c *Collector) RecordInvocation(operation string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.invocationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordDiagnostics counts load and merge diagnostics by kind.
func (c *Collector) RecordDiagnostics(records []diag.Record) {
	for _, r := range records {
		c.conflictsTotal.WithLabelValues(string(r.Kind)).Inc()
	}
}

// SetExposed records how many operations a classification run exposed.
func (c *Collector) SetExposed(kind string, count int) {
	c.exposedTotal.WithLabelValues(kind).Set(float64(count))
}

// Handler returns the Prometheus scrape handler for this collector.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
