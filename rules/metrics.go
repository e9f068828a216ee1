package rules

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ftcid/AutomatedHomeV2/metric"
)

// repositoryMetrics holds Prometheus metrics for the rule repository
type repositoryMetrics struct {
	activeRules  prometheus.Gauge
	reloadsTotal *prometheus.CounterVec
}

// newRepositoryMetrics creates and registers repository metrics.
// Returns nil if no registry is provided (nil input = nil feature pattern).
func newRepositoryMetrics(registry *metric.MetricsRegistry) *repositoryMetrics {
	if registry == nil {
		return nil
	}

	metrics := &repositoryMetrics{
		activeRules: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "automatedhome",
			Subsystem: "rules",
			Name:      "active_rules",
			Help:      "Number of rules in the active rule set",
		}),

		reloadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "automatedhome",
			Subsystem: "rules",
			Name:      "reloads_total",
			Help:      "Rule document reload attempts by result",
		}, []string{"result"}),
	}

	registry.PrometheusRegistry().MustRegister(
		metrics.activeRules,
		metrics.reloadsTotal,
	)

	return metrics
}
