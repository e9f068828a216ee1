package engine

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ftcid/AutomatedHomeV2/metric"
)

// evaluatorMetrics holds Prometheus metrics for rule evaluation
type evaluatorMetrics struct {
	matchesTotal prometheus.Counter
	errorsTotal  *prometheus.CounterVec
}

// engineMetrics holds Prometheus metrics for message intake
type engineMetrics struct {
	messagesTotal  prometheus.Counter
	discardedTotal prometheus.Counter
	unchangedTotal prometheus.Counter
	actionsTotal   prometheus.Counter
	evalDuration   prometheus.Histogram

	evaluator *evaluatorMetrics
}

// newEngineMetrics creates and registers engine metrics.
// Returns nil if no registry is provided (nil input = nil feature pattern).
func newEngineMetrics(registry *metric.MetricsRegistry) *engineMetrics {
	if registry == nil {
		return nil
	}

	metrics := &engineMetrics{
		messagesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "automatedhome",
			Subsystem: "engine",
			Name:      "messages_total",
			Help:      "Messages accepted by intake",
		}),

		discardedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "automatedhome",
			Subsystem: "engine",
			Name:      "messages_discarded_total",
			Help:      "Messages discarded for a malformed topic",
		}),

		unchangedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "automatedhome",
			Subsystem: "engine",
			Name:      "messages_unchanged_total",
			Help:      "Messages whose value matched the stored state",
		}),

		actionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "automatedhome",
			Subsystem: "engine",
			Name:      "actions_enqueued_total",
			Help:      "Actions handed to the dispatcher",
		}),

		evalDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "automatedhome",
			Subsystem: "engine",
			Name:      "evaluation_duration_seconds",
			Help:      "Duration of a full rule evaluation pass",
			Buckets:   prometheus.DefBuckets,
		}),

		evaluator: &evaluatorMetrics{
			matchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "automatedhome",
				Subsystem: "engine",
				Name:      "rule_matches_total",
				Help:      "Rules that matched during evaluation",
			}),
			errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "automatedhome",
				Subsystem: "engine",
				Name:      "rule_errors_total",
				Help:      "Rules skipped during evaluation, by reason",
			}, []string{"reason"}),
		},
	}

	registry.PrometheusRegistry().MustRegister(
		metrics.messagesTotal,
		metrics.discardedTotal,
		metrics.unchangedTotal,
		metrics.actionsTotal,
		metrics.evalDuration,
		metrics.evaluator.matchesTotal,
		metrics.evaluator.errorsTotal,
	)

	return metrics
}

// evaluatorMetricsOf returns the evaluator slice of the metrics, or nil.
func (m *engineMetrics) evaluatorMetricsOf() *evaluatorMetrics {
	if m == nil {
		return nil
	}
	return m.evaluator
}
