package persist

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ftcid/AutomatedHomeV2/metric"
)

// writerMetrics holds Prometheus metrics for the persistence writer
type writerMetrics struct {
	recordedTotal prometheus.Counter
	storedTotal   prometheus.Counter
	droppedTotal  prometheus.Counter
	failuresTotal prometheus.Counter
	queueDepth    prometheus.GaugeFunc
}

// newWriterMetrics creates and registers writer metrics.
// Returns nil if no registry is provided (nil input = nil feature pattern).
func newWriterMetrics(registry *metric.MetricsRegistry, w *Writer) *writerMetrics {
	if registry == nil {
		return nil
	}

	metrics := &writerMetrics{
		recordedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "automatedhome",
			Subsystem: "persist",
			Name:      "recorded_total",
			Help:      "Entries accepted into the queue",
		}),

		storedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "automatedhome",
			Subsystem: "persist",
			Name:      "stored_total",
			Help:      "Entries written to the backend",
		}),

		droppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "automatedhome",
			Subsystem: "persist",
			Name:      "dropped_total",
			Help:      "Entries dropped because the queue was full",
		}),

		failuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "automatedhome",
			Subsystem: "persist",
			Name:      "store_failures_total",
			Help:      "Entries the backend failed to store",
		}),

		queueDepth: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "automatedhome",
			Subsystem: "persist",
			Name:      "queue_depth",
			Help:      "Entries currently queued",
		}, func() float64 {
			return float64(w.Pending())
		}),
	}

	registry.PrometheusRegistry().MustRegister(
		metrics.recordedTotal,
		metrics.storedTotal,
		metrics.droppedTotal,
		metrics.failuresTotal,
		metrics.queueDepth,
	)

	return metrics
}
