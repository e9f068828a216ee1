package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ftcid/AutomatedHomeV2/metric"
)

// dispatcherMetrics holds Prometheus metrics for the dispatcher
type dispatcherMetrics struct {
	enqueuedTotal  prometheus.Counter
	publishedTotal prometheus.Counter
	droppedTotal   prometheus.Counter
	failuresTotal  prometheus.Counter
	queueDepth     prometheus.GaugeFunc
}

// newDispatcherMetrics creates and registers dispatcher metrics.
// Returns nil if no registry is provided (nil input = nil feature pattern).
func newDispatcherMetrics(registry *metric.MetricsRegistry, d *Dispatcher) *dispatcherMetrics {
	if registry == nil {
		return nil
	}

	metrics := &dispatcherMetrics{
		enqueuedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "automatedhome",
			Subsystem: "dispatch",
			Name:      "enqueued_total",
			Help:      "Publish requests accepted into the queue",
		}),

		publishedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "automatedhome",
			Subsystem: "dispatch",
			Name:      "published_total",
			Help:      "Publish requests delivered to the transport",
		}),

		droppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "automatedhome",
			Subsystem: "dispatch",
			Name:      "dropped_total",
			Help:      "Publish requests dropped because the queue was full",
		}),

		failuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "automatedhome",
			Subsystem: "dispatch",
			Name:      "publish_failures_total",
			Help:      "Publish requests abandoned after exhausting retries",
		}),

		queueDepth: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "automatedhome",
			Subsystem: "dispatch",
			Name:      "queue_depth",
			Help:      "Publish requests currently queued",
		}, func() float64 {
			return float64(d.Pending())
		}),
	}

	registry.PrometheusRegistry().MustRegister(
		metrics.enqueuedTotal,
		metrics.publishedTotal,
		metrics.droppedTotal,
		metrics.failuresTotal,
		metrics.queueDepth,
	)

	return metrics
}
