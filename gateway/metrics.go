package gateway

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ftcid/AutomatedHomeV2/metric"
)

// serverMetrics holds Prometheus metrics for the gateway
type serverMetrics struct {
	requestsTotal *prometheus.CounterVec
	wsClients     prometheus.GaugeFunc
}

// newServerMetrics creates and registers gateway metrics.
// Returns nil if no registry is provided (nil input = nil feature pattern).
func newServerMetrics(registry *metric.MetricsRegistry, s *Server) *serverMetrics {
	if registry == nil {
		return nil
	}

	metrics := &serverMetrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "automatedhome",
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "HTTP requests served, by handler",
		}, []string{"handler"}),

		wsClients: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "automatedhome",
			Subsystem: "gateway",
			Name:      "websocket_clients",
			Help:      "Connected websocket clients",
		}, func() float64 {
			return float64(s.hub.count())
		}),
	}

	registry.PrometheusRegistry().MustRegister(
		metrics.requestsTotal,
		metrics.wsClients,
	)

	return metrics
}
