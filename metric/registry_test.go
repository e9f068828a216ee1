package metric

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCounter(name string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "automatedhome",
		Subsystem: "test",
		Name:      name,
		Help:      "test counter",
	})
}

func TestRegistry_Register(t *testing.T) {
	r := NewMetricsRegistry()

	err := r.Register("engine", "ops_total", newTestCounter("ops_total"))
	require.NoError(t, err)

	// Same component+name is rejected.
	err = r.Register("engine", "ops_total", newTestCounter("ops_other"))
	assert.Error(t, err)

	// Same collector name under a different key still conflicts in Prometheus.
	err = r.Register("dispatch", "ops_total", newTestCounter("ops_total"))
	assert.Error(t, err)
}

func TestRegistry_Unregister(t *testing.T) {
	r := NewMetricsRegistry()

	require.NoError(t, r.Register("engine", "ops_total", newTestCounter("ops_total")))
	assert.True(t, r.Unregister("engine", "ops_total"))
	assert.False(t, r.Unregister("engine", "ops_total"))

	// Re-registration works after unregister.
	assert.NoError(t, r.Register("engine", "ops_total", newTestCounter("ops_total")))
}

func TestRegistry_Handler(t *testing.T) {
	r := NewMetricsRegistry()

	counter := newTestCounter("handler_ops_total")
	require.NoError(t, r.Register("engine", "handler_ops_total", counter))
	counter.Inc()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	r.Handler().ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "automatedhome_test_handler_ops_total")
}
