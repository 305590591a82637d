package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns an HTTP handler exposing the registry's metrics in
// Prometheus exposition format. The gateway mounts it at /metrics; the
// face runs a single HTTP server rather than a dedicated metrics port.
// A nil registry yields a handler that serves an empty metric set.
func Handler(registry *MetricsRegistry) http.Handler {
	if registry == nil {
		return promhttp.Handler()
	}

	return promhttp.HandlerFor(
		registry.PrometheusRegistry(),
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		},
	)
}
