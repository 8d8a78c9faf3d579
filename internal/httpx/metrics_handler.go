package httpx

import (
	"net/http"

	metrics "github.com/rcrowley/go-metrics"
)

// MetricsHandler dumps a go-metrics registry as JSON.
type MetricsHandler struct {
	Registry metrics.Registry
}

func (h *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	metrics.WriteJSONOnce(h.Registry, w)
}
