package httpx

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const requestTimeout = 15 * time.Second

// Handlers groups everything the router serves. Streams are mounted outside
// the request timeout.
type Handlers struct {
	Orders  *OrdersHandler
	Metrics *MetricsHandler
	Events  *EventsHandler
}

func NewRouter(h Handlers) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		if h.Orders != nil {
			h.Orders.Register(r)
		}
		if h.Metrics != nil {
			r.Get("/metrics", h.Metrics.ServeHTTP)
		}
	})
	if h.Events != nil {
		r.Get("/events", h.Events.ServeHTTP)
	}
	return r
}
