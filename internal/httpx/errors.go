package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-order-fulfillment/internal/fulfillment"
	"github.com/ariefcatur/go-order-fulfillment/internal/inventory"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

var errRequestInFlight = errors.New("a request with this idempotency key is in progress")

type errorBody struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeJSON(w, status, errorBody{Code: code, Error: msg})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, orders.ErrNotFound), errors.Is(err, inventory.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, fulfillment.ErrInvalidOrder), errors.Is(err, inventory.ErrInvalidQuantity):
		return http.StatusBadRequest, "invalid_order"
	case errors.Is(err, fulfillment.ErrNotCancellable):
		return http.StatusConflict, "not_cancellable"
	case errors.Is(err, fulfillment.ErrNotRunning):
		return http.StatusConflict, "not_running"
	case errors.Is(err, errRequestInFlight):
		return http.StatusConflict, "request_in_flight"
	case errors.Is(err, fulfillment.ErrShuttingDown):
		return http.StatusServiceUnavailable, "shutting_down"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
