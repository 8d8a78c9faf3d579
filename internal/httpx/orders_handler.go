package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-order-fulfillment/internal/fulfillment"
	"github.com/ariefcatur/go-order-fulfillment/internal/inventory"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

const HeaderIdempotencyKey = "Idempotency-Key"

type OrderService interface {
	PlaceOrder(ctx context.Context, in fulfillment.PlaceOrderInput) (orders.Order, error)
	CancelOrder(ctx context.Context, orderID, reason string) error
	GetOrder(orderID string) (orders.Order, error)
	ListOrders() []orders.Order
	Inventory() []inventory.Item
	LowStock() []inventory.Item
}

// Idempotency is satisfied by redisx.Idempotency.
type Idempotency interface {
	Lookup(ctx context.Context, key string) (orderID string, found bool, err error)
	Claim(ctx context.Context, key string) (bool, error)
	Bind(ctx context.Context, key, orderID string) error
	Release(ctx context.Context, key string) error
}

type OrdersHandler struct {
	Service OrderService
	Idem    Idempotency // optional
	Log     *slog.Logger
}

type cancelReq struct {
	Reason string `json:"reason"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Post("/orders/{id}/cancel", h.cancelOrder)
	r.Get("/inventory", h.listInventory)
	r.Get("/inventory/low-stock", h.lowStock)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req fulfillment.PlaceOrderInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "invalid_json", Error: "invalid json"})
		return
	}
	ctx := r.Context()
	key := r.Header.Get(HeaderIdempotencyKey)
	if key == "" || h.Idem == nil {
		h.place(ctx, w, req, "")
		return
	}

	orderID, found, err := h.Idem.Lookup(ctx, key)
	if err != nil {
		// idempotency is best effort; the store stays the source of truth
		h.logger().Warn("idempotency lookup failed", "key", key, "err", err)
		h.place(ctx, w, req, "")
		return
	}
	if found {
		h.replay(w, orderID)
		return
	}
	claimed, err := h.Idem.Claim(ctx, key)
	if err != nil {
		h.logger().Warn("idempotency claim failed", "key", key, "err", err)
		h.place(ctx, w, req, "")
		return
	}
	if !claimed {
		writeError(w, errRequestInFlight)
		return
	}
	h.place(ctx, w, req, key)
}

func (h *OrdersHandler) place(ctx context.Context, w http.ResponseWriter, req fulfillment.PlaceOrderInput, key string) {
	o, err := h.Service.PlaceOrder(ctx, req)
	if err != nil {
		if key != "" {
			if rerr := h.Idem.Release(context.WithoutCancel(ctx), key); rerr != nil {
				h.logger().Warn("release idempotency key", "key", key, "err", rerr)
			}
		}
		writeError(w, err)
		return
	}
	if key != "" {
		if err := h.Idem.Bind(context.WithoutCancel(ctx), key, o.ID); err != nil {
			h.logger().Warn("bind idempotency key", "key", key, "order_id", o.ID, "err", err)
		}
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) replay(w http.ResponseWriter, orderID string) {
	if orderID == "" {
		writeError(w, errRequestInFlight)
		return
	}
	o, err := h.Service.GetOrder(orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Idempotent-Replayed", "true")
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Service.ListOrders())
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Service.GetOrder(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	var req cancelReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "invalid_json", Error: "invalid json"})
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.Service.CancelOrder(r.Context(), id, req.Reason); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"order_id": id, "status": "cancelling"})
}

func (h *OrdersHandler) listInventory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Service.Inventory())
}

func (h *OrdersHandler) lowStock(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Service.LowStock())
}

func (h *OrdersHandler) logger() *slog.Logger {
	if h.Log == nil {
		return slog.Default()
	}
	return h.Log
}
