package httpx

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ariefcatur/go-order-fulfillment/internal/inventory"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

const (
	streamBuffer   = 64
	streamKeepWarm = 15 * time.Second
)

type OrderFeed interface {
	SubscribeToUpdates(fn func(orders.Event)) (unsubscribe func())
}

type StockFeed interface {
	SubscribeToUpdates(fn func(inventory.Item)) (unsubscribe func())
}

// EventsHandler streams order and inventory changes as server-sent events.
// Each client holds its own subscriptions; a client that stops reading loses
// events instead of slowing the publishers.
type EventsHandler struct {
	Orders OrderFeed
	Stock  StockFeed
	Log    *slog.Logger
}

type sseEvent struct {
	name string
	data any
}

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorBody{Code: "internal", Error: "streaming unsupported"})
		return
	}

	ctx := r.Context()
	out := make(chan sseEvent, streamBuffer)
	push := func(ev sseEvent) {
		select {
		case out <- ev:
		case <-ctx.Done():
		default:
		}
	}
	unsubOrders := h.Orders.SubscribeToUpdates(func(e orders.Event) {
		push(sseEvent{name: e.Type, data: e.Order})
	})
	defer unsubOrders()
	unsubStock := h.Stock.SubscribeToUpdates(func(it inventory.Item) {
		push(sseEvent{name: orders.EventInventoryUpdated, data: it})
	})
	defer unsubStock()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(streamKeepWarm)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case ev := <-out:
			b, err := json.Marshal(ev.data)
			if err != nil {
				h.logger().Error("encode stream event", "event", ev.name, "err", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.name, b); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (h *EventsHandler) logger() *slog.Logger {
	if h.Log == nil {
		return slog.Default()
	}
	return h.Log
}
