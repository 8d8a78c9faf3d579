package kafka

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/ariefcatur/go-order-fulfillment/internal/inventory"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

type OrderFeed interface {
	SubscribeToUpdates(fn func(orders.Event)) (unsubscribe func())
}

type StockFeed interface {
	SubscribeToUpdates(fn func(inventory.Item)) (unsubscribe func())
}

// Relay forwards in-process change notifications to Kafka. Order events go
// to the status topic keyed by order id, stock events to the inventory topic
// keyed by product id.
type Relay struct {
	Status    Publisher
	Inventory Publisher
	Producer  string
	Log       *slog.Logger
	Now       func() time.Time
}

// Attach subscribes to both feeds. The returned func detaches.
func (r *Relay) Attach(ordersFeed OrderFeed, stock StockFeed) (detach func()) {
	if r.Log == nil {
		r.Log = slog.Default()
	}
	if r.Now == nil {
		r.Now = time.Now
	}
	unsubOrders := ordersFeed.SubscribeToUpdates(r.forwardOrder)
	unsubStock := stock.SubscribeToUpdates(r.forwardStock)
	return func() {
		unsubOrders()
		unsubStock()
	}
}

func (r *Relay) forwardOrder(e orders.Event) {
	o := e.Order
	r.send(r.Status, e.Type, o.ID, orders.StatusPayloadOf(o))
}

func (r *Relay) forwardStock(it inventory.Item) {
	r.send(r.Inventory, orders.EventInventoryUpdated, it.ProductID, orders.InventoryUpdatedPayload{
		ProductID:    it.ProductID,
		ProductName:  it.ProductName,
		Available:    it.Available,
		Reserved:     it.Reserved,
		ReorderLevel: it.ReorderLevel,
	})
}

func (r *Relay) send(p Publisher, eventType, key string, payload any) {
	env, err := NewEnvelope(eventType, r.Producer, key, payload, r.Now())
	if err != nil {
		r.Log.Error("build envelope", "event", eventType, "key", key, "err", err)
		return
	}
	b, err := json.Marshal(env)
	if err != nil {
		r.Log.Error("encode envelope", "event", eventType, "key", key, "err", err)
		return
	}
	if err := p.Publish(orders.PartitionKey(key), b, Headers(env)...); err != nil {
		r.Log.Warn("relay dropped event", "event", eventType, "key", key, "err", err)
	}
}
