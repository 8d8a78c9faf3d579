package orders

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-order-fulfillment/internal/clock"
	"github.com/ariefcatur/go-order-fulfillment/internal/notify"
)

const estimatedDeliveryAfter = 3 * 24 * time.Hour

// Store owns order records and their status. It does not check that a status
// change is a legal successor; the orchestrator only asks for legal ones.
type Store struct {
	mu     sync.RWMutex
	orders map[string]*Order
	clock  clock.Clock
	hub    *notify.Hub[Event]
	log    *slog.Logger
}

type StoreOption func(*Store)

func WithClock(c clock.Clock) StoreOption {
	return func(s *Store) { s.clock = c }
}

func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.log = l }
}

// WithNotifyBuffer sets the per-subscriber queue size.
func WithNotifyBuffer(n int) StoreOption {
	return func(s *Store) { s.hub = notify.NewHub[Event](n) }
}

func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		orders: make(map[string]*Order),
		clock:  clock.NewSystem(),
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.hub == nil {
		s.hub = notify.NewHub[Event](notify.DefaultBuffer)
	}
	return s
}

// CreateOrder stores a new pending order. The total is computed here once and
// never recomputed.
func (s *Store) CreateOrder(in NewOrder) Order {
	now := s.clock.Now()
	eta := now.Add(estimatedDeliveryAfter)

	items := make([]Item, len(in.Items))
	copy(items, in.Items)
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = NewItemID()
		}
	}

	o := &Order{
		ID:                newOrderID(now),
		CustomerID:        in.CustomerID,
		CustomerName:      in.CustomerName,
		CustomerEmail:     in.CustomerEmail,
		Items:             items,
		TotalAmount:       TotalOf(items),
		Status:            StatusPending,
		PaymentStatus:     PaymentPending,
		CreatedAt:         now,
		UpdatedAt:         now,
		EstimatedDelivery: &eta,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o
	out := o.clone()
	s.hub.Publish(Event{Type: EventOrderCreated, Order: out})

	s.log.Info("order created", "order_id", o.ID, "items", len(items), "total", o.TotalAmount)
	return out
}

// Import stores an order recorded elsewhere as is, keeping its id, status,
// payment and timestamps. Missing item ids, total and timestamps are filled in.
func (s *Store) Import(o Order) (Order, error) {
	if o.ID == "" {
		return Order{}, ErrMissingID
	}
	if !o.Status.Valid() {
		return Order{}, fmt.Errorf("%w: %q", ErrInvalidStatus, o.Status)
	}
	if o.PaymentStatus == "" {
		o.PaymentStatus = PaymentPending
	}
	o = o.clone()
	for i := range o.Items {
		if o.Items[i].ID == "" {
			o.Items[i].ID = NewItemID()
		}
	}
	if o.TotalAmount == 0 {
		o.TotalAmount = TotalOf(o.Items)
	}
	now := s.clock.Now()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = now
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; ok {
		return Order{}, fmt.Errorf("%w: %s", ErrDuplicateOrder, o.ID)
	}
	stored := o.clone()
	s.orders[o.ID] = &stored
	s.hub.Publish(Event{Type: EventOrderCreated, Order: o})

	s.log.Info("order imported", "order_id", o.ID, "status", o.Status, "payment_status", o.PaymentStatus)
	return o, nil
}

func (s *Store) UpdateOrderStatus(orderID string, status Status) (Order, error) {
	return s.mutate(orderID, EventOrderStatusChanged, func(o *Order) {
		o.Status = status
	})
}

// UpdatePaymentStatus records the payment outcome. txnID is kept when empty.
func (s *Store) UpdatePaymentStatus(orderID string, ps PaymentStatus, txnID string) (Order, error) {
	return s.mutate(orderID, EventPaymentStatusChanged, func(o *Order) {
		o.PaymentStatus = ps
		if txnID != "" {
			o.TransactionID = txnID
		}
	})
}

// SetFailureReason annotates the order without notifying; the reason travels
// with the next status change.
func (s *Store) SetFailureReason(orderID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	o.FailureReason = reason
	return nil
}

func (s *Store) GetOrder(orderID string) (Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[orderID]
	if !ok {
		return Order{}, ErrNotFound
	}
	return o.clone(), nil
}

// GetAllOrders returns every order, newest created first.
func (s *Store) GetAllOrders() []Order {
	s.mu.RLock()
	out := make([]Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o.clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (s *Store) SubscribeToUpdates(fn func(Event)) (unsubscribe func()) {
	return s.hub.Subscribe(fn)
}

// DroppedNotifications reports deliveries lost to full subscriber queues.
func (s *Store) DroppedNotifications() int64 {
	return s.hub.Dropped()
}

func (s *Store) Close() {
	s.hub.Close()
}

func (s *Store) mutate(orderID, eventType string, fn func(*Order)) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return Order{}, ErrNotFound
	}
	fn(o)
	o.UpdatedAt = s.clock.Now()
	out := o.clone()
	// published under the lock so every subscriber sees mutation order
	s.hub.Publish(Event{Type: eventType, Order: out})

	s.log.Info("order updated", "order_id", orderID, "event", eventType,
		"status", o.Status, "payment_status", o.PaymentStatus)
	return out, nil
}
