package orders

import (
	"errors"
	"testing"
	"time"

	"github.com/ariefcatur/go-order-fulfillment/internal/clock"
)

func newTestStore(now time.Time) *Store {
	return NewStore(WithClock(clock.NewFixed(now)), WithNotifyBuffer(64))
}

func sampleOrder() NewOrder {
	return NewOrder{
		CustomerID:    "CUST-001",
		CustomerName:  "John Smith",
		CustomerEmail: "john@example.com",
		Items: []Item{
			{ProductID: "PROD-001", ProductName: "Wireless Headphones", Quantity: 2, Price: 50.00},
			{ProductID: "PROD-003", ProductName: "Bluetooth Speaker", Quantity: 1, Price: 149.99},
		},
	}
}

func TestStore_CreateOrder(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s := newTestStore(now)

	o := s.CreateOrder(sampleOrder())
	if o.ID == "" {
		t.Fatalf("expected order ID to be set")
	}
	if o.Status != StatusPending {
		t.Fatalf("expected status %s, got %s", StatusPending, o.Status)
	}
	if o.PaymentStatus != PaymentPending {
		t.Fatalf("expected payment status %s, got %s", PaymentPending, o.PaymentStatus)
	}
	if o.TotalAmount != 249.99 {
		t.Fatalf("expected total 249.99, got %v", o.TotalAmount)
	}
	if !o.CreatedAt.Equal(now) || !o.UpdatedAt.Equal(now) {
		t.Fatalf("expected timestamps %v, got %v / %v", now, o.CreatedAt, o.UpdatedAt)
	}
	if o.EstimatedDelivery == nil || !o.EstimatedDelivery.Equal(now.Add(72*time.Hour)) {
		t.Fatalf("expected estimated delivery three days out, got %v", o.EstimatedDelivery)
	}
	for _, it := range o.Items {
		if it.ID == "" {
			t.Fatalf("expected item IDs to be assigned")
		}
	}
}

func TestStore_ReturnedOrdersAreCopies(t *testing.T) {
	t.Parallel()

	s := newTestStore(time.Now())
	o := s.CreateOrder(sampleOrder())
	o.Items[0].Quantity = 99
	o.TotalAmount = 1

	got, err := s.GetOrder(o.ID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.Items[0].Quantity != 2 {
		t.Fatalf("expected stored item untouched, got qty %d", got.Items[0].Quantity)
	}
	if got.TotalAmount != 249.99 {
		t.Fatalf("expected stored total untouched, got %v", got.TotalAmount)
	}
}

func TestStore_UpdateOrderStatus(t *testing.T) {
	t.Parallel()

	s := newTestStore(time.Now())

	t.Run("unknown order", func(t *testing.T) {
		if _, err := s.UpdateOrderStatus("ORD-missing", StatusProcessing); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("updates status and notifies", func(t *testing.T) {
		o := s.CreateOrder(sampleOrder())
		events := make(chan Event, 4)
		unsub := s.SubscribeToUpdates(func(ev Event) { events <- ev })
		defer unsub()

		got, err := s.UpdateOrderStatus(o.ID, StatusProcessing)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got.Status != StatusProcessing {
			t.Fatalf("expected %s, got %s", StatusProcessing, got.Status)
		}

		select {
		case ev := <-events:
			if ev.Type != EventOrderStatusChanged || ev.Order.Status != StatusProcessing {
				t.Fatalf("unexpected event %+v", ev)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for notification")
		}
	})
}

func TestStore_UpdatePaymentStatus(t *testing.T) {
	t.Parallel()

	s := newTestStore(time.Now())
	o := s.CreateOrder(sampleOrder())

	got, err := s.UpdatePaymentStatus(o.ID, PaymentCompleted, "TXN-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.PaymentStatus != PaymentCompleted || got.TransactionID != "TXN-1" {
		t.Fatalf("unexpected payment fields %s %q", got.PaymentStatus, got.TransactionID)
	}

	got, _ = s.UpdatePaymentStatus(o.ID, PaymentRefunded, "")
	if got.TransactionID != "TXN-1" {
		t.Fatalf("expected transaction id kept, got %q", got.TransactionID)
	}
	if got.Status != StatusPending {
		t.Fatalf("expected order status untouched, got %s", got.Status)
	}
}

// Not parallel: ULID tie-breaking relies on no other test minting ids in between.
func TestStore_GetAllOrdersNewestFirst(t *testing.T) {
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	first := NewStore(WithClock(clock.NewFixed(base)))
	old := first.CreateOrder(sampleOrder())

	s := newTestStore(base)
	s.orders[old.ID] = &old
	a := s.CreateOrder(sampleOrder())
	s.clock = clock.NewFixed(base.Add(time.Minute))
	b := s.CreateOrder(sampleOrder())
	c := s.CreateOrder(sampleOrder())

	all := s.GetAllOrders()
	if len(all) != 4 {
		t.Fatalf("expected 4 orders, got %d", len(all))
	}
	want := []string{c.ID, b.ID, a.ID, old.ID}
	for i, id := range want {
		if all[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, all[i].ID)
		}
	}
}

func TestStore_SetFailureReason(t *testing.T) {
	t.Parallel()

	s := newTestStore(time.Now())
	if err := s.SetFailureReason("nope", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	o := s.CreateOrder(sampleOrder())
	if err := s.SetFailureReason(o.ID, "payment declined"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	got, _ := s.UpdateOrderStatus(o.ID, StatusCancelled)
	if got.FailureReason != "payment declined" {
		t.Fatalf("expected failure reason on the status event, got %q", got.FailureReason)
	}
}

func TestStore_ImportDemoOrders(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s := newTestStore(now)
	events := make(chan Event, 4)
	unsub := s.SubscribeToUpdates(func(ev Event) { events <- ev })
	defer unsub()

	for _, o := range DemoOrders(now) {
		if _, err := s.Import(o); err != nil {
			t.Fatalf("import %s: %v", o.ID, err)
		}
	}

	all := s.GetAllOrders()
	if len(all) != 2 || all[0].ID != "ORD-001" || all[1].ID != "ORD-002" {
		t.Fatalf("expected ORD-001 then ORD-002, got %+v", all)
	}
	first := all[0]
	if first.Status != StatusProcessing || first.PaymentStatus != PaymentCompleted || first.TotalAmount != 99.99 {
		t.Fatalf("unexpected ORD-001 %+v", first)
	}
	if !first.CreatedAt.Equal(now.Add(-30*time.Minute)) || !first.EstimatedDelivery.Equal(now.Add(48*time.Hour)) {
		t.Fatalf("unexpected ORD-001 times %v %v", first.CreatedAt, first.EstimatedDelivery)
	}
	if all[1].Status != StatusConfirmed || all[1].Items[0].ProductName != "Smart Watch" {
		t.Fatalf("unexpected ORD-002 %+v", all[1])
	}

	for i := 0; i < 2; i++ {
		select {
		case ev := <-events:
			if ev.Type != EventOrderCreated {
				t.Fatalf("expected %s, got %s", EventOrderCreated, ev.Type)
			}
		case <-time.After(time.Second):
			t.Fatal("import was not announced")
		}
	}

	if _, err := s.Import(DemoOrders(now)[0]); !errors.Is(err, ErrDuplicateOrder) {
		t.Fatalf("expected ErrDuplicateOrder, got %v", err)
	}
	if _, err := s.Import(Order{ID: "ORD-X", Status: "lost"}); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if _, err := s.Import(Order{Status: StatusPending}); !errors.Is(err, ErrMissingID) {
		t.Fatalf("expected ErrMissingID, got %v", err)
	}
}
