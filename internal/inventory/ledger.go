package inventory

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/ariefcatur/go-order-fulfillment/internal/notify"
)

var (
	ErrNotFound                  = errors.New("product not found")
	ErrAlreadyExists             = errors.New("product already exists")
	ErrInvalidQuantity           = errors.New("invalid quantity")
	ErrInsufficientStock         = errors.New("insufficient stock")
	ErrInsufficientReservedStock = errors.New("insufficient reserved stock")
)

// Item is the stock of one product. Every unit the ledger tracks is either
// Available or Reserved; fulfilled units leave the ledger.
type Item struct {
	ProductID    string `json:"product_id" yaml:"product_id"`
	ProductName  string `json:"product_name" yaml:"product_name"`
	Available    int    `json:"available_stock" yaml:"available"`
	Reserved     int    `json:"reserved_stock" yaml:"reserved"`
	ReorderLevel int    `json:"reorder_level" yaml:"reorder_level"`
}

func (i Item) NeedsReorder() bool {
	return i.Available <= i.ReorderLevel
}

// slot serialises every mutation of one product.
type slot struct {
	mu   sync.Mutex
	item Item
}

// Ledger holds per-product stock counters. Operations on the same product are
// serialised by that product's lock; different products never contend.
type Ledger struct {
	mu       sync.RWMutex
	products map[string]*slot
	hub      *notify.Hub[Item]
	log      *slog.Logger
}

type Option func(*Ledger)

func WithLogger(l *slog.Logger) Option {
	return func(led *Ledger) { led.log = l }
}

// WithNotifyBuffer sets the per-subscriber queue size.
func WithNotifyBuffer(n int) Option {
	return func(led *Ledger) { led.hub = notify.NewHub[Item](n) }
}

func NewLedger(opts ...Option) *Ledger {
	led := &Ledger{
		products: make(map[string]*slot),
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(led)
	}
	if led.hub == nil {
		led.hub = notify.NewHub[Item](notify.DefaultBuffer)
	}
	return led
}

// AddProduct registers a product with its opening counters.
func (l *Ledger) AddProduct(it Item) error {
	if it.ProductID == "" {
		return fmt.Errorf("%w: empty product id", ErrNotFound)
	}
	if it.Available < 0 || it.Reserved < 0 {
		return ErrInvalidQuantity
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.products[it.ProductID]; ok {
		return ErrAlreadyExists
	}
	l.products[it.ProductID] = &slot{item: it}
	return nil
}

// CheckAvailability reports whether qty units can be reserved right now.
func (l *Ledger) CheckAvailability(productID string, qty int) (bool, error) {
	s, err := l.slot(productID)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.item.Available >= qty, nil
}

// ReserveStock moves qty units from available to reserved, or changes nothing.
func (l *Ledger) ReserveStock(productID string, qty int) (Item, error) {
	return l.mutate(productID, qty, "reserved", func(it *Item) error {
		if it.Available < qty {
			return fmt.Errorf("%w: %s requested %d, available %d", ErrInsufficientStock, productID, qty, it.Available)
		}
		it.Available -= qty
		it.Reserved += qty
		return nil
	})
}

// ReleaseReservation moves reserved units back to available. Releasing more
// than is reserved releases only what is there.
func (l *Ledger) ReleaseReservation(productID string, qty int) (Item, error) {
	return l.mutate(productID, qty, "released", func(it *Item) error {
		released := qty
		if released > it.Reserved {
			l.log.Warn("release exceeds reservation, clamping",
				"product_id", productID, "requested", qty, "reserved", it.Reserved)
			released = it.Reserved
		}
		it.Reserved -= released
		it.Available += released
		return nil
	})
}

// FulfillOrder removes reserved units for good. Available is untouched.
func (l *Ledger) FulfillOrder(productID string, qty int) (Item, error) {
	return l.mutate(productID, qty, "fulfilled", func(it *Item) error {
		if it.Reserved < qty {
			return fmt.Errorf("%w: %s requested %d, reserved %d", ErrInsufficientReservedStock, productID, qty, it.Reserved)
		}
		it.Reserved -= qty
		return nil
	})
}

// Restock adds newly received units to available.
func (l *Ledger) Restock(productID string, qty int) (Item, error) {
	return l.mutate(productID, qty, "restocked", func(it *Item) error {
		it.Available += qty
		return nil
	})
}

func (l *Ledger) Get(productID string) (Item, error) {
	s, err := l.slot(productID)
	if err != nil {
		return Item{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.item, nil
}

// GetInventoryStatus returns a snapshot of every product, sorted by id.
func (l *Ledger) GetInventoryStatus() []Item {
	l.mu.RLock()
	slots := make([]*slot, 0, len(l.products))
	for _, s := range l.products {
		slots = append(slots, s)
	}
	l.mu.RUnlock()

	out := make([]Item, 0, len(slots))
	for _, s := range slots {
		s.mu.Lock()
		out = append(out, s.item)
		s.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

// LowStock returns the products at or below their reorder level.
func (l *Ledger) LowStock() []Item {
	var out []Item
	for _, it := range l.GetInventoryStatus() {
		if it.NeedsReorder() {
			out = append(out, it)
		}
	}
	return out
}

func (l *Ledger) SubscribeToUpdates(fn func(Item)) (unsubscribe func()) {
	return l.hub.Subscribe(fn)
}

func (l *Ledger) DroppedNotifications() int64 {
	return l.hub.Dropped()
}

func (l *Ledger) Close() {
	l.hub.Close()
}

func (l *Ledger) slot(productID string) (*slot, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.products[productID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, productID)
	}
	return s, nil
}

func (l *Ledger) mutate(productID string, qty int, action string, fn func(*Item) error) (Item, error) {
	if qty < 1 {
		return Item{}, ErrInvalidQuantity
	}
	s, err := l.slot(productID)
	if err != nil {
		return Item{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.item
	if err := fn(&next); err != nil {
		return s.item, err
	}
	s.item = next
	// publish under the product lock so subscribers see this product's
	// updates in mutation order
	l.hub.Publish(next)

	l.log.Debug("inventory "+action, "product_id", productID, "qty", qty,
		"available", next.Available, "reserved", next.Reserved)
	return next, nil
}
