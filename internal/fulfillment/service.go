package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ariefcatur/go-order-fulfillment/internal/inventory"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

type PlaceOrderInput struct {
	CustomerID    string      `json:"customer_id" validate:"required"`
	CustomerName  string      `json:"customer_name" validate:"required"`
	CustomerEmail string      `json:"customer_email" validate:"required,email"`
	Items         []ItemInput `json:"items" validate:"required,min=1,dive"`
}

type ItemInput struct {
	ProductID   string  `json:"product_id" validate:"required"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity" validate:"gte=1"`
	Price       float64 `json:"price" validate:"gte=0"`
	ImageURL    string  `json:"image_url" validate:"omitempty,url"`
}

// Catalog is the read side of the ledger the service needs.
type Catalog interface {
	Get(productID string) (inventory.Item, error)
	GetInventoryStatus() []inventory.Item
	LowStock() []inventory.Item
}

type Orders interface {
	CreateOrder(in orders.NewOrder) orders.Order
	GetOrder(orderID string) (orders.Order, error)
	GetAllOrders() []orders.Order
	UpdateOrderStatus(orderID string, status orders.Status) (orders.Order, error)
	SetFailureReason(orderID, reason string) error
}

// Service is the boundary presentation layers call: it accepts orders, hands
// them to the orchestrator and answers read-only queries.
type Service struct {
	orders   Orders
	catalog  Catalog
	saga     *Orchestrator
	validate *validator.Validate
	log      *slog.Logger
}

func NewService(store Orders, catalog Catalog, saga *Orchestrator, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		orders:   store,
		catalog:  catalog,
		saga:     saga,
		validate: validator.New(),
		log:      log,
	}
}

// PlaceOrder validates and stores the order, then starts its saga. Lines for
// the same product are merged; product names default to the ledger's.
func (s *Service) PlaceOrder(ctx context.Context, in PlaceOrderInput) (orders.Order, error) {
	if err := ctx.Err(); err != nil {
		return orders.Order{}, err
	}
	if err := s.validate.Struct(in); err != nil {
		return orders.Order{}, fmt.Errorf("%w: %s", ErrInvalidOrder, describe(err))
	}

	var draft orders.Draft
	for _, it := range in.Items {
		stock, err := s.catalog.Get(it.ProductID)
		if err != nil {
			return orders.Order{}, err
		}
		name := it.ProductName
		if name == "" {
			name = stock.ProductName
		}
		if err := draft.AddItem(it.ProductID, name, it.Quantity, it.Price, it.ImageURL); err != nil {
			return orders.Order{}, fmt.Errorf("%w: %v", ErrInvalidOrder, err)
		}
	}

	order := s.orders.CreateOrder(orders.NewOrder{
		CustomerID:    in.CustomerID,
		CustomerName:  in.CustomerName,
		CustomerEmail: in.CustomerEmail,
		Items:         draft.Items(),
	})

	if err := s.saga.Process(order); err != nil {
		s.log.Error("order not handed to orchestrator", "order_id", order.ID, "err", err)
		_ = s.orders.SetFailureReason(order.ID, err.Error())
		if _, uerr := s.orders.UpdateOrderStatus(order.ID, orders.StatusCancelled); uerr != nil {
			s.log.Error("cancel unprocessed order", "order_id", order.ID, "err", uerr)
		}
		return orders.Order{}, err
	}
	return order, nil
}

// CancelOrder asks the running saga to stop.
func (s *Service) CancelOrder(ctx context.Context, orderID, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o, err := s.orders.GetOrder(orderID)
	if err != nil {
		return err
	}
	if !o.Status.Cancellable() {
		return ErrNotCancellable
	}
	return s.saga.Cancel(orderID, reason)
}

func (s *Service) GetOrder(orderID string) (orders.Order, error) {
	return s.orders.GetOrder(orderID)
}

func (s *Service) ListOrders() []orders.Order {
	return s.orders.GetAllOrders()
}

func (s *Service) Inventory() []inventory.Item {
	return s.catalog.GetInventoryStatus()
}

func (s *Service) LowStock() []inventory.Item {
	return s.catalog.LowStock()
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
