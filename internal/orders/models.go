package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID                string        `json:"id"`
	CustomerID        string        `json:"customer_id"`
	CustomerName      string        `json:"customer_name"`
	CustomerEmail     string        `json:"customer_email"`
	Items             []Item        `json:"items"`
	TotalAmount       float64       `json:"total_amount"`
	Status            Status        `json:"status"`
	PaymentStatus     PaymentStatus `json:"payment_status"`
	TransactionID     string        `json:"transaction_id,omitempty"`
	FailureReason     string        `json:"failure_reason,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
	EstimatedDelivery *time.Time    `json:"estimated_delivery,omitempty"`
}

// Item is a line of an order. ProductName and Price are snapshots taken when
// the line was added, not live catalog values.
type Item struct {
	ID          string  `json:"id"`
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
	ImageURL    string  `json:"image_url,omitempty"`
}

// NewOrder is the payload accepted by Store.CreateOrder.
type NewOrder struct {
	CustomerID    string
	CustomerName  string
	CustomerEmail string
	Items         []Item
}

// TotalOf sums price*quantity over items.
func TotalOf(items []Item) float64 {
	total := decimal.Zero
	for _, it := range items {
		line := decimal.NewFromFloat(it.Price).Mul(decimal.NewFromInt(int64(it.Quantity)))
		total = total.Add(line)
	}
	return total.InexactFloat64()
}

// clone returns a deep copy so callers never share the stored item slice.
func (o Order) clone() Order {
	cp := o
	cp.Items = append([]Item(nil), o.Items...)
	if o.EstimatedDelivery != nil {
		eta := *o.EstimatedDelivery
		cp.EstimatedDelivery = &eta
	}
	return cp
}
