package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated         = "OrderCreated"
	EventOrderStatusChanged   = "OrderStatusChanged"
	EventPaymentStatusChanged = "PaymentStatusChanged"
	EventInventoryUpdated     = "InventoryUpdated"
)

// Event is what Store subscribers receive: the event type and a copy of the
// order after the mutation.
type Event struct {
	Type  string
	Order Order
}

// Envelope wraps every event relayed outside the process.
type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // one of the consts above
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"` // e.g. "order-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id or product_id
	Payload       json.RawMessage `json:"payload"`
}

// ---- payloads ----

type OrderStatusPayload struct {
	OrderID       string        `json:"order_id"`
	CustomerID    string        `json:"customer_id"`
	Status        Status        `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	TotalAmount   float64       `json:"total_amount"`
	TransactionID string        `json:"transaction_id,omitempty"`
	FailureReason string        `json:"failure_reason,omitempty"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

func StatusPayloadOf(o Order) OrderStatusPayload {
	return OrderStatusPayload{
		OrderID:       o.ID,
		CustomerID:    o.CustomerID,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		TotalAmount:   o.TotalAmount,
		TransactionID: o.TransactionID,
		FailureReason: o.FailureReason,
		UpdatedAt:     o.UpdatedAt,
	}
}

type InventoryUpdatedPayload struct {
	ProductID    string `json:"product_id"`
	ProductName  string `json:"product_name"`
	Available    int    `json:"available"`
	Reserved     int    `json:"reserved"`
	ReorderLevel int    `json:"reorder_level"`
}
