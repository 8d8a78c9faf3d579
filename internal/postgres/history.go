package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

const schema = `
CREATE TABLE IF NOT EXISTS order_status_history (
	event_id       TEXT PRIMARY KEY,
	order_id       TEXT NOT NULL,
	event_type     TEXT NOT NULL,
	status         TEXT NOT NULL,
	payment_status TEXT NOT NULL,
	transaction_id TEXT NOT NULL DEFAULT '',
	failure_reason TEXT NOT NULL DEFAULT '',
	occurred_at    TIMESTAMPTZ NOT NULL,
	recorded_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS order_status_history_order_idx
	ON order_status_history (order_id, occurred_at);
`

// HistoryEntry is one relayed change of an order.
type HistoryEntry struct {
	EventID       string
	OrderID       string
	EventType     string
	Status        orders.Status
	PaymentStatus orders.PaymentStatus
	TransactionID string
	FailureReason string
	OccurredAt    time.Time
}

// History is the append-only audit trail the tracker writes.
type History struct {
	db *pgxpool.Pool
}

func NewHistory(db *pgxpool.Pool) *History {
	return &History{db: db}
}

func (h *History) EnsureSchema(ctx context.Context) error {
	if _, err := h.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure history schema: %w", err)
	}
	return nil
}

// Append records e. A repeated event id is ignored; it reports whether a row
// was written.
func (h *History) Append(ctx context.Context, e HistoryEntry) (bool, error) {
	tag, err := h.db.Exec(ctx, `
		INSERT INTO order_status_history
			(event_id, order_id, event_type, status, payment_status, transaction_id, failure_reason, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (event_id) DO NOTHING`,
		e.EventID, e.OrderID, e.EventType, string(e.Status), string(e.PaymentStatus),
		e.TransactionID, e.FailureReason, e.OccurredAt)
	if err != nil {
		return false, fmt.Errorf("append history %s: %w", e.OrderID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListByOrder returns the trail of one order, oldest first.
func (h *History) ListByOrder(ctx context.Context, orderID string) ([]HistoryEntry, error) {
	rows, err := h.db.Query(ctx, `
		SELECT event_id, order_id, event_type, status, payment_status, transaction_id, failure_reason, occurred_at
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY occurred_at, recorded_at`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list history %s: %w", orderID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (HistoryEntry, error) {
		var e HistoryEntry
		var status, payment string
		err := row.Scan(&e.EventID, &e.OrderID, &e.EventType, &status, &payment,
			&e.TransactionID, &e.FailureReason, &e.OccurredAt)
		e.Status = orders.Status(status)
		e.PaymentStatus = orders.PaymentStatus(payment)
		return e, err
	})
}
