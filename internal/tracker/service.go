// Package tracker follows relayed order events: it caches the latest status
// per order and keeps an audit trail of every change.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/go-order-fulfillment/internal/kafka"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"github.com/ariefcatur/go-order-fulfillment/internal/postgres"
)

type Dedup interface {
	FirstSeen(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

type StatusCache interface {
	Put(ctx context.Context, p orders.OrderStatusPayload) error
}

type History interface {
	Append(ctx context.Context, e postgres.HistoryEntry) (bool, error)
}

type Service struct {
	Dedup   Dedup
	Cache   StatusCache
	History History
	Log     *slog.Logger
}

// HandleOrderEvent is installed as the consumer handler for the status topic.
func (s *Service) HandleOrderEvent(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.DecodeEnvelope(m.Value)
	if err != nil {
		// a malformed message will never decode; commit it and move on
		s.logger().Error("dropping undecodable message", "key", string(m.Key), "err", err)
		return nil
	}
	switch env.EventType {
	case orders.EventOrderCreated, orders.EventOrderStatusChanged, orders.EventPaymentStatusChanged:
	default:
		return nil
	}
	p, err := kafkax.UnwrapPayload[orders.OrderStatusPayload](env.Payload)
	if err != nil {
		s.logger().Error("dropping event with undecodable payload", "event_id", env.EventID, "err", err)
		return nil
	}

	first, err := s.Dedup.FirstSeen(ctx, env.EventID)
	if err != nil {
		return fmt.Errorf("dedup %s: %w", env.EventID, err)
	}
	if !first {
		return nil
	}

	if err := s.apply(ctx, env, p); err != nil {
		if ferr := s.Dedup.Forget(ctx, env.EventID); ferr != nil {
			err = errors.Join(err, ferr)
		}
		return err
	}
	return nil
}

func (s *Service) apply(ctx context.Context, env orders.Envelope, p orders.OrderStatusPayload) error {
	if _, err := s.History.Append(ctx, postgres.HistoryEntry{
		EventID:       env.EventID,
		OrderID:       p.OrderID,
		EventType:     env.EventType,
		Status:        p.Status,
		PaymentStatus: p.PaymentStatus,
		TransactionID: p.TransactionID,
		FailureReason: p.FailureReason,
		OccurredAt:    env.OccurredAt,
	}); err != nil {
		return err
	}
	if err := s.Cache.Put(ctx, p); err != nil {
		return fmt.Errorf("cache status %s: %w", p.OrderID, err)
	}

	s.logger().Info("order tracked", "order_id", p.OrderID, "event", env.EventType,
		"status", p.Status, "payment_status", p.PaymentStatus)
	return nil
}

func (s *Service) logger() *slog.Logger {
	if s.Log == nil {
		return slog.Default()
	}
	return s.Log
}
