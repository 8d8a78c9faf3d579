package payment

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

type RetryPolicy struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxTries: 3, InitialInterval: 200 * time.Millisecond, MaxInterval: 2 * time.Second}
}

// Retrying retries gateway faults with exponential backoff. Declines are
// final. Verify and refund are idempotent, so any error is retried.
type Retrying struct {
	next   Gateway
	policy RetryPolicy
}

func NewRetrying(next Gateway, p RetryPolicy) *Retrying {
	d := DefaultRetryPolicy()
	if p.MaxTries == 0 {
		p.MaxTries = d.MaxTries
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = d.InitialInterval
	}
	if p.MaxInterval <= 0 {
		p.MaxInterval = d.MaxInterval
	}
	return &Retrying{next: next, policy: p}
}

func (r *Retrying) ProcessPayment(ctx context.Context, orderID string, amount float64, method string) Result {
	var last Result
	_, err := backoff.Retry(ctx, func() (Result, error) {
		last = r.next.ProcessPayment(ctx, orderID, amount, method)
		switch {
		case last.Success:
			return last, nil
		case last.Retryable():
			return last, last.Err()
		default:
			return last, backoff.Permanent(last.Err())
		}
	}, r.options()...)
	if err != nil && !last.Success && last.Kind == KindNone {
		return GatewayFailure(err.Error())
	}
	return last
}

func (r *Retrying) VerifyPayment(ctx context.Context, transactionID string) (bool, error) {
	return backoff.Retry(ctx, func() (bool, error) {
		return r.next.VerifyPayment(ctx, transactionID)
	}, r.options()...)
}

func (r *Retrying) RefundPayment(ctx context.Context, transactionID string, amount float64) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := r.next.RefundPayment(ctx, transactionID, amount)
		if errors.Is(err, ErrUnknownTransaction) || errors.Is(err, ErrRefundExceedsCharge) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, r.options()...)
	return err
}

func (r *Retrying) options() []backoff.RetryOption {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.policy.InitialInterval
	b.MaxInterval = r.policy.MaxInterval
	return []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(r.policy.MaxTries),
	}
}
