// Package payment talks to the (simulated) payment provider.
//
// A charge never returns a Go error: its outcome is a Result whose Kind tells
// a business decline (do not retry) from a gateway fault (safe to retry).
package payment

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrPaymentDeclined     = errors.New("payment declined")
	ErrGatewayUnavailable  = errors.New("payment gateway unavailable")
	ErrUnknownTransaction  = errors.New("unknown transaction")
	ErrRefundExceedsCharge = errors.New("refund exceeds charged amount")
)

type Kind string

const (
	KindNone     Kind = ""
	KindDeclined Kind = "declined"
	KindGateway  Kind = "gateway"
)

type Result struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id,omitempty"`
	Error         string `json:"error,omitempty"`
	Kind          Kind   `json:"kind,omitempty"`
}

func Declined(msg string) Result {
	return Result{Error: msg, Kind: KindDeclined}
}

func GatewayFailure(msg string) Result {
	return Result{Error: msg, Kind: KindGateway}
}

// Retryable reports whether the failure came from the gateway rather than
// from the issuer.
func (r Result) Retryable() bool {
	return !r.Success && r.Kind == KindGateway
}

// Err maps a failed Result onto ErrPaymentDeclined or ErrGatewayUnavailable.
func (r Result) Err() error {
	if r.Success {
		return nil
	}
	if r.Kind == KindGateway {
		return fmt.Errorf("%w: %s", ErrGatewayUnavailable, r.Error)
	}
	return fmt.Errorf("%w: %s", ErrPaymentDeclined, r.Error)
}

type Gateway interface {
	ProcessPayment(ctx context.Context, orderID string, amount float64, method string) Result
	VerifyPayment(ctx context.Context, transactionID string) (bool, error)
	RefundPayment(ctx context.Context, transactionID string, amount float64) error
}
