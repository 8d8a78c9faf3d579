package fulfillment

import (
	"errors"

	"github.com/ariefcatur/go-order-fulfillment/internal/payment"
)

var (
	ErrUnexpectedFailure = errors.New("unexpected failure")
	ErrPaymentDeclined   = payment.ErrPaymentDeclined
	ErrNotPending        = errors.New("order is not pending")
	ErrAlreadyRunning    = errors.New("order is already being processed")
	ErrNotRunning        = errors.New("order is not being processed")
	ErrNotCancellable    = errors.New("order can no longer be cancelled")
	ErrShuttingDown      = errors.New("orchestrator is shutting down")
	ErrInvalidOrder      = errors.New("invalid order")

	errCancelRequested = errors.New("cancellation requested")
)
