// Package fulfillment drives orders through reservation, payment and the
// warehouse pipeline, compensating on failure.
package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/ariefcatur/go-order-fulfillment/internal/clock"
	"github.com/ariefcatur/go-order-fulfillment/internal/inventory"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"github.com/ariefcatur/go-order-fulfillment/internal/payment"
)

const (
	DefaultPaymentMethod = "credit_card"
	compensationTimeout  = 30 * time.Second
)

type Ledger interface {
	ReserveStock(productID string, qty int) (inventory.Item, error)
	ReleaseReservation(productID string, qty int) (inventory.Item, error)
	FulfillOrder(productID string, qty int) (inventory.Item, error)
}

type OrderStore interface {
	UpdateOrderStatus(orderID string, status orders.Status) (orders.Order, error)
	UpdatePaymentStatus(orderID string, ps orders.PaymentStatus, txnID string) (orders.Order, error)
	SetFailureReason(orderID, reason string) error
}

// Orchestrator owns no order or stock state. It only calls the store, the
// ledger and the gateway, and keeps track of which sagas are running.
type Orchestrator struct {
	store    OrderStore
	ledger   Ledger
	payments payment.Gateway
	clock    clock.Clock
	log      *slog.Logger
	metrics  *Metrics
	stages   []Stage
	method   string

	base context.Context
	halt context.CancelCauseFunc

	mu      sync.Mutex
	running map[string]*saga
	closing bool
	wg      sync.WaitGroup
}

type Option func(*Orchestrator)

func WithClock(c clock.Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func WithStages(st []Stage) Option {
	return func(o *Orchestrator) { o.stages = st }
}

func WithPaymentMethod(m string) Option {
	return func(o *Orchestrator) { o.method = m }
}

func New(store OrderStore, ledger Ledger, payments payment.Gateway, opts ...Option) *Orchestrator {
	base, halt := context.WithCancelCause(context.Background())
	o := &Orchestrator{
		store:    store,
		ledger:   ledger,
		payments: payments,
		clock:    clock.NewSystem(),
		log:      slog.Default(),
		stages:   DefaultStages(),
		method:   DefaultPaymentMethod,
		base:     base,
		halt:     halt,
		running:  make(map[string]*saga),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = NewMetrics(nil)
	}
	return o
}

// saga is the run state of one order. held lists lines that are reserved and
// not yet fulfilled; it is what compensation gives back.
type saga struct {
	order  orders.Order
	status orders.Status
	held   []orders.Item
	txnID  string
	paid   bool

	cancel context.CancelCauseFunc
	done   chan struct{}

	mu          sync.Mutex
	cancellable bool
}

// Process starts the saga for a freshly created order and returns at once.
// Saga failures never come back to the caller; they end in a cancelled order.
func (o *Orchestrator) Process(order orders.Order) error {
	if order.Status != orders.StatusPending {
		return fmt.Errorf("%w: %s is %s", ErrNotPending, order.ID, order.Status)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closing {
		return ErrShuttingDown
	}
	if _, ok := o.running[order.ID]; ok {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancelCause(o.base)
	sg := &saga{
		order:       order,
		status:      order.Status,
		cancel:      cancel,
		done:        make(chan struct{}),
		cancellable: true,
	}
	o.running[order.ID] = sg
	o.wg.Add(1)
	o.metrics.started.Inc(1)
	o.metrics.inFlight.Update(int64(len(o.running)))

	go o.run(ctx, sg)
	return nil
}

// Cancel asks a running saga to stop and compensate. It is honoured until
// stock has been consumed for packing.
func (o *Orchestrator) Cancel(orderID, reason string) error {
	o.mu.Lock()
	sg, ok := o.running[orderID]
	o.mu.Unlock()
	if !ok {
		return ErrNotRunning
	}

	sg.mu.Lock()
	defer sg.mu.Unlock()
	if !sg.cancellable {
		return ErrNotCancellable
	}
	if reason == "" {
		reason = "cancelled by request"
	}
	sg.cancel(fmt.Errorf("%w: %s", errCancelRequested, reason))
	return nil
}

// Done returns a channel closed when the saga for orderID has ended. It is
// already closed when no saga is running for that order.
func (o *Orchestrator) Done(orderID string) <-chan struct{} {
	o.mu.Lock()
	defer o.mu.Unlock()
	if sg, ok := o.running[orderID]; ok {
		return sg.done
	}
	ch := make(chan struct{})
	close(ch)
	return ch
}

func (o *Orchestrator) Running() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.running)
}

func (o *Orchestrator) Metrics() *Metrics {
	return o.metrics
}

// Shutdown stops accepting orders and waits for running sagas. When ctx ends
// first, the remaining sagas are interrupted and compensated.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.closing = true
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		o.halt(ErrShuttingDown)
		<-done
		return ctx.Err()
	}
}

func (o *Orchestrator) run(ctx context.Context, sg *saga) {
	defer o.finish(sg)
	defer func() {
		if r := recover(); r != nil {
			o.fail(ctx, sg, fmt.Errorf("%w: panic: %v", ErrUnexpectedFailure, r))
		}
	}()

	o.log.Info("saga started", "order_id", sg.order.ID, "items", len(sg.order.Items), "total", sg.order.TotalAmount)
	if err := o.drive(ctx, sg); err != nil {
		o.fail(ctx, sg, err)
	}
}

func (o *Orchestrator) drive(ctx context.Context, sg *saga) error {
	id := sg.order.ID

	for _, it := range sg.order.Items {
		if err := interrupted(ctx); err != nil {
			return err
		}
		if _, err := o.ledger.ReserveStock(it.ProductID, it.Quantity); err != nil {
			return fmt.Errorf("reserve %s: %w", it.ProductID, err)
		}
		sg.held = append(sg.held, it)
	}

	if err := o.advance(sg, orders.StatusProcessing); err != nil {
		return err
	}
	if err := o.setPayment(id, orders.PaymentProcessing, ""); err != nil {
		return err
	}

	start := o.clock.Now()
	res := o.payments.ProcessPayment(ctx, id, sg.order.TotalAmount, o.method)
	o.metrics.paymentLatency.Update(o.clock.Now().Sub(start))
	if res.Success {
		// recorded before a cancel is honoured; compensation refunds it by id
		sg.txnID = res.TransactionID
		sg.paid = true
		if err := o.setPayment(id, orders.PaymentCompleted, res.TransactionID); err != nil {
			return err
		}
	}
	if err := interrupted(ctx); err != nil {
		return err
	}
	if !res.Success {
		if err := o.setPayment(id, orders.PaymentFailed, ""); err != nil {
			return err
		}
		return res.Err()
	}

	if err := o.advance(sg, orders.StatusConfirmed); err != nil {
		return err
	}
	o.metrics.confirmed.Inc(1)

	return o.fulfil(ctx, sg)
}

// fulfil walks the stage table. Once stock is consumed the run only stops
// for shutdown, not for cancellation requests.
func (o *Orchestrator) fulfil(ctx context.Context, sg *saga) error {
	for _, st := range o.stages {
		if err := clock.Sleep(ctx, o.clock, st.Delay); err != nil {
			if cause := interrupted(ctx); cause != nil {
				return cause
			}
			return err
		}
		if st.FulfillStock {
			if err := o.consume(ctx, sg); err != nil {
				return err
			}
			ctx = o.base
		}
		if err := o.advance(sg, st.Status); err != nil {
			return err
		}
	}

	if sg.status == orders.StatusDelivered {
		o.metrics.delivered.Inc(1)
	}
	o.log.Info("saga finished", "order_id", sg.order.ID, "status", sg.status)
	return nil
}

func (o *Orchestrator) consume(ctx context.Context, sg *saga) error {
	sg.mu.Lock()
	if err := interrupted(ctx); err != nil {
		sg.mu.Unlock()
		return err
	}
	sg.cancellable = false
	sg.mu.Unlock()

	for len(sg.held) > 0 {
		it := sg.held[0]
		if _, err := o.ledger.FulfillOrder(it.ProductID, it.Quantity); err != nil {
			return fmt.Errorf("%w: fulfil %s: %v", ErrUnexpectedFailure, it.ProductID, err)
		}
		sg.held = sg.held[1:]
	}
	return nil
}

func (o *Orchestrator) advance(sg *saga, to orders.Status) error {
	if !orders.CanTransition(sg.status, to) {
		return fmt.Errorf("%w: illegal transition %s -> %s", ErrUnexpectedFailure, sg.status, to)
	}
	if _, err := o.store.UpdateOrderStatus(sg.order.ID, to); err != nil {
		return fmt.Errorf("%w: update status to %s: %v", ErrUnexpectedFailure, to, err)
	}
	sg.status = to
	return nil
}

func (o *Orchestrator) setPayment(orderID string, ps orders.PaymentStatus, txnID string) error {
	if _, err := o.store.UpdatePaymentStatus(orderID, ps, txnID); err != nil {
		return fmt.Errorf("%w: update payment status to %s: %v", ErrUnexpectedFailure, ps, err)
	}
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, sg *saga, err error) {
	if cause := interrupted(ctx); cause != nil {
		err = cause
	}
	log := o.log.With("order_id", sg.order.ID)

	switch {
	case errors.Is(err, errCancelRequested), errors.Is(err, ErrShuttingDown):
		log.Info("saga interrupted", "reason", err.Error())
	case isReservationFailure(err):
		o.metrics.reservationFailed.Inc(1)
		log.Info("inventory reservation failed", "err", err)
	case errors.Is(err, payment.ErrPaymentDeclined), errors.Is(err, payment.ErrGatewayUnavailable):
		o.metrics.paymentFailed.Inc(1)
		log.Info("payment failed", "err", err)
	default:
		o.metrics.unexpected.Inc(1)
		log.Error("saga failed", "err", err)
	}

	o.compensate(sg, err.Error())
}

// compensate gives back held stock and the charge, then cancels the order if
// its current status still allows it. Stock goes back before the status
// change so no observer sees a cancelled order still holding stock.
func (o *Orchestrator) compensate(sg *saga, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), compensationTimeout)
	defer cancel()
	id := sg.order.ID
	log := o.log.With("order_id", id)
	cancellable := orders.CanTransition(sg.status, orders.StatusCancelled)

	var errs *multierror.Error
	for _, it := range sg.held {
		if _, err := o.ledger.ReleaseReservation(it.ProductID, it.Quantity); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("release %s: %w", it.ProductID, err))
		}
	}
	sg.held = nil

	if sg.paid && cancellable {
		if err := o.payments.RefundPayment(ctx, sg.txnID, sg.order.TotalAmount); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("refund %s: %w", sg.txnID, err))
			reason = fmt.Sprintf("%s; refund of %s failed: %v", reason, sg.txnID, err)
			o.metrics.refundFailed.Inc(1)
		} else {
			sg.paid = false
			if err := o.setPayment(id, orders.PaymentRefunded, sg.txnID); err != nil {
				errs = multierror.Append(errs, err)
			}
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		log.Error("compensation incomplete", "err", err)
	}

	if !cancellable {
		log.Warn("order cannot be cancelled from its status, leaving it", "status", sg.status, "reason", reason)
		return
	}
	if err := o.store.SetFailureReason(id, reason); err != nil {
		log.Error("record failure reason", "err", err)
	}
	if err := o.advance(sg, orders.StatusCancelled); err != nil {
		log.Error("cancel order", "err", err)
		return
	}
	o.metrics.cancelled.Inc(1)
	log.Info("order cancelled", "reason", reason)
}

func (o *Orchestrator) finish(sg *saga) {
	sg.cancel(nil)

	o.mu.Lock()
	delete(o.running, sg.order.ID)
	o.metrics.inFlight.Update(int64(len(o.running)))
	o.mu.Unlock()

	close(sg.done)
	o.wg.Done()
}

func interrupted(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}
	return context.Cause(ctx)
}

func isReservationFailure(err error) bool {
	return errors.Is(err, inventory.ErrInsufficientStock) ||
		errors.Is(err, inventory.ErrNotFound) ||
		errors.Is(err, inventory.ErrInvalidQuantity)
}
