package payment

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v3"

	"github.com/ariefcatur/go-order-fulfillment/internal/clock"
)

const (
	DefaultSuccessRate   = 0.95
	DefaultLatency       = 2 * time.Second
	defaultVerifyLatency = time.Second
	defaultRefundLatency = 1500 * time.Millisecond
	declineMessage       = "Payment declined by bank"
)

// Simulator stands in for a card processor: every call waits a fixed latency,
// charges succeed with probability successRate and otherwise are declined.
type Simulator struct {
	clock            clock.Clock
	latency          time.Duration
	verifyLatency    time.Duration
	refundLatency    time.Duration
	successRate      float64
	gatewayErrorRate float64
	log              *slog.Logger

	mu       sync.Mutex
	rnd      *rand.Rand
	charges  map[string]float64
	refunded map[string]float64
}

type SimulatorOption func(*Simulator)

func WithClock(c clock.Clock) SimulatorOption {
	return func(s *Simulator) { s.clock = c }
}

func WithLatency(d time.Duration) SimulatorOption {
	return func(s *Simulator) {
		if d >= 0 {
			s.latency = d
			s.verifyLatency = d / 2
			s.refundLatency = d * 3 / 4
		}
	}
}

func WithSuccessRate(p float64) SimulatorOption {
	return func(s *Simulator) { s.successRate = clamp01(p) }
}

// WithGatewayErrorRate makes a share of charges fail at the gateway before
// reaching the issuer.
func WithGatewayErrorRate(p float64) SimulatorOption {
	return func(s *Simulator) { s.gatewayErrorRate = clamp01(p) }
}

func WithRand(r *rand.Rand) SimulatorOption {
	return func(s *Simulator) { s.rnd = r }
}

func WithLogger(l *slog.Logger) SimulatorOption {
	return func(s *Simulator) { s.log = l }
}

func NewSimulator(opts ...SimulatorOption) *Simulator {
	s := &Simulator{
		clock:         clock.NewSystem(),
		latency:       DefaultLatency,
		verifyLatency: defaultVerifyLatency,
		refundLatency: defaultRefundLatency,
		successRate:   DefaultSuccessRate,
		log:           slog.Default(),
		rnd:           rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		charges:       make(map[string]float64),
		refunded:      make(map[string]float64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Simulator) ProcessPayment(ctx context.Context, orderID string, amount float64, method string) Result {
	s.log.Info("processing payment", "order_id", orderID, "amount", amount, "method", method)

	if err := clock.Sleep(ctx, s.clock, s.latency); err != nil {
		return GatewayFailure(fmt.Sprintf("gateway timeout: %v", err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rnd.Float64() < s.gatewayErrorRate {
		s.log.Warn("payment gateway error", "order_id", orderID)
		return GatewayFailure("gateway unavailable")
	}
	if s.rnd.Float64() >= s.successRate {
		s.log.Info("payment declined", "order_id", orderID)
		return Declined(declineMessage)
	}

	txn := "TXN-" + shortuuid.New()
	s.charges[txn] = amount
	s.log.Info("payment successful", "order_id", orderID, "transaction_id", txn)
	return Result{Success: true, TransactionID: txn}
}

// VerifyPayment reports whether the transaction was charged by this gateway.
func (s *Simulator) VerifyPayment(ctx context.Context, transactionID string) (bool, error) {
	if err := clock.Sleep(ctx, s.clock, s.verifyLatency); err != nil {
		return false, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.charges[transactionID]
	return ok, nil
}

// RefundPayment is idempotent: amount is the total to have refunded for the
// transaction, so a replay of the same refund changes nothing.
func (s *Simulator) RefundPayment(ctx context.Context, transactionID string, amount float64) error {
	s.log.Info("processing refund", "transaction_id", transactionID, "amount", amount)
	if err := clock.Sleep(ctx, s.clock, s.refundLatency); err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	charged, ok := s.charges[transactionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTransaction, transactionID)
	}
	if s.refunded[transactionID] >= amount {
		return nil
	}
	if amount > charged {
		return fmt.Errorf("%w: %s", ErrRefundExceedsCharge, transactionID)
	}
	s.refunded[transactionID] = amount
	return nil
}

// Refunded reports the amount refunded so far for a transaction.
func (s *Simulator) Refunded(transactionID string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refunded[transactionID]
}

func clamp01(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}
