package payment

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

var errGatewayFault = errors.New("gateway fault")

type BreakerSettings struct {
	Name string
	// ConsecutiveFailures opens the breaker after this many gateway faults in a row.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before a trial call.
	OpenTimeout time.Duration
}

// Breaker short-circuits charges to a gateway that keeps failing. Only
// gateway faults count against it; a declined card is a healthy gateway.
// Verify and refund bypass it: compensation must reach the gateway even
// while new charges are being shed.
type Breaker struct {
	next Gateway
	cb   *gobreaker.CircuitBreaker
}

func NewBreaker(next Gateway, st BreakerSettings) *Breaker {
	if st.Name == "" {
		st.Name = "payment-gateway"
	}
	if st.ConsecutiveFailures == 0 {
		st.ConsecutiveFailures = 5
	}
	if st.OpenTimeout <= 0 {
		st.OpenTimeout = 30 * time.Second
	}
	threshold := st.ConsecutiveFailures
	return &Breaker{
		next: next,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        st.Name,
			MaxRequests: 1,
			Timeout:     st.OpenTimeout,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= threshold
			},
			IsSuccessful: func(err error) bool {
				return !errors.Is(err, errGatewayFault)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				slog.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

func (b *Breaker) ProcessPayment(ctx context.Context, orderID string, amount float64, method string) Result {
	v, err := b.cb.Execute(func() (interface{}, error) {
		res := b.next.ProcessPayment(ctx, orderID, amount, method)
		if res.Kind == KindGateway {
			return res, errGatewayFault
		}
		return res, nil
	})
	if res, ok := v.(Result); ok {
		return res
	}
	return GatewayFailure(err.Error())
}

func (b *Breaker) VerifyPayment(ctx context.Context, transactionID string) (bool, error) {
	return b.next.VerifyPayment(ctx, transactionID)
}

func (b *Breaker) RefundPayment(ctx context.Context, transactionID string, amount float64) error {
	return b.next.RefundPayment(ctx, transactionID, amount)
}

// State is the breaker state name: closed, half-open or open.
func (b *Breaker) State() string {
	return b.cb.State().String()
}
