package fulfillment

import (
	"time"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

// Stage is one step of the post-confirmation pipeline: wait Delay, then move
// the order to Status. When FulfillStock is set, reserved stock for every line
// is consumed before the transition.
type Stage struct {
	Status       orders.Status
	Delay        time.Duration
	FulfillStock bool
}

func DefaultStages() []Stage {
	return []Stage{
		{Status: orders.StatusPicking, Delay: 3 * time.Second},
		{Status: orders.StatusPacked, Delay: 2 * time.Second, FulfillStock: true},
		{Status: orders.StatusShipped, Delay: time.Second},
		{Status: orders.StatusDelivered, Delay: 10 * time.Second},
	}
}

// StageDelays builds the default pipeline with the given waits.
func StageDelays(picking, packed, shipped, delivered time.Duration) []Stage {
	st := DefaultStages()
	st[0].Delay = picking
	st[1].Delay = packed
	st[2].Delay = shipped
	st[3].Delay = delivered
	return st
}
