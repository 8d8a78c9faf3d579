package orders

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusConfirmed  Status = "confirmed"
	StatusPicking    Status = "picking"
	StatusPacked     Status = "packed"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// Pipeline is the happy path in order. Cancelled sits outside it.
var Pipeline = []Status{
	StatusPending,
	StatusProcessing,
	StatusConfirmed,
	StatusPicking,
	StatusPacked,
	StatusShipped,
	StatusDelivered,
}

var validNext = map[Status]map[Status]bool{
	StatusPending:    {StatusProcessing: true, StatusCancelled: true},
	StatusProcessing: {StatusConfirmed: true, StatusCancelled: true},
	StatusConfirmed:  {StatusPicking: true, StatusCancelled: true},
	StatusPicking:    {StatusPacked: true, StatusCancelled: true},
	StatusPacked:     {StatusShipped: true},
	StatusShipped:    {StatusDelivered: true},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Position is the index of s in Pipeline, or -1 for cancelled and unknown values.
func Position(s Status) int {
	for i, p := range Pipeline {
		if p == s {
			return i
		}
	}
	return -1
}

func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Cancellable reports whether an order in s can still be cancelled.
func (s Status) Cancellable() bool {
	return validNext[s][StatusCancelled]
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentCompleted  PaymentStatus = "completed"
	PaymentFailed     PaymentStatus = "failed"
	PaymentRefunded   PaymentStatus = "refunded"
)
