package orders

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid"
)

// Order ids are ULIDs so that lexical order follows creation order, even for
// orders created within the same millisecond.
var (
	idMu      sync.Mutex
	idEntropy = ulid.Monotonic(rand.Reader, 0)
)

func newOrderID(now time.Time) string {
	idMu.Lock()
	defer idMu.Unlock()
	return "ORD-" + ulid.MustNew(ulid.Timestamp(now), idEntropy).String()
}

func NewItemID() string {
	return "ITEM-" + uuid.NewString()
}
