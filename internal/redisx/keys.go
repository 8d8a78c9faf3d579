package redisx

import "time"

const (
	// Create-order idempotency: idem:order:create:{key} -> order_id ("" while in flight)
	KeyIdemOrderCreate = "idem:order:create:%s"

	// Latest status per order: order_status:{order_id} -> OrderStatusPayload JSON
	KeyOrderStatus = "order_status:%s"

	// Event dedup: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLStatusCache = 7 * 24 * time.Hour
	TTLDedup       = 48 * time.Hour
)
