package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

var ErrNoStatus = errors.New("no cached status")

// putStatusScript writes the entry unless the stored one is newer. The check
// and the write run as one step on the server.
var putStatusScript = redis.NewScript(`
local key = KEYS[1]
local ts = tonumber(ARGV[1])

local current = redis.call('HGET', key, 'ts')
if current and tonumber(current) > ts then
	return 0
end

redis.call('HSET', key, 'ts', ARGV[1], 'body', ARGV[2])
redis.call('EXPIRE', key, tonumber(ARGV[3]))
return 1
`)

// StatusCache keeps the latest relayed status of each order as a hash of
// its update time in microseconds and the JSON payload.
type StatusCache struct {
	rdb *redis.Client
}

func NewStatusCache(rdb *redis.Client) *StatusCache {
	return &StatusCache{rdb: rdb}
}

// Put stores p unless the cached entry is newer, so late redeliveries do not
// roll a status back.
func (c *StatusCache) Put(ctx context.Context, p orders.OrderStatusPayload) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	key := fmt.Sprintf(KeyOrderStatus, p.OrderID)
	err = putStatusScript.Run(ctx, c.rdb, []string{key},
		p.UpdatedAt.UnixMicro(), b, int64(TTLStatusCache.Seconds())).Err()
	if err != nil {
		return fmt.Errorf("put status %s: %w", p.OrderID, err)
	}
	return nil
}

func (c *StatusCache) Get(ctx context.Context, orderID string) (orders.OrderStatusPayload, error) {
	var p orders.OrderStatusPayload
	b, err := c.rdb.HGet(ctx, fmt.Sprintf(KeyOrderStatus, orderID), "body").Bytes()
	if errors.Is(err, redis.Nil) {
		return p, ErrNoStatus
	}
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal(b, &p); err != nil {
		return p, fmt.Errorf("decode cached status %s: %w", orderID, err)
	}
	return p, nil
}
