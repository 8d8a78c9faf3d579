package redisx

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Idempotency maps client supplied keys to the order they created. A key is
// claimed with an empty value and bound to the order id once it exists.
type Idempotency struct {
	rdb *redis.Client
}

func NewIdempotency(rdb *redis.Client) *Idempotency {
	return &Idempotency{rdb: rdb}
}

// Lookup returns the stored order id. found is false for unknown keys; an
// empty id with found=true means the first request is still in flight.
func (i *Idempotency) Lookup(ctx context.Context, key string) (orderID string, found bool, err error) {
	v, err := i.rdb.Get(ctx, fmt.Sprintf(KeyIdemOrderCreate, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Claim takes the key for this request. It reports false when someone else
// holds it.
func (i *Idempotency) Claim(ctx context.Context, key string) (bool, error) {
	return i.rdb.SetNX(ctx, fmt.Sprintf(KeyIdemOrderCreate, key), "", TTLIdempotency).Result()
}

func (i *Idempotency) Bind(ctx context.Context, key, orderID string) error {
	return i.rdb.Set(ctx, fmt.Sprintf(KeyIdemOrderCreate, key), orderID, TTLIdempotency).Err()
}

// Release drops a claim whose request failed, so the client may retry.
func (i *Idempotency) Release(ctx context.Context, key string) error {
	return i.rdb.Del(ctx, fmt.Sprintf(KeyIdemOrderCreate, key)).Err()
}
