package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// Connect returns a client only once the server answers a ping.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := New(addr)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}

// FirstSeen marks an event as handled by service. It reports false when the
// event was already marked, so redelivered messages can be skipped.
func FirstSeen(ctx context.Context, rdb *redis.Client, service, eventID string) (bool, error) {
	return rdb.SetNX(ctx, fmt.Sprintf(KeyDedup, service, eventID), "1", TTLDedup).Result()
}

// Dedup binds FirstSeen to one consuming service.
type Dedup struct {
	rdb     *redis.Client
	service string
}

func NewDedup(rdb *redis.Client, service string) *Dedup {
	return &Dedup{rdb: rdb, service: service}
}

func (d *Dedup) FirstSeen(ctx context.Context, eventID string) (bool, error) {
	return FirstSeen(ctx, d.rdb, d.service, eventID)
}

// Forget unmarks an event whose handling failed so a redelivery is processed.
func (d *Dedup) Forget(ctx context.Context, eventID string) error {
	return d.rdb.Del(ctx, fmt.Sprintf(KeyDedup, d.service, eventID)).Err()
}
