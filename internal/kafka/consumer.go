package kafka

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/cespare/xxhash/v2"
	"github.com/segmentio/kafka-go"
)

// Handler returns nil only when the message is done and its offset may be
// committed.
type Handler func(ctx context.Context, m kafka.Message) error

type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer hands messages to a fixed set of workers. Messages with the same
// key always go to the same worker, in partition order, and a failing
// message is retried until it succeeds. An offset is committed only once
// every earlier offset of its partition is done.
type Consumer struct {
	r        reader
	workers  int
	retryMin time.Duration
	retryMax time.Duration
	log      *slog.Logger
}

func NewConsumer(brokers []string, group, topic string, workers int, log *slog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	if log == nil {
		log = slog.Default()
	}
	return newConsumer(r, workers, log.With("topic", topic, "group", group))
}

func newConsumer(r reader, workers int, log *slog.Logger) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{
		r:        r,
		workers:  workers,
		retryMin: 200 * time.Millisecond,
		retryMax: 10 * time.Second,
		log:      log,
	}
}

// Start reads until ctx ends. A shutdown is not reported as an error;
// messages still in flight then stay uncommitted and are redelivered.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()
	ctx, cancel := context.WithCancel(ctx)

	commits := &frontier{r: c.r, log: c.log, parts: make(map[int]*partitionLog)}
	lanes := make([]chan kafka.Message, c.workers)

	var wg sync.WaitGroup
	for i := range lanes {
		lanes[i] = make(chan kafka.Message, 256)
		wg.Add(1)
		go func(id int, lane <-chan kafka.Message) {
			defer wg.Done()
			for m := range lane {
				if !c.handle(ctx, h, m, id) {
					continue
				}
				commits.done(ctx, m)
			}
		}(i, lanes[i])
	}
	defer func() {
		cancel()
		for _, lane := range lanes {
			close(lane)
		}
		wg.Wait()
	}()

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		commits.track(m)
		select {
		case lanes[c.lane(m)] <- m:
		case <-ctx.Done():
			return nil
		}
	}
}

// lane picks the worker for m by key, or by partition for unkeyed messages.
func (c *Consumer) lane(m kafka.Message) int {
	key := m.Key
	if len(key) == 0 {
		key = []byte{byte(m.Partition >> 24), byte(m.Partition >> 16), byte(m.Partition >> 8), byte(m.Partition)}
	}
	return int(xxhash.Sum64(key) % uint64(c.workers))
}

// handle runs h until it succeeds. It returns false only when ctx ended
// first.
func (c *Consumer) handle(ctx context.Context, h Handler, m kafka.Message, worker int) bool {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryMin
	b.MaxInterval = c.retryMax

	for attempt := 1; ; attempt++ {
		err := h(ctx, m)
		if err == nil {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		wait := b.NextBackOff()
		c.log.Error("handler failed, retrying", "worker", worker, "partition", m.Partition,
			"offset", m.Offset, "attempt", attempt, "retry_in", wait, "err", err)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return false
		}
	}
}

// frontier commits, per partition, the highest offset below which every
// fetched message is done.
type frontier struct {
	r   reader
	log *slog.Logger

	mu    sync.Mutex
	parts map[int]*partitionLog
}

type partitionLog struct {
	pending []kafka.Message
	done    map[int64]bool
}

func (f *frontier) track(m kafka.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.parts[m.Partition]
	if !ok {
		p = &partitionLog{done: make(map[int64]bool)}
		f.parts[m.Partition] = p
	}
	p.pending = append(p.pending, m)
}

func (f *frontier) done(ctx context.Context, m kafka.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.parts[m.Partition]
	if p == nil {
		return
	}
	p.done[m.Offset] = true

	var upto *kafka.Message
	for len(p.pending) > 0 && p.done[p.pending[0].Offset] {
		head := p.pending[0]
		delete(p.done, head.Offset)
		p.pending = p.pending[1:]
		upto = &head
	}
	if upto == nil {
		return
	}
	// commits stay under the lock so they reach the broker in offset order
	if err := f.r.CommitMessages(ctx, *upto); err != nil && ctx.Err() == nil {
		f.log.Error("commit failed", "partition", upto.Partition, "offset", upto.Offset, "err", err)
	}
}
