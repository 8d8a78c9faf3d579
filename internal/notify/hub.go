// Package notify fans change notifications out to subscribers without letting a
// slow subscriber block the mutation that produced them.
//
// Every subscriber owns a bounded inbox drained by its own goroutine. Publish
// never blocks: when an inbox is full the event is dropped for that subscriber
// only (at-most-once delivery). Events reach each subscriber in publish order.
// A subscriber added later does not see earlier events.
package notify

import (
	"sync"
	"sync/atomic"
)

const DefaultBuffer = 256

type Hub[T any] struct {
	mu      sync.RWMutex
	subs    map[uint64]*subscriber[T]
	nextID  uint64
	buf     int
	dropped atomic.Int64
	closed  bool
}

type subscriber[T any] struct {
	inbox   chan T
	stopped atomic.Bool
	once    sync.Once
}

func NewHub[T any](buf int) *Hub[T] {
	if buf <= 0 {
		buf = DefaultBuffer
	}
	return &Hub[T]{subs: make(map[uint64]*subscriber[T]), buf: buf}
}

// Subscribe registers fn and returns a function that removes it. fn runs on a
// goroutine owned by the subscription, one event at a time.
func (h *Hub[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	s := &subscriber[T]{inbox: make(chan T, h.buf)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return func() {}
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = s
	h.mu.Unlock()

	go func() {
		for v := range s.inbox {
			if s.stopped.Load() {
				continue
			}
			fn(v)
		}
	}()

	return func() {
		s.stopped.Store(true)
		h.mu.Lock()
		if _, ok := h.subs[id]; ok {
			delete(h.subs, id)
			s.once.Do(func() { close(s.inbox) })
		}
		h.mu.Unlock()
	}
}

// Publish hands v to every current subscriber.
func (h *Hub[T]) Publish(v T) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.subs {
		select {
		case s.inbox <- v:
		default:
			h.dropped.Add(1)
		}
	}
}

// Subscribers reports the number of active subscriptions.
func (h *Hub[T]) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped reports how many deliveries were discarded because an inbox was full.
func (h *Hub[T]) Dropped() int64 {
	return h.dropped.Load()
}

// Close ends every subscription. Events already queued are still delivered.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, s := range h.subs {
		delete(h.subs, id)
		s.once.Do(func() { close(s.inbox) })
	}
}
