package notify

import (
	"sync"
	"testing"
	"time"
)

func TestHub_DeliversInOrder(t *testing.T) {
	t.Parallel()

	h := NewHub[int](16)
	got := make(chan int, 16)
	unsub := h.Subscribe(func(v int) { got <- v })
	defer unsub()

	for i := 0; i < 10; i++ {
		h.Publish(i)
	}

	for want := 0; want < 10; want++ {
		select {
		case v := <-got:
			if v != want {
				t.Fatalf("expected %d, got %d", want, v)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", want)
		}
	}
}

func TestHub_SlowSubscriberDoesNotBlockPublish(t *testing.T) {
	t.Parallel()

	h := NewHub[int](2)
	release := make(chan struct{})
	unsub := h.Subscribe(func(int) { <-release })
	defer func() {
		close(release)
		unsub()
	}()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			h.Publish(i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("publish blocked on a slow subscriber")
	}
	if h.Dropped() == 0 {
		t.Fatalf("expected dropped deliveries for a full inbox")
	}
}

func TestHub_LateSubscriberMissesHistory(t *testing.T) {
	t.Parallel()

	h := NewHub[string](8)
	h.Publish("before")

	got := make(chan string, 8)
	unsub := h.Subscribe(func(v string) { got <- v })
	defer unsub()
	h.Publish("after")

	select {
	case v := <-got:
		if v != "after" {
			t.Fatalf("expected only events after subscribing, got %q", v)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out")
	}
}

func TestHub_Unsubscribe(t *testing.T) {
	t.Parallel()

	h := NewHub[int](8)
	var mu sync.Mutex
	count := 0
	unsub := h.Subscribe(func(int) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	if h.Subscribers() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", h.Subscribers())
	}
	unsub()
	unsub()
	if h.Subscribers() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", h.Subscribers())
	}

	h.Publish(1)
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if count != 0 {
		t.Fatalf("expected no deliveries after unsubscribe, got %d", count)
	}
}

func TestHub_CloseEndsSubscriptions(t *testing.T) {
	t.Parallel()

	h := NewHub[int](4)
	h.Subscribe(func(int) {})
	h.Close()
	if h.Subscribers() != 0 {
		t.Fatalf("expected no subscribers after close")
	}
	unsub := h.Subscribe(func(int) {})
	unsub()
	h.Publish(1)
}
