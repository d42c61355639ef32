package stream

import "sync"

// Hub fans published values out to every current subscriber. Publishing never blocks: a
// subscriber whose buffer is full misses the value.
type Hub[T any] struct {
	mu     sync.Mutex
	subs   map[chan T]struct{}
	buffer int
	closed bool
}

func NewHub[T any](buffer int) *Hub[T] {
	return &Hub[T]{
		subs:   map[chan T]struct{}{},
		buffer: buffer,
	}
}

// Subscribe returns a chan of subsequently published values and a func that unsubscribes and
// closes it. The func may be called more than once.
func (h *Hub[T]) Subscribe() (<-chan T, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan T, h.buffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}
	return ch, func() { h.unsubscribe(ch) }
}

func (h *Hub[T]) unsubscribe(ch chan T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
}

// Publish offers v to every subscriber and returns how many missed it.
func (h *Hub[T]) Publish(v T) (dropped int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- v:
		default:
			dropped++
		}
	}
	return
}

// Subscribers returns the current subscriber count.
func (h *Hub[T]) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close closes every subscription; later subscriptions are closed immediately.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		close(ch)
	}
	h.subs = map[chan T]struct{}{}
	h.closed = true
}
