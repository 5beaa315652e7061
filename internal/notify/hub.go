// Package notify delivers state-change events to subscribers.
package notify

import "sync"

type subscriber[E any] struct {
	id int
	fn func(E)
}

// Hub is an ordered event queue with synchronous subscribers.
//
// Components call Enqueue while still holding the lock that guards the state
// change, then Flush after releasing it. Events are delivered in enqueue order,
// one at a time, outside every component lock. A subscriber may publish from
// inside its callback; the event is queued behind the current one.
type Hub[E any] struct {
	mu         sync.Mutex
	subs       []subscriber[E]
	nextID     int
	queue      []E
	delivering bool
}

// Subscribe registers fn and returns a function that removes it
func (h *Hub[E]) Subscribe(fn func(E)) (unsubscribe func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	h.subs = append(h.subs, subscriber[E]{id: id, fn: fn})

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for i, s := range h.subs {
			if s.id == id {
				h.subs = append(h.subs[:i:i], h.subs[i+1:]...)
				return
			}
		}
	}
}

// Enqueue queues an event without delivering it
func (h *Hub[E]) Enqueue(e E) {
	h.mu.Lock()
	h.queue = append(h.queue, e)
	h.mu.Unlock()
}

// Publish queues an event and flushes
func (h *Hub[E]) Publish(e E) {
	h.Enqueue(e)
	h.Flush()
}

// Flush delivers queued events. If another goroutine is already delivering,
// Flush returns immediately and that goroutine drains the queue.
func (h *Hub[E]) Flush() {
	h.mu.Lock()
	if h.delivering {
		h.mu.Unlock()
		return
	}
	h.delivering = true
	h.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			h.mu.Lock()
			h.delivering = false
			h.mu.Unlock()
			panic(r)
		}
	}()

	for {
		e, subs, ok := h.pop()
		if !ok {
			return
		}
		for _, s := range subs {
			s.fn(e)
		}
	}
}

func (h *Hub[E]) pop() (E, []subscriber[E], bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var zero E
	if len(h.queue) == 0 {
		h.delivering = false
		return zero, nil, false
	}

	e := h.queue[0]
	h.queue[0] = zero
	h.queue = h.queue[1:]

	subs := make([]subscriber[E], len(h.subs))
	copy(subs, h.subs)
	return e, subs, true
}
