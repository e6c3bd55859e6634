package engine

import "sync"

// ring is a fixed-capacity event buffer. When full, the oldest event is
// overwritten.
type ring struct {
	mu     sync.Mutex
	events []Event
	head   int
	size   int
}

func newRing(capacity int) *ring {
	if capacity < 1 {
		capacity = 1
	}
	return &ring{events: make([]Event, capacity)}
}

// Add stores ev and reports whether an older event was overwritten.
func (r *ring) Add(ev Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	capacity := len(r.events)
	if r.size < capacity {
		r.events[(r.head+r.size)%capacity] = ev
		r.size++
		return false
	}
	r.events[r.head] = ev
	r.head = (r.head + 1) % capacity
	return true
}

// Drain returns the buffered events oldest first and empties the ring.
func (r *ring) Drain() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size == 0 {
		return nil
	}
	out := make([]Event, r.size)
	capacity := len(r.events)
	for i := 0; i < r.size; i++ {
		idx := (r.head + i) % capacity
		out[i] = r.events[idx]
		r.events[idx] = Event{}
	}
	r.head = 0
	r.size = 0
	return out
}

func (r *ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}
