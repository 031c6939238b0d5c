package ring

import (
	"errors"
	"sync"
)

// ErrInvalidCapacity is returned by New for a capacity that is not positive.
var ErrInvalidCapacity = errors.New("ring capacity must be positive")

// Ring is a circular buffer with drop-oldest overflow. One goroutine is
// expected to write; any number may read.
type Ring[T any] struct {
	// mu guards every field below.
	mu sync.RWMutex
	// items is the backing storage, len(items) is the capacity.
	items []T
	// head is the next write position.
	head int
	// size is the number of retained items.
	size int
	// dropped counts items overwritten before being read.
	dropped uint64
}

// New creates a ring holding at most capacity items.
func New[T any](capacity int) (*Ring[T], error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}

	return &Ring[T]{
		items: make([]T, capacity),
	}, nil
}

// Add stores item, overwriting the oldest one when the ring is full.
func (r *Ring[T]) Add(item T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[r.head] = item
	r.head = (r.head + 1) % len(r.items)

	if r.size < len(r.items) {
		r.size++
	} else {
		r.dropped++
	}
}

// ToSlice returns every retained item, oldest first.
func (r *Ring[T]) ToSlice() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.lastLocked(r.size)
}

// LastN returns the most recent min(n, Len()) items, oldest first.
func (r *Ring[T]) LastN(n int) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.lastLocked(min(max(n, 0), r.size))
}

// Last returns the newest item.
func (r *Ring[T]) Last() (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var zero T
	if r.size == 0 {
		return zero, false
	}

	return r.items[(r.head-1+len(r.items))%len(r.items)], true
}

// Find returns the newest item matching match.
func (r *Ring[T]) Find(match func(T) bool) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := 1; i <= r.size; i++ {
		item := r.items[(r.head-i+len(r.items))%len(r.items)]
		if match(item) {
			return item, true
		}
	}

	var zero T

	return zero, false
}

// Drain returns every retained item, oldest first, and empties the ring.
func (r *Ring[T]) Drain() []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.lastLocked(r.size)
	r.clearLocked()

	return out
}

// Clear empties the ring.
func (r *Ring[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.clearLocked()
}

// Len returns the number of retained items.
func (r *Ring[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.size
}

// Cap returns the capacity.
func (r *Ring[T]) Cap() int {
	return len(r.items)
}

// Dropped returns how many items were overwritten since creation.
func (r *Ring[T]) Dropped() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.dropped
}

// lastLocked copies the newest n items, oldest first. The caller holds mu.
func (r *Ring[T]) lastLocked(n int) []T {
	out := make([]T, n)
	start := (r.head - n + len(r.items)) % len(r.items)

	for i := range n {
		out[i] = r.items[(start+i)%len(r.items)]
	}

	return out
}

// clearLocked zeroes the storage so dropped items can be collected. The caller holds mu.
func (r *Ring[T]) clearLocked() {
	clear(r.items)
	r.head = 0
	r.size = 0
}
