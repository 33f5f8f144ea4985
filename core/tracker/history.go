package tracker

// History is a bounded most-recent-first buffer. Pushing beyond capacity
// evicts the oldest entry. The zero value is not usable; use NewHistory.
type History[T any] struct {
	items    []T
	capacity int
}

// NewHistory returns an empty History with the given fixed capacity.
func NewHistory[T any](capacity int) *History[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &History[T]{items: make([]T, 0, capacity), capacity: capacity}
}

// Push inserts item at the front, evicting the oldest entry when full.
func (h *History[T]) Push(item T) {
	if len(h.items) < h.capacity {
		var zero T
		h.items = append(h.items, zero)
	}
	copy(h.items[1:], h.items)
	h.items[0] = item
}

// First returns the most recent entry. The second return is false when the
// history is empty.
func (h *History[T]) First() (T, bool) {
	if len(h.items) == 0 {
		var zero T
		return zero, false
	}
	return h.items[0], true
}

// At returns the entry index positions back from the front. The second
// return is false when index is out of range.
func (h *History[T]) At(index int) (T, bool) {
	if index < 0 || index >= len(h.items) {
		var zero T
		return zero, false
	}
	return h.items[index], true
}

// Len returns the number of entries currently held.
func (h *History[T]) Len() int { return len(h.items) }
