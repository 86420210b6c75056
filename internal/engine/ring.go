package engine

// ring is a bounded append-only buffer. When full, the oldest entry is
// dropped. Not safe for concurrent use; callers hold the engine mutex.
type ring[T any] struct {
	limit int
	items []T
}

func newRing[T any](limit int) *ring[T] {
	if limit <= 0 {
		limit = 1
	}
	return &ring[T]{limit: limit}
}

func (r *ring[T]) add(v T) {
	r.items = append(r.items, v)
	if len(r.items) > r.limit {
		// Shift instead of re-slice so the backing array doesn't pin
		// dropped entries.
		copy(r.items, r.items[1:])
		r.items = r.items[:r.limit]
	}
}

func (r *ring[T]) len() int { return len(r.items) }

// all returns a copy of the buffered entries, oldest first.
func (r *ring[T]) all() []T {
	out := make([]T, len(r.items))
	copy(out, r.items)
	return out
}

// tail returns a copy of the newest n entries, oldest first.
func (r *ring[T]) tail(n int) []T {
	if n >= len(r.items) {
		return r.all()
	}
	out := make([]T, n)
	copy(out, r.items[len(r.items)-n:])
	return out
}
