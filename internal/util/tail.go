package util

import "sync"

// Tail is a bounded, concurrency-safe record of the most recent items. Once
// capacity is reached every Push evicts the oldest entry, so memory stays
// constant no matter how long the process runs.
type Tail[T any] struct {
	mu   sync.RWMutex
	buf  []T
	next int // next write position
	full bool
}

func NewTail[T any](capacity int) *Tail[T] {
	return &Tail[T]{buf: make([]T, capacity)}
}

func (t *Tail[T]) Push(item T) {
	t.mu.Lock()
	t.buf[t.next] = item
	t.next = (t.next + 1) % len(t.buf)
	if t.next == 0 {
		t.full = true
	}
	t.mu.Unlock()
}

// Snapshot returns the retained items, oldest first.
func (t *Tail[T]) Snapshot() []T {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.full {
		return append([]T(nil), t.buf[:t.next]...)
	}
	out := make([]T, 0, len(t.buf))
	out = append(out, t.buf[t.next:]...)
	out = append(out, t.buf[:t.next]...)
	return out
}

func (t *Tail[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.full {
		return len(t.buf)
	}
	return t.next
}
