// Package window provides a fixed-capacity, newest-first bounded buffer.
//
// The buffer backs the monitor's recent-transaction and alert-feed views.
// Pushing beyond capacity evicts the oldest item in O(1): memory stays O(cap)
// regardless of how many events flow through over a session's lifetime, which
// is the property the monitor depends on under sustained arrival rates.
package window

import "fmt"

// Buffer is a capacity-bounded ring holding the most recent items pushed.
//
// A Buffer is not safe for concurrent use; the owner is expected to serialize
// access (the monitor drives it from a single processing goroutine).
type Buffer[T any] struct {
	buf  []T // fixed backing storage, length == capacity
	head int // index of the most recently pushed item
	n    int // current number of items, always <= len(buf)
}

// New creates a buffer that retains the last capacity items pushed.
// It panics if capacity is not positive, since that is a programming error
// rather than a runtime condition.
func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		panic(fmt.Sprintf("window: capacity must be positive, got %d", capacity))
	}
	return &Buffer[T]{buf: make([]T, capacity), head: capacity - 1}
}

// Push prepends item as the newest entry. If the buffer is full the oldest
// entry is overwritten.
func (b *Buffer[T]) Push(item T) {
	b.head = (b.head + 1) % len(b.buf)
	b.buf[b.head] = item
	if b.n < len(b.buf) {
		b.n++
	}
}

// Len returns the current number of items, always min(pushes, capacity).
func (b *Buffer[T]) Len() int {
	return b.n
}

// Cap returns the fixed capacity set at construction.
func (b *Buffer[T]) Cap() int {
	return len(b.buf)
}

// Front returns the most recently pushed item. The second return value is
// false when the buffer is empty.
func (b *Buffer[T]) Front() (T, bool) {
	if b.n == 0 {
		var zero T
		return zero, false
	}
	return b.buf[b.head], true
}

// Items returns a copy of the current contents, newest-first. The buffer is
// not mutated and the returned slice shares no storage with it.
func (b *Buffer[T]) Items() []T {
	out := make([]T, b.n)
	for i := 0; i < b.n; i++ {
		out[i] = b.buf[(b.head-i+len(b.buf))%len(b.buf)]
	}
	return out
}
