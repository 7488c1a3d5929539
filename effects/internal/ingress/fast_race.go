//go:build race

package ingress

import (
	"sync"

	"code.hybscloud.com/iox"

	"github.com/on-the-ground/fiber_ive_go/effects/internal/ringbuffer"
)

// The race detector cannot see the acquire/release ordering inside lfq, so
// race builds swap in a locked queue with the same bounded contract.
func newFast[T any](capacity int) lockFree[T] {
	return &lockedFast[T]{capacity: capacity, buf: ringbuffer.New[T](capacity)}
}

type lockedFast[T any] struct {
	mu       sync.Mutex
	capacity int
	buf      *ringbuffer.RingBuffer[T]
}

func (q *lockedFast[T]) Enqueue(elem *T) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.buf.Len() >= q.capacity {
		return iox.ErrWouldBlock
	}
	q.buf.Push(*elem)
	return nil
}

func (q *lockedFast[T]) Dequeue() (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	v, ok := q.buf.Shift()
	if !ok {
		var zero T
		return zero, iox.ErrWouldBlock
	}
	return v, nil
}
