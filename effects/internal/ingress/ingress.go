package ingress

import (
	"sync"
	"sync/atomic"

	"code.hybscloud.com/iox"

	"github.com/on-the-ground/fiber_ive_go/effects/internal/ringbuffer"
)

const minCapacity = 2

// lockFree is the subset of the lfq queue surface the ingress relies on.
type lockFree[T any] interface {
	Enqueue(elem *T) error
	Dequeue() (T, error)
}

// Queue is a multi-producer, single-consumer FIFO.
//
// Producers go through a bounded lock-free queue. When it reports
// iox.ErrWouldBlock the value spills into a mutex-guarded ring buffer, and
// every later push keeps spilling until the consumer has drained the spill.
// The consumer always drains the lock-free side before the spill, so values
// pushed by one goroutine are delivered in the order they were pushed.
type Queue[T any] struct {
	fast lockFree[T]

	mu       sync.Mutex
	spill    *ringbuffer.RingBuffer[T]
	spilling atomic.Bool

	n atomic.Int64
}

func New[T any](capacity int) *Queue[T] {
	capacity = max(minCapacity, capacity)
	return &Queue[T]{
		fast:  newFast[T](capacity),
		spill: ringbuffer.New[T](capacity),
	}
}

// Push is safe for concurrent use and never blocks on a full queue.
func (q *Queue[T]) Push(v T) {
	if !q.spilling.Load() {
		err := q.fast.Enqueue(&v)
		if err == nil {
			q.n.Add(1)
			return
		}
		if !iox.IsWouldBlock(err) {
			panic(err)
		}
	}

	q.mu.Lock()
	q.spilling.Store(true)
	q.spill.Push(v)
	q.n.Add(1)
	q.mu.Unlock()
}

// Len is the number of pushed values not yet drained.
func (q *Queue[T]) Len() int {
	return int(q.n.Load())
}

// DrainInto moves every visible value into dst in FIFO order and returns how
// many were moved. Only one goroutine may drain at a time.
func (q *Queue[T]) DrainInto(dst *ringbuffer.RingBuffer[T]) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	moved := 0
	for {
		v, err := q.fast.Dequeue()
		if err != nil {
			break
		}
		dst.Push(v)
		moved++
	}
	for {
		v, ok := q.spill.Shift()
		if !ok {
			break
		}
		dst.Push(v)
		moved++
	}
	q.spilling.Store(false)
	q.n.Add(int64(-moved))
	return moved
}
