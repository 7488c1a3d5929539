package queue

import (
	"errors"
	"sync"

	"github.com/on-the-ground/fiber_ive_go/effects"
	"github.com/on-the-ground/fiber_ive_go/effects/internal/linkedqueue"
	"github.com/on-the-ground/fiber_ive_go/effects/internal/ringbuffer"
)

var ErrQueueClosed = errors.New("queue closed")

// Strategy decides what Offer does when the queue is full.
type Strategy string

const (
	// BackPressure suspends the producer until there is room or the queue closes.
	BackPressure Strategy = "backpressure"
	// Dropping discards the new value and reports false.
	Dropping Strategy = "dropping"
	// Sliding evicts the oldest buffered value to make room.
	Sliding Strategy = "sliding"
)

type offerWaiter[A any] struct {
	value   A
	resolve func(bool)
}

type taker[A any] func(effects.Exit[A])

// Queue is a bounded buffer shared by fibers. Consumers waiting on an empty
// queue and producers waiting on a full one are served in FIFO order.
// Safe for fibers on different executors.
type Queue[A any] struct {
	capacity int
	strategy Strategy

	mu       sync.Mutex
	closed   bool
	items    *ringbuffer.RingBuffer[A]
	takers   *linkedqueue.LinkedQueue[taker[A]]
	offerers *linkedqueue.LinkedQueue[offerWaiter[A]]
}

// New creates a queue. capacity below 1 is treated as 1 and an unknown
// strategy as BackPressure.
func New[A any](capacity int, strategy Strategy) *Queue[A] {
	capacity = max(1, capacity)
	switch strategy {
	case BackPressure, Dropping, Sliding:
	default:
		strategy = BackPressure
	}
	return &Queue[A]{
		capacity: capacity,
		strategy: strategy,
		items:    ringbuffer.New[A](capacity),
		takers:   linkedqueue.New[taker[A]](),
		offerers: linkedqueue.New[offerWaiter[A]](),
	}
}

// Bounded is New as an effect.
func Bounded[A any](capacity int, strategy Strategy) effects.Effect[*Queue[A]] {
	return effects.Total(func() *Queue[A] {
		return New[A](capacity, strategy)
	})
}

func (q *Queue[A]) Capacity() int { return q.capacity }

func (q *Queue[A]) Strategy() Strategy { return q.strategy }

// Size is the number of buffered values. Suspended producers are not counted.
func (q *Queue[A]) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

func (q *Queue[A]) IsShutdown() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Offer hands a to the queue. It reports whether the value was accepted:
// false when the queue is closed (also for a producer suspended at the time
// of Shutdown) or when a Dropping queue is full. Offer never fails.
func (q *Queue[A]) Offer(a A) effects.Effect[bool] {
	return effects.Async(func(_ any, cb func(effects.Exit[bool])) effects.Canceler {
		return q.offer(a, func(ok bool) {
			cb(effects.Success(ok))
		})
	})
}

// OfferAll offers every value in order and reports whether all of them
// were accepted.
func (q *Queue[A]) OfferAll(as []A) effects.Effect[bool] {
	acc := effects.Succeed(true)
	for _, a := range as {
		acc = effects.FlatMap(acc, func(all bool) effects.Effect[bool] {
			return effects.Map(q.Offer(a), func(ok bool) bool {
				return all && ok
			})
		})
	}
	return acc
}

// Take removes the oldest value, suspending while the queue is empty.
// Fails with ErrQueueClosed once the queue is shut down.
func (q *Queue[A]) Take() effects.Effect[A] {
	return effects.Async(func(_ any, cb func(effects.Exit[A])) effects.Canceler {
		return q.take(cb)
	})
}

// Polled is the outcome of Poll. OK is false when nothing was buffered.
type Polled[A any] struct {
	Value A
	OK    bool
}

// Poll takes the oldest value if there is one, without suspending.
// Fails with ErrQueueClosed once the queue is shut down.
func (q *Queue[A]) Poll() effects.Effect[Polled[A]] {
	return effects.Attempt(func() (Polled[A], error) {
		var fire callbacks
		defer fire.run()

		q.mu.Lock()
		defer q.mu.Unlock()
		if q.closed {
			return Polled[A]{}, ErrQueueClosed
		}
		if a, ok := q.items.Shift(); ok {
			q.flushLocked(&fire)
			return Polled[A]{Value: a, OK: true}, nil
		}
		return Polled[A]{}, nil
	})
}

// TakeAll drains whatever is buffered without suspending.
func (q *Queue[A]) TakeAll() effects.Effect[[]A] {
	return effects.Attempt(func() ([]A, error) {
		var fire callbacks
		defer fire.run()

		q.mu.Lock()
		defer q.mu.Unlock()
		if q.closed {
			return nil, ErrQueueClosed
		}
		out := q.items.Values()
		q.items.Clear()
		q.flushLocked(&fire)
		return out, nil
	})
}

// Shutdown closes the queue: buffered values are dropped, suspended
// consumers fail with ErrQueueClosed and suspended producers get false.
// Calling it again does nothing.
func (q *Queue[A]) Shutdown() {
	var fire callbacks
	defer fire.run()

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true

	for {
		t, ok := q.takers.Shift()
		if !ok {
			break
		}
		fire.add(func() { t(effects.Failure[A](ErrQueueClosed)) })
	}
	for {
		w, ok := q.offerers.Shift()
		if !ok {
			break
		}
		fire.add(func() { w.resolve(false) })
	}
	q.items.Clear()
}

func (q *Queue[A]) offer(a A, resolve func(bool)) effects.Canceler {
	var fire callbacks
	defer fire.run()

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		fire.add(func() { resolve(false) })
		return nil
	}

	// a waiting consumer gets the value directly
	if t, ok := q.takers.Shift(); ok {
		fire.add(func() { t(effects.Success(a)) }, func() { resolve(true) })
		return nil
	}

	if q.items.Len() < q.capacity {
		q.items.Push(a)
		fire.add(func() { resolve(true) })
		return nil
	}

	switch q.strategy {
	case Dropping:
		fire.add(func() { resolve(false) })
		return nil
	case Sliding:
		q.items.Shift()
		q.items.Push(a)
		fire.add(func() { resolve(true) })
		return nil
	}

	n := q.offerers.Push(offerWaiter[A]{value: a, resolve: resolve})
	return func() {
		q.mu.Lock()
		q.offerers.Remove(n)
		q.mu.Unlock()
	}
}

func (q *Queue[A]) take(cb func(effects.Exit[A])) effects.Canceler {
	var fire callbacks
	defer fire.run()

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		fire.add(func() { cb(effects.Failure[A](ErrQueueClosed)) })
		return nil
	}

	if a, ok := q.items.Shift(); ok {
		fire.add(func() { cb(effects.Success(a)) })
		q.flushLocked(&fire)
		return nil
	}

	// a suspended producer hands over directly
	if w, ok := q.offerers.Shift(); ok {
		fire.add(func() { w.resolve(true) }, func() { cb(effects.Success(w.value)) })
		return nil
	}

	n := q.takers.Push(cb)
	return func() {
		q.mu.Lock()
		q.takers.Remove(n)
		q.mu.Unlock()
	}
}

// flushLocked pairs waiters after a state change. q.mu must be held.
func (q *Queue[A]) flushLocked(fire *callbacks) {
	for !q.takers.IsEmpty() && !q.items.IsEmpty() {
		t, _ := q.takers.Shift()
		a, _ := q.items.Shift()
		fire.add(func() { t(effects.Success(a)) })
	}

	for !q.offerers.IsEmpty() && q.items.Len() < q.capacity && q.takers.IsEmpty() {
		w, _ := q.offerers.Shift()
		q.items.Push(w.value)
		fire.add(func() { w.resolve(true) })
	}

	for !q.takers.IsEmpty() && !q.offerers.IsEmpty() {
		t, _ := q.takers.Shift()
		w, _ := q.offerers.Shift()
		fire.add(func() { w.resolve(true) }, func() { t(effects.Success(w.value)) })
	}
}

// callbacks collects waiter resolutions so they run after q.mu is released.
type callbacks []func()

func (c *callbacks) add(fns ...func()) {
	*c = append(*c, fns...)
}

func (c *callbacks) run() {
	for _, fn := range *c {
		fn()
	}
}
