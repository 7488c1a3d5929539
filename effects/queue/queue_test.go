package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/on-the-ground/fiber_ive_go/effects"
	"github.com/on-the-ground/fiber_ive_go/effects/queue"
	"github.com/on-the-ground/fiber_ive_go/effects/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScheduler() *scheduler.Scheduler {
	return scheduler.New(scheduler.DefaultConfig(), nil)
}

func mustExit[A any](t *testing.T, fb *effects.Fiber[A]) effects.Exit[A] {
	t.Helper()
	exit, ok := fb.Poll()
	require.True(t, ok, "fiber %d has not settled", fb.ID())
	return exit
}

func takeN[A any](q *queue.Queue[A], n int) effects.Effect[[]A] {
	acc := effects.Succeed([]A(nil))
	for range n {
		acc = effects.FlatMap(acc, func(got []A) effects.Effect[[]A] {
			return effects.Map(q.Take(), func(a A) []A { return append(got, a) })
		})
	}
	return acc
}

func TestQueue_BackPressureKeepsFIFO(t *testing.T) {
	s := newScheduler()
	q := queue.New[int](2, queue.BackPressure)

	var producers []*effects.Fiber[bool]
	for i := 1; i <= 4; i++ {
		producers = append(producers, effects.Fork(q.Offer(i), nil, s))
	}
	s.RunUntilIdle()
	assert.Equal(t, 2, q.Size())
	for i, p := range producers {
		_, settled := p.Poll()
		assert.Equal(t, i < 2, settled, "producer %d", i+1)
	}

	consumer := effects.Fork(takeN(q, 4), nil, s)
	s.RunUntilIdle()

	assert.Equal(t, []int{1, 2, 3, 4}, mustExit(t, consumer).Value)
	for _, p := range producers {
		assert.True(t, mustExit(t, p).Value)
	}
	assert.Equal(t, 0, q.Size())
}

func TestQueue_DroppingRejectsWhenFull(t *testing.T) {
	s := newScheduler()
	q := queue.New[int](1, queue.Dropping)

	fb := effects.Fork(effects.ZipWith(q.Offer(1), q.Offer(2), func(a, b bool) [2]bool {
		return [2]bool{a, b}
	}), nil, s)
	s.RunUntilIdle()

	assert.Equal(t, [2]bool{true, false}, mustExit(t, fb).Value)
	assert.Equal(t, 1, q.Size())

	taken := effects.Fork(q.Take(), nil, s)
	s.RunUntilIdle()
	assert.Equal(t, 1, mustExit(t, taken).Value)
}

func TestQueue_SlidingEvictsOldest(t *testing.T) {
	s := newScheduler()
	q := queue.New[int](2, queue.Sliding)

	fb := effects.Fork(q.OfferAll([]int{1, 2, 3}), nil, s)
	s.RunUntilIdle()
	assert.True(t, mustExit(t, fb).Value)
	assert.Equal(t, 2, q.Size())

	all := effects.Fork(q.TakeAll(), nil, s)
	s.RunUntilIdle()
	assert.Equal(t, []int{2, 3}, mustExit(t, all).Value)
	assert.Equal(t, 0, q.Size())
}

func TestQueue_OfferHandsDirectlyToWaitingTaker(t *testing.T) {
	s := newScheduler()
	q := queue.New[string](1, queue.BackPressure)

	taker := effects.Fork(q.Take(), nil, s)
	s.RunUntilIdle()
	assert.Equal(t, effects.FiberRunning, taker.Status())

	offer := effects.Fork(q.Offer("hi"), nil, s)
	s.RunUntilIdle()

	assert.Equal(t, "hi", mustExit(t, taker).Value)
	assert.True(t, mustExit(t, offer).Value)
	assert.Equal(t, 0, q.Size())
}

func TestQueue_ShutdownResolvesWaiters(t *testing.T) {
	s := newScheduler()
	empty := queue.New[int](1, queue.BackPressure)
	full := queue.New[int](1, queue.BackPressure)

	taker := effects.Fork(empty.Take(), nil, s)
	blocked := effects.Fork(effects.AndThen(full.Offer(1), full.Offer(2)), nil, s)
	s.RunUntilIdle()
	require.Equal(t, effects.FiberRunning, taker.Status())
	require.Equal(t, effects.FiberRunning, blocked.Status())

	empty.Shutdown()
	full.Shutdown()
	full.Shutdown()
	s.RunUntilIdle()

	assert.ErrorIs(t, mustExit(t, taker).Err, queue.ErrQueueClosed)
	assert.False(t, mustExit(t, blocked).Value)
	assert.True(t, full.IsShutdown())
	assert.Equal(t, 0, full.Size())

	late := effects.Fork(effects.ZipWith(full.Offer(3), effects.Fold(full.Take(),
		func(err error) effects.Effect[error] { return effects.Succeed(err) },
		func(int) effects.Effect[error] { return effects.Succeed[error](nil) },
	), func(ok bool, err error) bool {
		return !ok && err == queue.ErrQueueClosed
	}), nil, s)
	s.RunUntilIdle()
	assert.True(t, mustExit(t, late).Value)
}

func TestQueue_InterruptedTakerLeavesWaitList(t *testing.T) {
	s := newScheduler()
	q := queue.New[int](4, queue.BackPressure)

	taker := effects.Fork(q.Take(), nil, s)
	s.RunUntilIdle()
	taker.Interrupt()
	s.RunUntilIdle()
	require.Equal(t, effects.FiberInterrupted, taker.Status())

	offer := effects.Fork(q.Offer(7), nil, s)
	s.RunUntilIdle()
	assert.True(t, mustExit(t, offer).Value)
	assert.Equal(t, 1, q.Size(), "value is buffered, not handed to the interrupted taker")
}

func TestQueue_InterruptedProducerLeavesWaitList(t *testing.T) {
	s := newScheduler()
	q := queue.New[int](1, queue.BackPressure)

	effects.Fork(q.Offer(1), nil, s)
	blocked := effects.Fork(q.Offer(2), nil, s)
	s.RunUntilIdle()
	blocked.Interrupt()
	s.RunUntilIdle()

	consumer := effects.Fork(effects.AndThen(q.Take(), q.TakeAll()), nil, s)
	s.RunUntilIdle()
	assert.Empty(t, mustExit(t, consumer).Value)
}

func TestQueue_TakeAdmitsSuspendedProducer(t *testing.T) {
	s := newScheduler()
	q := queue.New[int](1, queue.BackPressure)

	effects.Fork(q.OfferAll([]int{1, 2}), nil, s)
	s.RunUntilIdle()
	assert.Equal(t, 1, q.Size())

	first := effects.Fork(q.Take(), nil, s)
	s.RunUntilIdle()
	assert.Equal(t, 1, mustExit(t, first).Value)
	assert.Equal(t, 1, q.Size())
}

func TestQueue_NormalizesConstructorArguments(t *testing.T) {
	q := queue.New[int](0, queue.Strategy("unknown"))
	assert.Equal(t, 1, q.Capacity())
	assert.Equal(t, queue.BackPressure, q.Strategy())

	exit := effects.RunSync(context.Background(), queue.Bounded[int](3, queue.Sliding), nil, newScheduler())
	require.True(t, exit.IsSuccess())
	assert.Equal(t, 3, exit.Value.Capacity())
	assert.Equal(t, queue.Sliding, exit.Value.Strategy())
}

func TestQueue_ProducerAndConsumerOnDifferentExecutors(t *testing.T) {
	const n = 200
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := scheduler.NewPool(2, scheduler.DefaultConfig(), nil)
	go pool.Run(ctx)

	q := queue.New[int](8, queue.BackPressure)
	values := make([]int, n)
	for i := range values {
		values[i] = i
	}

	produced := effects.RunToChannel(q.OfferAll(values), nil, pool.At(0))
	consumed := effects.RunToChannel(takeN(q, n), nil, pool.At(1))

	select {
	case exit := <-consumed:
		require.True(t, exit.IsSuccess())
		assert.Equal(t, values, exit.Value)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for consumer")
	}
	select {
	case exit := <-produced:
		assert.True(t, exit.Value)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for producer")
	}
}

func TestQueue_PollNeverSuspends(t *testing.T) {
	s := newScheduler()
	q := queue.New[int](1, queue.BackPressure)

	empty := effects.Fork(q.Poll(), nil, s)
	s.RunUntilIdle()
	assert.False(t, mustExit(t, empty).Value.OK)

	effects.Fork(q.OfferAll([]int{1, 2}), nil, s)
	s.RunUntilIdle()

	polled := effects.Fork(q.Poll(), nil, s)
	s.RunUntilIdle()
	assert.Equal(t, queue.Polled[int]{Value: 1, OK: true}, mustExit(t, polled).Value)
	assert.Equal(t, 1, q.Size(), "suspended producer admitted")

	q.Shutdown()
	closed := effects.Fork(q.Poll(), nil, s)
	s.RunUntilIdle()
	assert.ErrorIs(t, mustExit(t, closed).Err, queue.ErrQueueClosed)
}
