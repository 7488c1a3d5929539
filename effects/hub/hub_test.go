package hub_test

import (
	"testing"

	"github.com/on-the-ground/fiber_ive_go/effects"
	"github.com/on-the-ground/fiber_ive_go/effects/hub"
	"github.com/on-the-ground/fiber_ive_go/effects/queue"
	"github.com/on-the-ground/fiber_ive_go/effects/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type harness struct {
	t *testing.T
	s *scheduler.Scheduler
}

func newHarness(t *testing.T) harness {
	return harness{t: t, s: scheduler.New(scheduler.DefaultConfig(), nil)}
}

func run[A any](h harness, eff effects.Effect[A]) effects.Exit[A] {
	h.t.Helper()
	fb := effects.Fork(eff, nil, h.s)
	h.s.RunUntilIdle()
	exit, ok := fb.Poll()
	require.True(h.t, ok, "effect did not settle")
	return exit
}

func subscribe[A any](h harness, hb *hub.Hub[A]) *hub.Subscription[A] {
	h.t.Helper()
	exit := run(h, hb.Subscribe())
	require.NoError(h.t, exit.Err)
	return exit.Value
}

func TestHub_FanOutIsolation(t *testing.T) {
	h := newHarness(t)
	hb := hub.New[int](4, queue.BackPressure)

	sub1 := subscribe(h, hb)
	sub2 := subscribe(h, hb)
	assert.Equal(t, 2, hb.SubscriberCount())

	assert.True(t, run(h, hb.PublishAll([]int{1, 2, 3})).Value)

	assert.Equal(t, []int{1, 2, 3}, run(h, sub1.TakeAll()).Value)
	assert.Equal(t, []int{1, 2, 3}, run(h, sub2.TakeAll()).Value)

	sub1.Unsubscribe()
	sub1.Unsubscribe()
	assert.Equal(t, 1, hb.SubscriberCount())
	assert.True(t, sub1.IsShutdown())

	assert.True(t, run(h, hb.Publish(4)).Value)
	assert.Equal(t, 4, run(h, sub2.Take()).Value)
	assert.ErrorIs(t, run(h, sub1.Take()).Err, queue.ErrQueueClosed)
}

func TestHub_RejectionDoesNotRollBackOthers(t *testing.T) {
	h := newHarness(t)
	hb := hub.New[string](1, queue.Dropping)

	slow := subscribe(h, hb)
	fast := subscribe(h, hb)

	assert.True(t, run(h, hb.Publish("a")).Value)
	assert.Equal(t, "a", run(h, fast.Take()).Value)

	assert.False(t, run(h, hb.Publish("b")).Value, "slow subscriber is full")
	assert.Equal(t, "b", run(h, fast.Take()).Value)
	assert.Equal(t, []string{"a"}, run(h, slow.TakeAll()).Value)
}

func TestHub_PublishWithoutSubscribersSucceeds(t *testing.T) {
	h := newHarness(t)
	hb := hub.New[int](1, queue.Sliding)
	assert.True(t, run(h, hb.Publish(1)).Value)
}

func TestHub_SnapshotIsTakenWhenPublishRuns(t *testing.T) {
	h := newHarness(t)
	hb := hub.New[int](2, queue.BackPressure)

	publish := hb.Publish(9)
	sub := subscribe(h, hb)

	assert.True(t, run(h, publish).Value)
	assert.Equal(t, 9, run(h, sub.Take()).Value)
}

func TestHub_Shutdown(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	h := newHarness(t)
	hb := hub.New[int](2, queue.BackPressure, hub.WithLogger(zap.New(core)))
	require.NotEmpty(t, hb.ID)

	sub := subscribe(h, hb)
	waiting := effects.Fork(sub.Take(), nil, h.s)
	h.s.RunUntilIdle()

	run(h, hb.Shutdown())
	run(h, hb.Shutdown())

	exit, ok := waiting.Poll()
	require.True(t, ok)
	assert.ErrorIs(t, exit.Err, queue.ErrQueueClosed)

	assert.True(t, hb.IsShutdown())
	assert.Equal(t, 0, hb.SubscriberCount())
	assert.False(t, run(h, hb.Publish(1)).Value)
	assert.False(t, run(h, hb.PublishAll([]int{1, 2})).Value)
	assert.ErrorIs(t, run(h, hb.Subscribe()).Err, hub.ErrHubClosed)

	sub.Unsubscribe()

	entries := logs.FilterMessage("hub shut down").All()
	require.Len(t, entries, 1)
	assert.Equal(t, hb.ID, entries[0].ContextMap()["hubId"])
}

func TestHub_SuspendedPublishKeepsItsSubscriberSet(t *testing.T) {
	h := newHarness(t)
	hb := hub.New[string](1, queue.BackPressure)

	full := subscribe(h, hb)
	leaving := subscribe(h, hb)
	require.True(t, run(h, full.Offer("old")).Value)

	pub := effects.Fork(hb.Publish("x"), nil, h.s)
	h.s.RunUntilIdle()
	require.Equal(t, effects.FiberRunning, pub.Status(), "publish waits on the full subscriber")

	late := subscribe(h, hb)
	leaving.Unsubscribe()

	assert.Equal(t, "old", run(h, full.Take()).Value)
	exit, ok := pub.Poll()
	require.True(t, ok)
	assert.False(t, exit.Value, "the unsubscribed queue was still targeted and refused")

	assert.Equal(t, []string{"x"}, run(h, full.TakeAll()).Value)
	assert.Equal(t, 0, late.Size())
}
