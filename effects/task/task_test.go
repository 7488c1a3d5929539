package task_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/on-the-ground/fiber_ive_go/effects"
	"github.com/on-the-ground/fiber_ive_go/effects/scheduler"
	"github.com/on-the-ground/fiber_ive_go/effects/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runSync[A any](ctx context.Context, eff effects.Effect[A], env any) effects.Exit[A] {
	return effects.RunSync(ctx, eff, env, scheduler.New(scheduler.DefaultConfig(), nil))
}

func TestFromFunc_Success(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	exit := runSync(ctx, task.FromFunc(func(ctx context.Context) (string, error) {
		time.Sleep(10 * time.Millisecond)
		return "ok", nil
	}), nil)

	require.NoError(t, exit.Err)
	assert.Equal(t, "ok", exit.Value)
}

func TestFromFunc_Failure(t *testing.T) {
	boom := errors.New("boom")
	exit := runSync(context.Background(), task.FromFunc(func(context.Context) (int, error) {
		return 0, boom
	}), nil)
	assert.ErrorIs(t, exit.Err, boom)
}

func TestFromFunc_Panic(t *testing.T) {
	exit := runSync(context.Background(), task.FromFunc(func(context.Context) (int, error) {
		panic("task blew up")
	}), nil)
	assert.ErrorIs(t, exit.Err, effects.ErrPanic)
}

func TestFromFunc_ContextFromEnvironment(t *testing.T) {
	type key struct{}
	env := context.WithValue(context.Background(), key{}, "from-env")

	exit := runSync(context.Background(), task.FromFunc(func(ctx context.Context) (any, error) {
		return ctx.Value(key{}), nil
	}), env)
	assert.Equal(t, "from-env", exit.Value)
}

func TestFromFunc_InterruptCancelsContext(t *testing.T) {
	s := scheduler.New(scheduler.DefaultConfig(), nil)
	cancelled := make(chan struct{})

	fb := effects.Fork(task.FromFunc(func(ctx context.Context) (string, error) {
		<-ctx.Done()
		close(cancelled)
		return "", ctx.Err()
	}), nil, s)
	s.RunUntilIdle()

	fb.Interrupt()
	s.RunUntilIdle()

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("task context was not cancelled")
	}
	assert.Equal(t, effects.FiberInterrupted, fb.Status())
}

func TestSleep(t *testing.T) {
	start := time.Now()
	exit := runSync(context.Background(), effects.AndThen(task.Sleep(20*time.Millisecond), effects.Succeed("woke")), nil)
	assert.Equal(t, "woke", exit.Value)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestSleep_InterruptStopsTimer(t *testing.T) {
	s := scheduler.New(scheduler.DefaultConfig(), nil)
	fb := effects.Fork(task.Sleep(time.Hour), nil, s)
	s.RunUntilIdle()
	fb.Interrupt()
	s.RunUntilIdle()
	assert.Equal(t, effects.FiberInterrupted, fb.Status())
}
