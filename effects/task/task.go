package task

import (
	"context"
	"time"

	"github.com/on-the-ground/fiber_ive_go/effects"
)

// TaskPayload is blocking work run off the executor.
type TaskPayload[R any] func(context.Context) (R, error)

// ContextProvider is implemented by fiber environments that carry a
// context for blocking work.
type ContextProvider interface {
	Context() context.Context
}

func contextFrom(env any) context.Context {
	switch e := env.(type) {
	case context.Context:
		return e
	case ContextProvider:
		if ctx := e.Context(); ctx != nil {
			return ctx
		}
	}
	return context.Background()
}

// FromFunc runs fn on its own goroutine and resumes the fiber with its
// result. fn's context derives from the environment (a context.Context or
// a ContextProvider) and is cancelled if the fiber is interrupted first.
// A panic in fn fails the effect with effects.ErrPanic.
func FromFunc[R any](fn TaskPayload[R]) effects.Effect[R] {
	return effects.Async(func(env any, cb func(effects.Exit[R])) effects.Canceler {
		ctx, cancel := context.WithCancel(contextFrom(env))
		go func() {
			defer cancel()
			cb(call(ctx, fn))
		}()
		return effects.Canceler(cancel)
	})
}

func call[R any](ctx context.Context, fn TaskPayload[R]) (exit effects.Exit[R]) {
	defer func() {
		if r := recover(); r != nil {
			exit = effects.Failure[R](panicError(r))
		}
	}()
	return effects.ExitFrom(fn(ctx))
}

// Sleep resumes the fiber after d. Interrupting the fiber stops the timer.
func Sleep(d time.Duration) effects.Effect[struct{}] {
	return effects.Async(func(_ any, cb func(effects.Exit[struct{}])) effects.Canceler {
		timer := time.AfterFunc(d, func() {
			cb(effects.Success(struct{}{}))
		})
		return func() { timer.Stop() }
	})
}
