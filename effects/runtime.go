package effects

import (
	"context"

	"code.hybscloud.com/iox"

	"github.com/on-the-ground/fiber_ive_go/effects/scheduler"
)

// Fork starts interpreting eff on sched with env as its environment and
// returns immediately; nothing runs until the scheduler is driven.
// A nil sched uses scheduler.Default().
func Fork[A any](eff Effect[A], env any, sched *scheduler.Scheduler) *Fiber[A] {
	if sched == nil {
		sched = scheduler.Default()
	}
	f := newFiber(eff.node(), env, sched)
	f.logger.Debug("fiber forked")
	f.schedule("start")
	return &Fiber[A]{f: f}
}

// RunAsync forks eff and calls cb with its exit.
func RunAsync[A any](eff Effect[A], env any, sched *scheduler.Scheduler, cb func(Exit[A])) *Fiber[A] {
	fb := Fork(eff, env, sched)
	fb.Join(cb)
	return fb
}

// RunToChannel forks eff and delivers its exit on the returned channel,
// which is closed afterwards.
func RunToChannel[A any](eff Effect[A], env any, sched *scheduler.Scheduler) <-chan Exit[A] {
	ch := make(chan Exit[A], 1)
	RunAsync(eff, env, sched, func(exit Exit[A]) {
		ch <- exit
		close(ch)
	})
	return ch
}

// RunSync forks eff and drives sched on the calling goroutine until the
// fiber settles. If ctx ends first the fiber is interrupted and the exit
// carries ctx.Err().
//
// sched must not be driven by another goroutine at the same time; use
// RunToChannel with a running scheduler instead.
func RunSync[A any](ctx context.Context, eff Effect[A], env any, sched *scheduler.Scheduler) Exit[A] {
	if sched == nil {
		sched = scheduler.Default()
	}
	fb := Fork(eff, env, sched)

	var bo iox.Backoff
	for {
		if exit, ok := fb.Poll(); ok {
			return exit
		}
		if err := ctx.Err(); err != nil {
			fb.Interrupt()
			sched.RunUntilIdle()
			return Failure[A](err)
		}
		if sched.Tick() {
			bo.Reset()
			continue
		}
		// idle: the fiber waits on another goroutine
		bo.Wait()
	}
}
