package concurrency

import (
	"sync"

	"github.com/on-the-ground/fiber_ive_go/effects"
	"github.com/on-the-ground/fiber_ive_go/effects/scheduler"
)

// All forks every effect on sched with the caller's environment and
// collects their results in argument order.
//
// The first failure interrupts the remaining children and fails All.
// Interrupting the calling fiber interrupts every child.
// A nil sched uses scheduler.Default().
func All[A any](sched *scheduler.Scheduler, effs ...effects.Effect[A]) effects.Effect[[]A] {
	return effects.Async(func(env any, cb func(effects.Exit[[]A])) effects.Canceler {
		if len(effs) == 0 {
			cb(effects.Success([]A{}))
			return nil
		}

		sv := newSupervisor(env, sched, effs)
		results := make([]A, len(effs))
		remaining := len(effs)

		for i, child := range sv.children {
			child.Join(func(exit effects.Exit[A]) {
				if !sv.settle(func() bool {
					if exit.Err != nil {
						return true
					}
					results[i] = exit.Value
					remaining--
					return remaining == 0
				}) {
					return
				}
				if exit.Err != nil {
					sv.interruptAll()
					cb(effects.Failure[[]A](exit.Err))
					return
				}
				cb(effects.Success(results))
			})
		}
		return sv.cancel
	})
}

// Race forks every effect and adopts the exit of the first one to settle,
// success or failure. The others are interrupted.
// Racing nothing never completes.
func Race[A any](sched *scheduler.Scheduler, effs ...effects.Effect[A]) effects.Effect[A] {
	return effects.Async(func(env any, cb func(effects.Exit[A])) effects.Canceler {
		sv := newSupervisor(env, sched, effs)
		for _, child := range sv.children {
			child.Join(func(exit effects.Exit[A]) {
				if !sv.settle(func() bool { return true }) {
					return
				}
				sv.interruptAll()
				cb(exit)
			})
		}
		return sv.cancel
	})
}

// supervisor tracks the children of one All or Race.
// Children may settle on executors other than the parent's, so decisions
// are taken under mu. children is fixed once newSupervisor returns.
type supervisor[A any] struct {
	mu       sync.Mutex
	done     bool
	children []*effects.Fiber[A]
}

// newSupervisor forks every effect before any of them is joined, so a
// failing child can always reach its siblings.
func newSupervisor[A any](env any, sched *scheduler.Scheduler, effs []effects.Effect[A]) *supervisor[A] {
	children := make([]*effects.Fiber[A], len(effs))
	for i, eff := range effs {
		children[i] = effects.Fork(eff, env, sched)
	}
	return &supervisor[A]{children: children}
}

// settle runs decide unless the outcome is already known and reports
// whether this call decided it.
func (s *supervisor[A]) settle(decide func() bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return false
	}
	s.done = decide()
	return s.done
}

func (s *supervisor[A]) interruptAll() {
	for _, c := range s.children {
		c.Interrupt()
	}
}

func (s *supervisor[A]) cancel() {
	s.mu.Lock()
	s.done = true
	s.mu.Unlock()
	s.interruptAll()
}
