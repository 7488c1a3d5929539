// Package effects provides a small fiber runtime for Go: effects are values,
// fibers interpret them cooperatively on a scheduler.
//
// # What is an Effect?
//
// An Effect[A] describes a computation that needs an environment and
// eventually succeeds with an A or fails with an error. Building one runs
// nothing. Effects are composed with FlatMap, Fold, Map, CatchAll and friends,
// and suspend only at Async boundaries (timers, queues, goroutines, I/O).
//
// # How does it work?
//
// Fork hands an effect to a scheduler.Scheduler and returns a Fiber handle.
// The fiber interprets a bounded number of instructions per turn and then
// yields, so a long synchronous chain cannot starve its neighbours. Async
// callbacks may fire from any goroutine; the fiber always resumes on its own
// executor, never inside the callback.
//
// Interruption is cooperative: Interrupt marks the fiber, and the next
// instruction it would run settles it with ErrInterrupted instead. A fiber
// suspended at an async boundary is settled right away and the boundary's
// Canceler runs exactly once. A finalizer started by Ensuring is the
// exception: the interrupt waits until it completes.
//
// On settlement the fiber runs its finalizers newest first, publishes its
// Exit, and then calls joiners in registration order. Panics in user code
// become failures wrapping ErrPanic.
//
// Sub-packages build on this:
//   - scheduler: the executor, its two-tier flush and a keyed executor pool
//   - queue: bounded queues with back-pressure, dropping and sliding strategies
//   - hub: broadcast to per-subscriber queues
//   - task, concurrency, log: blocking work, fan-out and structured logging
//
// Example:
//
//	s := scheduler.New(scheduler.DefaultConfig(), logger)
//	eff := effects.FlatMap(effects.Succeed(20), func(n int) effects.Effect[int] {
//	    return effects.Succeed(n + 1)
//	})
//	exit := effects.RunSync(ctx, eff, nil, s)
package effects
