package effects

import (
	"strconv"
	"sync"
	"sync/atomic"

	"code.hybscloud.com/atomix"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/on-the-ground/fiber_ive_go/effects/internal/linkedqueue"
	"github.com/on-the-ground/fiber_ive_go/effects/scheduler"
)

// FiberID identifies a fiber in logs. IDs are unique per process.
type FiberID uint64

var fiberCounter atomix.Uint64

func nextFiberID() FiberID {
	return FiberID(fiberCounter.Add(1))
}

type FiberStatus string

const (
	FiberRunning     FiberStatus = "Running"
	FiberDone        FiberStatus = "Done"
	FiberInterrupted FiberStatus = "Interrupted"
)

type stepDecision uint8

const (
	stepContinue stepDecision = iota
	stepSuspend
	stepDone
)

type runState int32

const (
	runRunning runState = iota
	runQueued
	runSuspended
	runDone
)

type finalizer func(Exit[any])

// frame is a pending continuation. A non-nil onFailure marks a fold frame;
// plain flatMap frames are skipped while unwinding a failure.
type frame struct {
	onSuccess func(any) node
	onFailure func(error) node
}

// fiber is the untyped interpreter behind Fiber[A].
//
// current, stack, done, closing, waiting and masked belong to the executor
// and are only touched by tasks the scheduler runs. Everything readable from
// other goroutines sits behind mu or is atomic.
type fiber struct {
	id     FiberID
	label  string
	sched  *scheduler.Scheduler
	logger *zap.Logger
	env    any
	budget int

	current node
	stack   []frame
	done    bool
	closing bool
	// waiting is set while an async boundary is outstanding
	waiting bool
	// masked > 0 holds interruption off until it drops back to 0
	masked int

	state       atomic.Int32
	interrupted atomic.Bool

	mu         sync.Mutex
	exit       *Exit[any]
	stopped    bool
	joiners    []func(Exit[any])
	finalizers *linkedqueue.LinkedQueue[finalizer]
}

func newFiber(root node, env any, sched *scheduler.Scheduler) *fiber {
	id := nextFiberID()
	f := &fiber{
		id:         id,
		label:      "fiber#" + strconv.FormatUint(uint64(id), 10),
		sched:      sched,
		logger:     sched.Logger().With(zap.Uint64("fiberId", uint64(id))),
		env:        env,
		budget:     sched.Config().FiberBudget,
		current:    root,
		finalizers: linkedqueue.New[finalizer](),
	}
	f.state.Store(int32(runSuspended))
	return f
}

// schedule queues one run of the fiber unless one is already queued or the
// fiber is done. Safe from any goroutine.
func (f *fiber) schedule(tag string) {
	for {
		st := runState(f.state.Load())
		if st == runDone || st == runQueued {
			return
		}
		if f.state.CompareAndSwap(int32(st), int32(runQueued)) {
			break
		}
	}
	f.sched.Schedule(f.run, f.label+"."+tag)
}

func (f *fiber) run() {
	if !f.state.CompareAndSwap(int32(runQueued), int32(runRunning)) {
		return
	}
	switch f.step() {
	case stepContinue:
		f.schedule("continue")
	case stepSuspend:
		// an interrupt may already have moved us to queued
		f.state.CompareAndSwap(int32(runRunning), int32(runSuspended))
	case stepDone:
		f.state.Store(int32(runDone))
	}
}

// step interprets at most budget instructions.
func (f *fiber) step() stepDecision {
	for range f.budget {
		if f.done {
			return stepDone
		}
		// IMPORTANT: interruption wins over whatever the next instruction is.
		if f.interrupted.Load() && !f.closing && f.masked == 0 {
			f.notify(Failure[any](ErrInterrupted), true)
			return stepDone
		}
		if f.waiting {
			return stepSuspend
		}

		switch n := reassociate(f.current).(type) {
		case succeedNode:
			f.onSuccess(n.value)
		case failNode:
			f.onFailure(n.err)
		case syncNode:
			v, err := f.callThunk(n.thunk)
			if err != nil {
				f.onFailure(err)
			} else {
				f.onSuccess(v)
			}
		case flatMapNode:
			f.stack = append(f.stack, frame{onSuccess: n.k})
			f.current = n.first
		case foldNode:
			f.stack = append(f.stack, frame{onSuccess: n.onSuccess, onFailure: n.onFailure})
			f.current = n.first
		case asyncNode:
			if f.suspendOn(n) {
				f.waiting = true
				return stepSuspend
			}
		case fiberNode:
			f.current = f.continueWith(func() node { return n.k(f) })
		}
	}
	if f.done {
		return stepDone
	}
	return stepContinue
}

// reassociate rewrites FlatMap(FlatMap(x, f), g) into
// FlatMap(x, a => FlatMap(f(a), g)) so left-nested chains never grow the
// continuation stack.
func reassociate(n node) node {
	for {
		outer, ok := n.(flatMapNode)
		if !ok {
			return n
		}
		inner, ok := outer.first.(flatMapNode)
		if !ok {
			return n
		}
		f, g := inner.k, outer.k
		n = flatMapNode{
			first: inner.first,
			k: func(a any) node {
				return flatMapNode{first: f(a), k: g}
			},
		}
	}
}

func (f *fiber) onSuccess(v any) {
	for len(f.stack) > 0 {
		fr := f.pop()
		if fr.onSuccess != nil {
			f.current = f.continueWith(func() node { return fr.onSuccess(v) })
			return
		}
	}
	f.notify(Success[any](v), false)
}

func (f *fiber) onFailure(err error) {
	for len(f.stack) > 0 {
		fr := f.pop()
		if fr.onFailure != nil {
			f.current = f.continueWith(func() node { return fr.onFailure(err) })
			return
		}
	}
	f.notify(Failure[any](err), false)
}

func (f *fiber) pop() frame {
	last := len(f.stack) - 1
	fr := f.stack[last]
	f.stack[last] = frame{}
	f.stack = f.stack[:last]
	return fr
}

func (f *fiber) continueWith(k func() node) (next node) {
	defer func() {
		if r := recover(); r != nil {
			next = failNode{err: panicError(r)}
		}
	}()
	next = k()
	if next == nil {
		next = succeedNode{}
	}
	return next
}

func (f *fiber) callThunk(thunk func(any) (any, error)) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = nil, panicError(r)
		}
	}()
	return thunk(f.env)
}

// suspendOn registers the async boundary. It reports false when the
// registration failed and the fiber can keep going with the failure.
func (f *fiber) suspendOn(n asyncNode) bool {
	var resolved atomic.Bool
	var cancelNode *linkedqueue.Node[finalizer]

	resume := func(v any, err error) {
		if !resolved.CompareAndSwap(false, true) {
			return
		}
		f.sched.Schedule(func() {
			f.removeFinalizer(cancelNode)
			f.resume(v, err)
		}, f.label+".async-resume")
	}

	cancel, err := f.register(n, resume)
	if err != nil {
		if resolved.CompareAndSwap(false, true) {
			f.onFailure(err)
			return false
		}
		// the callback won the race; its resumption is already queued
		f.logger.Warn("async registration panicked after completing", zap.Error(err))
		return true
	}
	if cancel != nil && !resolved.Load() {
		cancelNode = f.addFinalizer(func(Exit[any]) {
			if resolved.CompareAndSwap(false, true) {
				cancel()
			}
		})
	}
	return true
}

func (f *fiber) register(n asyncNode, resume func(any, error)) (cancel Canceler, err error) {
	defer func() {
		if r := recover(); r != nil {
			cancel, err = nil, panicError(r)
		}
	}()
	return n.register(f.env, resume), nil
}

func (f *fiber) resume(v any, err error) {
	if f.done || f.closing {
		return
	}
	f.waiting = false
	if err != nil {
		f.current = failNode{err: err}
	} else {
		f.current = succeedNode{value: v}
	}
	f.schedule("async-resume")
}

func (f *fiber) interrupt() {
	if f.settled() {
		return
	}
	if !f.interrupted.CompareAndSwap(false, true) {
		return
	}
	f.logger.Debug("fiber interrupt requested")
	f.schedule("interrupt")
}

// notify settles the fiber: finalizers newest first, then the exit becomes
// visible, then joiners in registration order. stopped records that the
// fiber ended because it was interrupted itself.
func (f *fiber) notify(exit Exit[any], stopped bool) {
	if f.done || f.closing {
		return
	}
	f.closing = true
	f.current = nil
	f.stack = nil

	f.runFinalizers(exit)

	f.mu.Lock()
	f.exit = &exit
	f.stopped = stopped
	joiners := f.joiners
	f.joiners = nil
	f.mu.Unlock()
	f.done = true

	for _, j := range joiners {
		f.callIsolated("fiber joiner panicked", func() { j(exit) })
	}
}

func (f *fiber) runFinalizers(exit Exit[any]) {
	var errs error
	for {
		f.mu.Lock()
		fin, ok := f.finalizers.PopBack()
		f.mu.Unlock()
		if !ok {
			break
		}
		errs = multierr.Append(errs, guard(func() { fin(exit) }))
	}
	if errs != nil {
		f.logger.Warn("fiber finalizers failed", zap.Error(errs))
	}
}

func (f *fiber) addFinalizer(fin finalizer) *linkedqueue.Node[finalizer] {
	f.mu.Lock()
	if f.exit == nil {
		n := f.finalizers.Push(fin)
		f.mu.Unlock()
		return n
	}
	exit := *f.exit
	f.mu.Unlock()

	// already settled: run it right away
	f.callIsolated("fiber finalizer panicked", func() { fin(exit) })
	return nil
}

func (f *fiber) removeFinalizer(n *linkedqueue.Node[finalizer]) {
	if n == nil {
		return
	}
	f.mu.Lock()
	f.finalizers.Remove(n)
	f.mu.Unlock()
}

func (f *fiber) join(cb func(Exit[any])) {
	f.mu.Lock()
	if f.exit == nil {
		f.joiners = append(f.joiners, cb)
		f.mu.Unlock()
		return
	}
	exit := *f.exit
	f.mu.Unlock()
	cb(exit)
}

func (f *fiber) poll() (Exit[any], bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.exit == nil {
		return Exit[any]{}, false
	}
	return *f.exit, true
}

func (f *fiber) settled() bool {
	_, ok := f.poll()
	return ok
}

// status is Interrupted only for a fiber stopped by its own interrupt; a
// fiber that merely adopted an interrupted exit, e.g. through Await, is Done.
func (f *fiber) status() FiberStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case f.exit == nil:
		return FiberRunning
	case f.stopped:
		return FiberInterrupted
	default:
		return FiberDone
	}
}

// spawn runs n on a new fiber sharing f's scheduler and environment.
// Nobody joins it, so a failure is only logged.
func (f *fiber) spawn(n node, tag string) {
	child := newFiber(n, f.env, f.sched)
	child.logger.Debug("fiber forked",
		zap.Uint64("parentId", uint64(f.id)),
		zap.String("reason", tag),
	)
	child.join(func(exit Exit[any]) {
		if exit.Err != nil {
			child.logger.Warn("detached fiber failed", zap.Error(exit.Err))
		}
	})
	child.schedule("start")
}

func (f *fiber) callIsolated(msg string, fn func()) {
	if err := guard(fn); err != nil {
		f.logger.Error(msg, zap.Error(err))
	}
}

func guard(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()
	fn()
	return nil
}

// Fiber is a handle to a running effect.
type Fiber[A any] struct {
	f *fiber
}

func (fb *Fiber[A]) ID() FiberID {
	return fb.f.id
}

func (fb *Fiber[A]) Status() FiberStatus {
	return fb.f.status()
}

// Join registers cb for the exit. If the fiber already settled, cb runs
// immediately on the calling goroutine; otherwise it runs on the executor.
func (fb *Fiber[A]) Join(cb func(Exit[A])) {
	fb.f.join(func(exit Exit[any]) {
		cb(typedExit[A](exit))
	})
}

// Poll returns the exit if the fiber has settled.
func (fb *Fiber[A]) Poll() (Exit[A], bool) {
	exit, ok := fb.f.poll()
	if !ok {
		return Exit[A]{}, false
	}
	return typedExit[A](exit), true
}

// Interrupt asks the fiber to stop. It settles with ErrInterrupted at its
// next instruction, or right away if it is suspended. No-op once settled.
func (fb *Fiber[A]) Interrupt() {
	fb.f.interrupt()
}

// AddFinalizer registers fin to run once when the fiber settles, for any
// outcome. Finalizers run newest first; a panicking finalizer is logged and
// does not stop the others.
func (fb *Fiber[A]) AddFinalizer(fin func(Exit[A])) {
	fb.f.addFinalizer(func(exit Exit[any]) {
		fin(typedExit[A](exit))
	})
}

// Await suspends the calling fiber until fb settles and adopts its exit.
func (fb *Fiber[A]) Await() Effect[A] {
	return Async(func(_ any, cb func(Exit[A])) Canceler {
		fb.Join(cb)
		return nil
	})
}
