package effects

import (
	"reflect"

	"github.com/on-the-ground/fiber_ive_go/shared/helper"
)

// node is the untyped instruction the interpreter walks.
// The set of implementations is closed to this package.
type node interface {
	isNode()
}

type succeedNode struct {
	value any
}

type failNode struct {
	err error
}

type syncNode struct {
	thunk func(env any) (any, error)
}

type flatMapNode struct {
	first node
	k     func(any) node
}

type foldNode struct {
	first     node
	onFailure func(error) node
	onSuccess func(any) node
}

type asyncNode struct {
	register func(env any, resume func(any, error)) Canceler
}

// fiberNode continues with whatever k builds from the running fiber.
type fiberNode struct {
	k func(f *fiber) node
}

func (succeedNode) isNode() {}
func (failNode) isNode()    {}
func (syncNode) isNode()    {}
func (flatMapNode) isNode() {}
func (foldNode) isNode()    {}
func (asyncNode) isNode()   {}
func (fiberNode) isNode()   {}

// Canceler aborts an outstanding async registration.
// It is invoked at most once, and only if the registration never completed.
type Canceler func()

// Effect is an immutable description of a computation that, given an
// environment, eventually succeeds with an A or fails with an error.
// Building an Effect runs nothing; hand it to Fork or one of the Run helpers.
//
// The zero value succeeds with the zero value of A.
type Effect[A any] struct {
	n node
}

func (e Effect[A]) node() node {
	if e.n == nil {
		return succeedNode{}
	}
	return e.n
}

// Succeed completes immediately with a.
func Succeed[A any](a A) Effect[A] {
	return Effect[A]{n: succeedNode{value: a}}
}

// Fail completes immediately with err. A nil err becomes ErrNilFailure.
func Fail[A any](err error) Effect[A] {
	if err == nil {
		err = ErrNilFailure
	}
	return Effect[A]{n: failNode{err: err}}
}

// Sync runs thunk with the environment when interpreted.
// A non-nil error fails the effect, a panic fails it with ErrPanic.
func Sync[A any](thunk func(env any) (A, error)) Effect[A] {
	return Effect[A]{n: syncNode{thunk: func(env any) (any, error) {
		return thunk(env)
	}}}
}

// Total is Sync for thunks that cannot fail and ignore the environment.
func Total[A any](thunk func() A) Effect[A] {
	return Sync(func(any) (A, error) {
		return thunk(), nil
	})
}

// Attempt is Sync for thunks that ignore the environment.
func Attempt[A any](thunk func() (A, error)) Effect[A] {
	return Sync(func(any) (A, error) {
		return thunk()
	})
}

// Unit succeeds with struct{}{}.
func Unit() Effect[struct{}] {
	return Succeed(struct{}{})
}

// FlatMap sequences e with k. k only runs if e succeeds.
func FlatMap[A, B any](e Effect[A], k func(A) Effect[B]) Effect[B] {
	return Effect[B]{n: flatMapNode{
		first: e.node(),
		k: func(v any) node {
			return k(helper.As[A](v)).node()
		},
	}}
}

// Fold handles both outcomes of e. A nil handler passes that outcome through;
// a nil onSuccess requires A and B to be the same type.
func Fold[A, B any](e Effect[A], onFailure func(error) Effect[B], onSuccess func(A) Effect[B]) Effect[B] {
	if onFailure == nil {
		onFailure = Fail[B]
	}
	if onSuccess == nil {
		onSuccess = func(a A) Effect[B] {
			return Succeed(helper.As[B](any(a)))
		}
	}
	return Effect[B]{n: foldNode{
		first: e.node(),
		onFailure: func(err error) node {
			return onFailure(err).node()
		},
		onSuccess: func(v any) node {
			return onSuccess(helper.As[A](v)).node()
		},
	}}
}

// Async suspends the fiber until register's callback fires.
//
// register receives the environment and a one-shot callback; only the first
// call to the callback counts, later calls are ignored. The returned
// Canceler, if any, is run when the fiber settles before the callback fired.
// The callback may be invoked synchronously or from any goroutine; the
// fiber always resumes on its own executor.
func Async[A any](register func(env any, cb func(Exit[A])) Canceler) Effect[A] {
	return Effect[A]{n: asyncNode{
		register: func(env any, resume func(any, error)) Canceler {
			return register(env, func(exit Exit[A]) {
				resume(exit.Value, exit.Err)
			})
		},
	}}
}

// Map transforms the success value of e with f.
func Map[A, B any](e Effect[A], f func(A) B) Effect[B] {
	return FlatMap(e, func(a A) Effect[B] {
		return Succeed(f(a))
	})
}

// MapError rewrites the failure of e.
func MapError[A any](e Effect[A], f func(error) error) Effect[A] {
	return Fold(e, func(err error) Effect[A] {
		return Fail[A](f(err))
	}, Succeed[A])
}

// CatchAll recovers from any failure of e with h.
func CatchAll[A any](e Effect[A], h func(error) Effect[A]) Effect[A] {
	return Fold(e, h, Succeed[A])
}

// Suspend defers building the effect until it is interpreted.
// Recursive effects should go through Suspend or FlatMap.
func Suspend[A any](f func() Effect[A]) Effect[A] {
	return FlatMap(Unit(), func(struct{}) Effect[A] {
		return f()
	})
}

// ZipWith runs ea then eb and combines both results.
func ZipWith[A, B, C any](ea Effect[A], eb Effect[B], f func(A, B) C) Effect[C] {
	return FlatMap(ea, func(a A) Effect[C] {
		return Map(eb, func(b B) C {
			return f(a, b)
		})
	})
}

// AndThen runs ea, discards its result, then runs eb.
func AndThen[A, B any](ea Effect[A], eb Effect[B]) Effect[B] {
	return FlatMap(ea, func(A) Effect[B] {
		return eb
	})
}

// Ensuring runs fin after e whatever the outcome and keeps e's outcome,
// unless fin itself fails. Once fin has started it is not interrupted.
// If the fiber is interrupted while e runs, fin runs on a new fiber on the
// same scheduler and environment.
func Ensuring[A any](e Effect[A], fin Effect[struct{}]) Effect[A] {
	return Effect[A]{n: fiberNode{k: func(f *fiber) node {
		onInterrupt := f.addFinalizer(func(Exit[any]) {
			f.spawn(fin.node(), "ensuring")
		})
		finish := func(outcome node) node {
			f.removeFinalizer(onInterrupt)
			f.masked++
			return foldNode{
				first: fin.node(),
				onSuccess: func(any) node {
					f.masked--
					return outcome
				},
				onFailure: func(err error) node {
					f.masked--
					return failNode{err: err}
				},
			}
		}
		return foldNode{
			first: e.node(),
			onSuccess: func(v any) node {
				return finish(succeedNode{value: v})
			},
			onFailure: func(err error) node {
				return finish(failNode{err: err})
			},
		}
	}}}
}

// Access reads the environment as R. It fails with ErrEnvironmentType if the
// environment holds something else.
func Access[R any]() Effect[R] {
	return Sync(func(env any) (R, error) {
		r, ok := env.(R)
		if !ok {
			var zero R
			return zero, environmentTypeError(env, reflect.TypeFor[R]())
		}
		return r, nil
	})
}
