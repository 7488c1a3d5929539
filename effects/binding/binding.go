package binding

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/on-the-ground/fiber_ive_go/effects"
	"github.com/on-the-ground/fiber_ive_go/effects/configkeys"
	"github.com/on-the-ground/fiber_ive_go/effects/queue"
	"github.com/on-the-ground/fiber_ive_go/effects/scheduler"
	"github.com/on-the-ground/fiber_ive_go/shared/helper"
)

var ErrKeyNotFound = errors.New("key not found")

// Bindings is a scoped key-value environment for fibers.
// Lookups that miss the local map fall back to upper scopes.
// A Bindings is immutable once built, so it can be shared between fibers.
type Bindings struct {
	values map[string]any
	upper  *Bindings
}

// New creates a root scope.
func New(values map[string]any) *Bindings {
	return &Bindings{values: normalizeBindingMap(values)}
}

// Scope creates a child scope whose values shadow b's.
func (b *Bindings) Scope(values map[string]any) *Bindings {
	return &Bindings{values: normalizeBindingMap(values), upper: b}
}

// Lookup searches this scope, then the upper ones.
func (b *Bindings) Lookup(key string) (any, bool) {
	for s := b; s != nil; s = s.upper {
		if v, ok := s.values[key]; ok {
			return v, true
		}
	}
	return nil, false
}

// Logger makes Bindings a log.LoggerProvider.
func (b *Bindings) Logger() *zap.Logger {
	if l, ok := lookupAs[*zap.Logger](b, configkeys.RuntimeLogger); ok && l != nil {
		return l
	}
	return zap.NewNop()
}

// Context makes Bindings a task.ContextProvider.
func (b *Bindings) Context() context.Context {
	if ctx, ok := lookupAs[context.Context](b, configkeys.RuntimeContext); ok && ctx != nil {
		return ctx
	}
	return context.Background()
}

// Effect looks key up in the fiber's environment, which must be *Bindings.
//
// Returns either the value found or an error if the key is not found and no upper scope provides it.
func Effect(key string) effects.Effect[any] {
	return effects.FlatMap(effects.Access[*Bindings](), func(b *Bindings) effects.Effect[any] {
		v, ok := b.Lookup(key)
		if !ok {
			return effects.Fail[any](fmt.Errorf("%w: %s", ErrKeyNotFound, key))
		}
		return effects.Succeed(v)
	})
}

// Get is Effect with the value asserted to T.
func Get[T any](key string) effects.Effect[T] {
	return effects.FlatMap(Effect(key), func(v any) effects.Effect[T] {
		return effects.Attempt(func() (T, error) {
			return helper.GetTypedValueOf[T](v)
		})
	})
}

// SchedulerConfig reads scheduler settings. Missing or mistyped values fall
// back to the defaults.
func SchedulerConfig(b *Bindings) scheduler.Config {
	return scheduler.NewConfig(
		intOf(b, configkeys.ConfigSchedulerFiberBudget),
		intOf(b, configkeys.ConfigSchedulerFlushBudget),
		intOf(b, configkeys.ConfigSchedulerBacklogThreshold),
		intOf(b, configkeys.ConfigSchedulerIngressCapacity),
	)
}

// NewPool builds an executor pool from the scheduler settings, with the
// scope's logger.
func NewPool(b *Bindings) *scheduler.Pool {
	return scheduler.NewPool(intOf(b, configkeys.ConfigSchedulerPoolSize), SchedulerConfig(b), b.Logger())
}

// HubSettings reads the capacity and strategy new hubs should use.
// Defaults to a capacity of 16 with back-pressure.
func HubSettings(b *Bindings) (int, queue.Strategy) {
	capacity := intOf(b, configkeys.ConfigHubCapacity)
	if capacity <= 0 {
		capacity = 16
	}
	strategy, ok := lookupAs[string](b, configkeys.ConfigHubStrategy)
	if !ok {
		return capacity, queue.BackPressure
	}
	return capacity, queue.Strategy(strategy)
}

// normalizeBindingMap is an internal helper for normalizing binding map.
func normalizeBindingMap(bm map[string]any) map[string]any {
	if bm == nil {
		bm = make(map[string]any)
	}
	return bm
}

func lookupAs[T any](b *Bindings, key string) (T, bool) {
	var zero T
	v, ok := b.Lookup(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

func intOf(b *Bindings, key string) int {
	n, _ := lookupAs[int](b, key)
	return n
}
