package lease

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/on-the-ground/fiber_ive_go/effects"
	"github.com/on-the-ground/fiber_ive_go/effects/queue"
)

var ErrUnregisteredResource = errors.New("unregistered resource")
var ErrResourceInUse = errors.New("unable to deregister resource in use")

// Registry limits how many fibers may own a named resource at once.
// Each resource is a back-pressure queue sized to its owner count: acquiring
// offers a token, releasing takes one back.
type Registry struct {
	logger *zap.Logger

	mu     sync.Mutex
	leases map[string]*queue.Queue[struct{}]
}

func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		logger: logger.Named("lease"),
		leases: make(map[string]*queue.Queue[struct{}]),
	}
}

// Register declares key with room for numOwners concurrent owners (at least
// one). It reports false if key is already registered.
func (r *Registry) Register(key string, numOwners int) effects.Effect[bool] {
	return effects.Total(func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, ok := r.leases[key]; ok {
			return false
		}
		r.leases[key] = queue.New[struct{}](numOwners, queue.BackPressure)
		r.logger.Debug("resource registered", zap.String("key", key), zap.Int("numOwners", max(1, numOwners)))
		return true
	})
}

// Deregister removes key. It fails while any owner still holds it.
func (r *Registry) Deregister(key string) effects.Effect[bool] {
	return effects.Attempt(func() (bool, error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		q, ok := r.leases[key]
		if !ok {
			return false, fmt.Errorf("%w: key %s", ErrUnregisteredResource, key)
		}
		if q.Size() != 0 {
			return false, fmt.Errorf("%w key %s", ErrResourceInUse, key)
		}
		delete(r.leases, key)
		// fibers still waiting to acquire see the resource vanish
		q.Shutdown()
		r.logger.Debug("resource deregistered", zap.String("key", key))
		return true, nil
	})
}

// Acquire takes ownership of key, suspending while every owner slot is
// taken. Interrupting a waiting fiber gives up its place in line.
func (r *Registry) Acquire(key string) effects.Effect[bool] {
	return effects.FlatMap(r.lookup(key), func(q *queue.Queue[struct{}]) effects.Effect[bool] {
		return effects.FlatMap(q.Offer(struct{}{}), func(ok bool) effects.Effect[bool] {
			if !ok {
				return effects.Fail[bool](fmt.Errorf("%w: key %s", ErrUnregisteredResource, key))
			}
			return effects.Succeed(true)
		})
	})
}

// Release gives back one ownership of key. It reports false if nobody held it.
func (r *Registry) Release(key string) effects.Effect[bool] {
	return effects.FlatMap(r.lookup(key), func(q *queue.Queue[struct{}]) effects.Effect[bool] {
		return effects.Map(q.Poll(), func(p queue.Polled[struct{}]) bool {
			return p.OK
		})
	})
}

// Owners is the number of current owners of key, or 0 if it is unknown.
func (r *Registry) Owners(key string) int {
	r.mu.Lock()
	q, ok := r.leases[key]
	r.mu.Unlock()
	if !ok {
		return 0
	}
	return q.Size()
}

// With runs eff while owning key and releases it afterwards, whether eff
// succeeds, fails or is interrupted.
func With[A any](r *Registry, key string, eff effects.Effect[A]) effects.Effect[A] {
	return effects.FlatMap(r.Acquire(key), func(bool) effects.Effect[A] {
		return effects.Ensuring(eff, effects.Map(r.Release(key), func(bool) struct{} {
			return struct{}{}
		}))
	})
}

func (r *Registry) lookup(key string) effects.Effect[*queue.Queue[struct{}]] {
	return effects.Attempt(func() (*queue.Queue[struct{}], error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		q, ok := r.leases[key]
		if !ok {
			return nil, fmt.Errorf("%w: key %s", ErrUnregisteredResource, key)
		}
		return q, nil
	})
}
