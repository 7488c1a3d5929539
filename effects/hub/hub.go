package hub

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/on-the-ground/fiber_ive_go/effects"
	"github.com/on-the-ground/fiber_ive_go/effects/internal/linkedqueue"
	"github.com/on-the-ground/fiber_ive_go/effects/queue"
)

var ErrHubClosed = errors.New("hub closed")

type options struct {
	logger *zap.Logger
}

type Option func(*options)

// WithLogger sets the logger for subscription lifecycle events.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Hub broadcasts every published value to all current subscribers.
// Each subscriber owns a bounded queue created with the hub's capacity and
// strategy, so a slow subscriber only affects itself.
type Hub[A any] struct {
	ID string

	capacity int
	strategy queue.Strategy
	logger   *zap.Logger

	mu          sync.Mutex
	closed      bool
	subscribers *linkedqueue.LinkedQueue[*queue.Queue[A]]
}

// New creates an open hub with no subscribers.
func New[A any](capacity int, strategy queue.Strategy, opts ...Option) *Hub[A] {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	id := uuid.New().String()
	return &Hub[A]{
		ID:          id,
		capacity:    capacity,
		strategy:    strategy,
		logger:      o.logger.Named("hub").With(zap.String("hubId", id)),
		subscribers: linkedqueue.New[*queue.Queue[A]](),
	}
}

// Subscription is a subscriber's queue. Take from it to receive published
// values; it fails with queue.ErrQueueClosed once the subscription ends.
type Subscription[A any] struct {
	*queue.Queue[A]

	hub  *Hub[A]
	node *linkedqueue.Node[*queue.Queue[A]]
}

// Unsubscribe detaches and shuts down this subscription only.
// Calling it again does nothing.
func (s *Subscription[A]) Unsubscribe() {
	h := s.hub
	h.mu.Lock()
	if s.node.Removed() {
		h.mu.Unlock()
		return
	}
	h.subscribers.Remove(s.node)
	h.mu.Unlock()

	s.Queue.Shutdown()
	h.logger.Debug("unsubscribed", zap.Int("subscribers", h.SubscriberCount()))
}

// Subscribe adds a fresh subscriber queue. Fails with ErrHubClosed if the
// hub has been shut down.
func (h *Hub[A]) Subscribe() effects.Effect[*Subscription[A]] {
	return effects.Attempt(func() (*Subscription[A], error) {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.closed {
			return nil, ErrHubClosed
		}
		q := queue.New[A](h.capacity, h.strategy)
		n := h.subscribers.Push(q)
		h.logger.Debug("subscribed", zap.Int("subscribers", h.subscribers.Len()))
		return &Subscription[A]{Queue: q, hub: h, node: n}, nil
	})
}

// Publish offers a to every subscriber present when the effect runs, one
// after the other, and reports whether all of them accepted it. A rejection
// by one subscriber does not undo delivery to the others.
// Publishing on a closed hub reports false.
func (h *Hub[A]) Publish(a A) effects.Effect[bool] {
	return effects.Suspend(func() effects.Effect[bool] {
		subs, open := h.snapshot()
		if !open {
			return effects.Succeed(false)
		}
		acc := effects.Succeed(true)
		for _, q := range subs {
			acc = effects.FlatMap(acc, func(all bool) effects.Effect[bool] {
				return effects.Map(q.Offer(a), func(ok bool) bool {
					return all && ok
				})
			})
		}
		return acc
	})
}

// PublishAll publishes each value in order and reports whether every
// delivery was accepted.
func (h *Hub[A]) PublishAll(as []A) effects.Effect[bool] {
	acc := effects.Succeed(true)
	for _, a := range as {
		acc = effects.FlatMap(acc, func(all bool) effects.Effect[bool] {
			return effects.Map(h.Publish(a), func(ok bool) bool {
				return all && ok
			})
		})
	}
	return acc
}

// Shutdown closes the hub and every subscriber queue. Idempotent.
func (h *Hub[A]) Shutdown() effects.Effect[struct{}] {
	return effects.Total(func() struct{} {
		h.mu.Lock()
		if h.closed {
			h.mu.Unlock()
			return struct{}{}
		}
		h.closed = true
		var subs []*queue.Queue[A]
		for {
			q, ok := h.subscribers.Shift()
			if !ok {
				break
			}
			subs = append(subs, q)
		}
		h.mu.Unlock()

		for _, q := range subs {
			q.Shutdown()
		}
		h.logger.Debug("hub shut down", zap.Int("closedSubscribers", len(subs)))
		return struct{}{}
	})
}

func (h *Hub[A]) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.subscribers.Len()
}

func (h *Hub[A]) IsShutdown() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func (h *Hub[A]) snapshot() ([]*queue.Queue[A], bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	subs := make([]*queue.Queue[A], 0, h.subscribers.Len())
	for q := range h.subscribers.All() {
		subs = append(subs, q)
	}
	return subs, true
}
