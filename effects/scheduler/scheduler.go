package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/on-the-ground/fiber_ive_go/effects/internal/ingress"
	"github.com/on-the-ground/fiber_ive_go/effects/internal/ringbuffer"
)

var ErrAlreadyRunning = errors.New("scheduler is already running")

// Task is a unit of work run by the executor.
type Task func()

type taggedTask struct {
	label string
	task  Task
}

type flushKind int

const (
	micro flushKind = iota
	macro
)

// Scheduler multiplexes tasks onto a single executor goroutine.
//
// Tasks are submitted through Schedule from any goroutine and run in FIFO
// order by flushes. A flush is requested on one of two tiers: the micro tier
// is drained before anything else, the macro tier is shared with host tasks
// submitted through Post and serviced one task per Tick. Flushes that hit
// the budget, or that start behind a large backlog, go to the macro tier so
// host work is not starved. A requested micro flush that has not started
// is moved to the macro tier as soon as the backlog passes the threshold.
//
// Tick, RunUntilIdle and Run must only be driven by one goroutine at a time.
type Scheduler struct {
	cfg    Config
	logger *zap.Logger

	pending *ingress.Queue[taggedTask]
	ready   *ringbuffer.RingBuffer[taggedTask]
	queued  atomic.Int64

	host      *ingress.Queue[taggedTask]
	hostReady *ringbuffer.RingBuffer[taggedTask]

	microPending atomic.Bool
	scheduled    atomic.Bool
	flushing     atomic.Bool

	wake    chan struct{}
	running atomic.Bool
}

// New creates a scheduler. A nil logger discards logs.
func New(cfg Config, logger *zap.Logger) *Scheduler {
	cfg = NewConfig(cfg.FiberBudget, cfg.FlushBudget, cfg.BacklogThreshold, cfg.IngressCapacity)
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cfg:       cfg,
		logger:    logger.Named("scheduler"),
		pending:   ingress.New[taggedTask](cfg.IngressCapacity),
		ready:     ringbuffer.New[taggedTask](cfg.IngressCapacity),
		host:      ingress.New[taggedTask](cfg.IngressCapacity),
		hostReady: ringbuffer.New[taggedTask](cfg.IngressCapacity),
		wake:      make(chan struct{}, 1),
	}
}

var defaultScheduler = sync.OnceValue(func() *Scheduler {
	return New(DefaultConfig(), nil)
})

// Default returns the process-wide scheduler used when none is given.
func Default() *Scheduler {
	return defaultScheduler()
}

func (s *Scheduler) Config() Config { return s.cfg }

func (s *Scheduler) Logger() *zap.Logger { return s.logger }

// Len is the number of scheduled tasks that have not started yet.
func (s *Scheduler) Len() int {
	return int(s.queued.Load())
}

// Schedule enqueues task. It never runs the task synchronously.
// The label is only used in diagnostics.
func (s *Scheduler) Schedule(task Task, label string) {
	if task == nil {
		return
	}
	if label == "" {
		label = "anonymous"
	}
	s.pending.Push(taggedTask{label: label, task: task})
	s.queued.Add(1)

	// the active flush, or its post-flush check, picks this up
	if s.flushing.Load() {
		return
	}
	if s.scheduled.CompareAndSwap(false, true) {
		kind := micro
		if s.Len() > s.cfg.BacklogThreshold {
			kind = macro
		}
		s.requestFlush(kind)
		return
	}
	// a micro flush that has not started yet yields once the backlog grows
	if s.Len() > s.cfg.BacklogThreshold && s.microPending.CompareAndSwap(true, false) {
		s.requestFlush(macro)
	}
}

// Post enqueues a host task on the macro tier.
func (s *Scheduler) Post(task Task, label string) {
	if task == nil {
		return
	}
	if label == "" {
		label = "host"
	}
	s.host.Push(taggedTask{label: label, task: task})
	s.signal()
}

// Tick runs the pending micro flush if there is one, otherwise a single
// macro task. It reports whether any work ran.
func (s *Scheduler) Tick() bool {
	if s.microPending.CompareAndSwap(true, false) {
		s.flush()
		return true
	}
	if s.hostReady.IsEmpty() {
		s.host.DrainInto(s.hostReady)
	}
	t, ok := s.hostReady.Shift()
	if !ok {
		return false
	}
	s.runIsolated(t)
	return true
}

// RunUntilIdle ticks until no work is left and returns the number of ticks.
func (s *Scheduler) RunUntilIdle() int {
	ticks := 0
	for s.Tick() {
		ticks++
	}
	return ticks
}

// Run drives the scheduler on the calling goroutine until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)

	s.logger.Debug("executor started")
	defer s.logger.Debug("executor stopped")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.Tick() {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.wake:
		}
	}
}

func (s *Scheduler) requestFlush(kind flushKind) {
	switch kind {
	case micro:
		s.microPending.Store(true)
		s.signal()
	case macro:
		s.logger.Debug("flush deferred to macro tier", zap.Int("backlog", s.Len()))
		s.Post(s.flush, "scheduler.flush")
	}
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) flush() {
	if !s.flushing.CompareAndSwap(false, true) {
		return
	}
	s.scheduled.Store(false)

	ran := 0
	for ran < s.cfg.FlushBudget {
		t, ok := s.next()
		if !ok {
			break
		}
		ran++
		s.runIsolated(t)
	}

	s.flushing.Store(false)

	if s.Len() > 0 && s.scheduled.CompareAndSwap(false, true) {
		kind := micro
		if ran >= s.cfg.FlushBudget || s.Len() > s.cfg.BacklogThreshold {
			kind = macro
		}
		s.requestFlush(kind)
	}
}

func (s *Scheduler) next() (taggedTask, bool) {
	if s.ready.IsEmpty() {
		s.pending.DrainInto(s.ready)
	}
	t, ok := s.ready.Shift()
	if ok {
		s.queued.Add(-1)
	}
	return t, ok
}

func (s *Scheduler) runIsolated(t taggedTask) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduler task panicked",
				zap.String("label", t.label),
				zap.Any("panic", r),
			)
		}
	}()
	t.task()
}
