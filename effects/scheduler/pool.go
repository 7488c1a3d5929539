package scheduler

import (
	"context"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Pool is a set of independent executors. Each executor owns the fibers
// forked onto it; fibers on different executors only meet through queues
// and hubs.
type Pool struct {
	executors []*Scheduler
}

// NewPool creates size executors sharing cfg. size below 1 is treated as 1.
func NewPool(size int, cfg Config, logger *zap.Logger) *Pool {
	size = max(1, size)
	if logger == nil {
		logger = zap.NewNop()
	}
	executors := make([]*Scheduler, size)
	for i := range executors {
		executors[i] = New(cfg, logger.With(zap.String("executor", strconv.Itoa(i))))
	}
	return &Pool{executors: executors}
}

func (p *Pool) Size() int { return len(p.executors) }

func (p *Pool) At(i int) *Scheduler { return p.executors[i] }

// Pick routes a key to an executor. The same key always lands on the same
// executor, so work sharing a key keeps its FIFO order.
func (p *Pool) Pick(key string) *Scheduler {
	return p.executors[indexByHash(key, len(p.executors))]
}

// Run drives every executor on its own goroutine until ctx is done or one
// of them fails.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, s := range p.executors {
		g.Go(func() error {
			return s.Run(ctx)
		})
	}
	return g.Wait()
}

func indexByHash(key string, n int) int {
	switch n {
	case 0:
		panic("number of executors cannot be 0")
	case 1:
		return 0
	default:
		return int(xxhash.Sum64String(key) % uint64(n))
	}
}
