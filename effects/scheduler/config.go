package scheduler

const (
	// DefaultFiberBudget is how many opcodes a fiber interprets before yielding.
	DefaultFiberBudget = 1024
	// DefaultFlushBudget is the max number of tasks one flush runs.
	DefaultFlushBudget = 2048
	// DefaultBacklogThreshold is the pending length above which the next flush
	// is deferred to the macro tier.
	DefaultBacklogThreshold = 4096
	// DefaultIngressCapacity is the lock-free capacity of the submission queue.
	DefaultIngressCapacity = 1024
)

type Config struct {
	FiberBudget      int // default: 1024
	FlushBudget      int // default: 2048
	BacklogThreshold int // default: 4096
	IngressCapacity  int // default: 1024
}

func NewConfig(fiberBudget, flushBudget, backlogThreshold, ingressCapacity int) Config {
	if fiberBudget <= 0 {
		fiberBudget = DefaultFiberBudget
	}
	if flushBudget <= 0 {
		flushBudget = DefaultFlushBudget
	}
	if backlogThreshold <= 0 {
		backlogThreshold = DefaultBacklogThreshold
	}
	if ingressCapacity <= 0 {
		ingressCapacity = DefaultIngressCapacity
	}
	return Config{
		FiberBudget:      fiberBudget,
		FlushBudget:      flushBudget,
		BacklogThreshold: backlogThreshold,
		IngressCapacity:  ingressCapacity,
	}
}

func DefaultConfig() Config {
	return NewConfig(0, 0, 0, 0)
}
