package configkeys

const (
	delimiter = "."

	ConfigPrefix = "config"

	ConfigSchedulerPrefix           = ConfigPrefix + delimiter + "scheduler"
	ConfigSchedulerFiberBudget      = ConfigSchedulerPrefix + delimiter + "fiber_budget"
	ConfigSchedulerFlushBudget      = ConfigSchedulerPrefix + delimiter + "flush_budget"
	ConfigSchedulerBacklogThreshold = ConfigSchedulerPrefix + delimiter + "backlog_threshold"
	ConfigSchedulerIngressCapacity  = ConfigSchedulerPrefix + delimiter + "ingress_capacity"
	ConfigSchedulerPoolSize         = ConfigSchedulerPrefix + delimiter + "pool_size"

	ConfigHubPrefix   = ConfigPrefix + delimiter + "hub"
	ConfigHubCapacity = ConfigHubPrefix + delimiter + "capacity"
	ConfigHubStrategy = ConfigHubPrefix + delimiter + "strategy"

	RuntimePrefix = "runtime"

	// RuntimeLogger holds the *zap.Logger of the fibers running under a scope.
	RuntimeLogger = RuntimePrefix + delimiter + "logger"
	// RuntimeContext holds the context.Context handed to blocking tasks.
	RuntimeContext = RuntimePrefix + delimiter + "context"
)
