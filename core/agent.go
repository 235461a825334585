package core

// Agent is the unit of work the runner drives. Implementations receive a
// RunContext, emit events through it and return when the invocation is
// complete. Agent hierarchy, transfer routing and model plumbing live outside
// this core; the runner only needs Run.
//
// Implementations must respect context cancellation and emit only through the
// provided RunContext.
type Agent interface {
	Name() string
	Description() string
	Run(runCtx *RunContext) error
}

// AgentInfo carries identifying details about an agent used in contexts &
// events. Name is the external identifier; Type categorizes the
// implementation (e.g. "orchestrator", "worker").
type AgentInfo struct{ Name, Type string }
