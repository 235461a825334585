// Package agentstate provides a high-level façade over the runner and the
// session services (sessions, artifacts, memory & logging) enabling rapid
// construction of stateful agent applications. Most applications interact
// with this package by:
//  1. Creating an AgentState via New() with an agent (optionally overriding
//     default in-memory services)
//  2. Running invocations asynchronously (Run) or synchronously (RunSync)
//  3. Using Rewind and Compact to manage conversation history
//
// The façade delegates orchestration to runner.Runner while keeping setup and
// usage ergonomics concise. All defaults are safe for local development and
// testing; production deployments typically supply durable store
// implementations and a structured logger.
package agentstate

import (
	"context"
	"iter"
	"time"

	"github.com/hupe1980/agentstate/artifact"
	"github.com/hupe1980/agentstate/compaction"
	"github.com/hupe1980/agentstate/core"
	"github.com/hupe1980/agentstate/logging"
	"github.com/hupe1980/agentstate/memory"
	"github.com/hupe1980/agentstate/rewind"
	"github.com/hupe1980/agentstate/runner"
	"github.com/hupe1980/agentstate/session"
)

// Options configures the AgentState instance.
type Options struct {
	// EventBufferSize sets the channel buffer size for event processing.
	// Larger buffers reduce blocking but increase memory usage.
	EventBufferSize int

	// MaxModelCalls limits model calls per invocation (0 = unlimited).
	MaxModelCalls int

	// Stores (defaults to in-memory implementations if not provided)
	SessionStore  core.SessionStore
	ArtifactStore core.ArtifactStore
	MemoryStore   core.MemoryStore

	// Summarizer enables automatic history compaction when set. Leave nil to
	// disable compaction entirely.
	Summarizer compaction.Summarizer

	// CompactionInterval is the number of completed invocations between
	// compaction runs. Zero selects the compaction package default.
	CompactionInterval int

	// CompactionOverlap is the number of most recent invocations kept out of
	// each compaction window.
	CompactionOverlap int

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// AgentState is the high-level façade aggregating the runner and the history
// engines behind it.
type AgentState struct {
	opts       Options
	runner     *runner.Runner
	rewinder   *rewind.Engine
	compaction *compaction.Engine
}

// New creates a new AgentState instance around an agent with optional
// overrides. Any unset service is initialized with an in-memory
// implementation.
func New(agent core.Agent, optFns ...func(o *Options)) *AgentState {
	opts := Options{
		EventBufferSize: 100,
		MaxModelCalls:   100,
		SessionStore:    session.NewInMemoryStore(),
		ArtifactStore:   artifact.NewInMemoryStore(),
		MemoryStore:     memory.NewInMemoryStore(),
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	var compactor *compaction.Engine
	if opts.Summarizer != nil {
		compactor = compaction.New(opts.SessionStore, opts.Summarizer, func(o *compaction.Options) {
			if opts.CompactionInterval > 0 {
				o.Interval = opts.CompactionInterval
			}
			o.Overlap = opts.CompactionOverlap
			o.Logger = opts.Logger
		})
	}

	r := runner.New(agent, func(o *runner.Options) {
		o.EventBufferSize = opts.EventBufferSize
		o.MaxModelCalls = opts.MaxModelCalls
		o.SessionStore = opts.SessionStore
		o.ArtifactStore = opts.ArtifactStore
		o.MemoryStore = opts.MemoryStore
		if compactor != nil {
			o.Compactor = compactor
		}
		o.Logger = opts.Logger
	})

	rw := rewind.New(opts.SessionStore, opts.ArtifactStore, func(o *rewind.Options) {
		o.Logger = opts.Logger
	})

	return &AgentState{opts: opts, runner: r, rewinder: rw, compaction: compactor}
}

// CreateSession creates a new session in the configured store. Pass an empty
// sessionID to generate one.
func (a *AgentState) CreateSession(appName, userID, sessionID string) (*core.Session, error) {
	return a.opts.SessionStore.Create(appName, userID, sessionID)
}

// GetSession loads a session snapshot from the configured store.
func (a *AgentState) GetSession(sessionID string) (*core.Session, error) {
	return a.opts.SessionStore.Get(sessionID)
}

// SessionStore exposes the configured session store.
func (a *AgentState) SessionStore() core.SessionStore { return a.opts.SessionStore }

// ArtifactStore exposes the configured artifact store.
func (a *AgentState) ArtifactStore() core.ArtifactStore { return a.opts.ArtifactStore }

// Run starts an asynchronous invocation returning event & error channels.
func (a *AgentState) Run(
	ctx context.Context,
	sessionID string,
	userContent core.Content,
	runOptFns ...func(o *runner.RunOptions),
) (string, <-chan core.Event, <-chan error, error) {
	return a.runner.Run(ctx, sessionID, userContent, runOptFns...)
}

// RunSync is a synchronous helper that drains the async channels, accumulates
// events and returns them once the invocation completes.
func (a *AgentState) RunSync(
	ctx context.Context,
	sessionID string,
	userContent core.Content,
	runOptFns ...func(o *runner.RunOptions),
) ([]core.Event, error) {
	return a.runner.RunSync(ctx, sessionID, userContent, runOptFns...)
}

// Cancel cancels a running invocation by id.
func (a *AgentState) Cancel(invocationID string) error {
	return a.runner.Cancel(invocationID)
}

// Rewind restores the session to its state before the target invocation and
// returns the appended marker event.
func (a *AgentState) Rewind(sessionID, targetInvocationID string) (core.Event, error) {
	return a.rewinder.RewindBefore(sessionID, targetInvocationID)
}

// Compact forces a compaction run regardless of the configured interval. It
// returns core.ErrCompactionDisabled when no summarizer is configured.
func (a *AgentState) Compact(ctx context.Context, sessionID string) (*core.Event, error) {
	if a.compaction == nil {
		return nil, core.ErrCompactionDisabled
	}
	return a.compaction.Compact(ctx, sessionID)
}

// EffectiveEvents yields the session's visible history: rewound ranges are
// hidden and compacted ranges are replaced by their summaries.
func (a *AgentState) EffectiveEvents(sessionID string) (iter.Seq[core.Event], error) {
	sess, err := a.opts.SessionStore.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.EffectiveEvents(), nil
}

// EffectiveEventsAsOf is EffectiveEvents bounded to the log as it stood at
// the given time.
func (a *AgentState) EffectiveEventsAsOf(sessionID string, asOf time.Time) (iter.Seq[core.Event], error) {
	sess, err := a.opts.SessionStore.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.EffectiveEventsAsOf(asOf), nil
}
