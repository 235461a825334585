package runner

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/agentstate/artifact"
	"github.com/hupe1980/agentstate/core"
	"github.com/hupe1980/agentstate/logging"
	"github.com/hupe1980/agentstate/memory"
	"github.com/hupe1980/agentstate/session"
)

// Compactor triggers history compaction after an invocation completes.
// Satisfied by *compaction.Engine.
type Compactor interface {
	MaybeCompact(ctx context.Context, sessionID string) (*core.Event, error)
}

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// EventBufferSize sets channel buffering for events.
	EventBufferSize int
	// MaxModelCalls limits the number of model calls per run (0 = unlimited).
	MaxModelCalls int
	// SessionStore persists sessions; defaults to in-memory.
	SessionStore core.SessionStore
	// ArtifactStore persists artifacts; defaults to in-memory.
	ArtifactStore core.ArtifactStore
	// MemoryStore persists recall memory; defaults to in-memory.
	MemoryStore core.MemoryStore
	// Compactor runs after each completed invocation. Nil disables
	// automatic compaction.
	Compactor Compactor
	// Logger receives structured diagnostics.
	Logger logging.Logger
}

// RunOptions carries per-invocation overrides.
type RunOptions struct {
	// ToolConfirmations are host-collected resolutions for confirmation
	// requests raised on an earlier invocation, keyed by function call id.
	// Resolutions for unknown call ids are ignored by the orchestrator.
	ToolConfirmations map[string]core.ToolConfirmation
}

// WithToolConfirmations supplies confirmation resolutions for this run.
func WithToolConfirmations(confirmations map[string]core.ToolConfirmation) func(o *RunOptions) {
	return func(o *RunOptions) { o.ToolConfirmations = confirmations }
}

// Runner coordinates agent execution: it creates run contexts, streams
// events, persists history and schedules compaction. Public methods are safe
// for concurrent use.
type Runner struct {
	agent core.Agent

	eventBufferSize int
	maxModelCalls   int

	sessionStore  core.SessionStore
	artifactStore core.ArtifactStore
	memoryStore   core.MemoryStore
	compactor     Compactor
	logger        logging.Logger

	activeRuns map[string]context.CancelFunc
	mu         sync.RWMutex
}

// New constructs a Runner with optional overrides.
func New(agent core.Agent, optFns ...func(o *Options)) *Runner {
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

	return &Runner{
		agent:           agent,
		eventBufferSize: opts.EventBufferSize,
		maxModelCalls:   opts.MaxModelCalls,
		sessionStore:    opts.SessionStore,
		artifactStore:   opts.ArtifactStore,
		memoryStore:     opts.MemoryStore,
		compactor:       opts.Compactor,
		logger:          opts.Logger,
		activeRuns:      make(map[string]context.CancelFunc),
	}
}

// SessionStore exposes the configured session store.
func (r *Runner) SessionStore() core.SessionStore { return r.sessionStore }

// ArtifactStore exposes the configured artifact store.
func (r *Runner) ArtifactStore() core.ArtifactStore { return r.artifactStore }

// Run starts an asynchronous invocation and returns its id plus the event and
// error streams. Both channels close when the invocation finishes.
func (r *Runner) Run(
	ctx context.Context,
	sessionID string,
	userContent core.Content,
	runOptFns ...func(o *RunOptions),
) (string, <-chan core.Event, <-chan error, error) {
	runOpts := RunOptions{}
	for _, fn := range runOptFns {
		fn(&runOpts)
	}

	sess, err := r.sessionStore.Get(sessionID)
	if err != nil {
		return "", nil, nil, fmt.Errorf("failed to get session: %w", err)
	}

	invocationID := core.NewID()

	eventsCh := make(chan core.Event, r.eventBufferSize)
	errorsCh := make(chan error, 1)
	agentEmit := make(chan core.Event, r.eventBufferSize)
	resumeCh := make(chan struct{}, 1)

	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.activeRuns[invocationID] = cancel
	r.mu.Unlock()

	agentInfo := core.AgentInfo{Name: r.agent.Name(), Type: "agent"}

	runCtx := core.NewRunContext(
		ctx,
		sessionID,
		invocationID,
		agentInfo,
		userContent,
		r.maxModelCalls,
		agentEmit,
		resumeCh,
		sess,
		r.sessionStore,
		r.artifactStore,
		r.memoryStore,
		r.logger,
	)
	for id, c := range runOpts.ToolConfirmations {
		runCtx.ToolConfirmations[id] = c
	}

	userEvent := core.NewUserContentEvent(invocationID, &userContent)
	if err := r.sessionStore.AppendEvent(sessionID, userEvent); err != nil {
		cancel()
		r.mu.Lock()
		delete(r.activeRuns, invocationID)
		r.mu.Unlock()
		return "", nil, nil, fmt.Errorf("failed to append user event: %w", err)
	}

	go func() {
		defer func() {
			close(agentEmit)
			r.mu.Lock()
			delete(r.activeRuns, invocationID)
			r.mu.Unlock()
		}()

		if err := r.agent.Run(runCtx); err != nil {
			select {
			case <-runCtx.Done():
			case errorsCh <- fmt.Errorf("agent execution failed: %w", err):
			}
		}
	}()

	go func() {
		defer func() { close(eventsCh); close(errorsCh) }()

		r.processEvents(runCtx, sessionID, agentEmit, resumeCh, eventsCh, errorsCh)

		if r.compactor != nil && runCtx.Err() == nil {
			if compEv, err := r.compactor.MaybeCompact(context.WithoutCancel(ctx), sessionID); err != nil {
				r.logger.Warn("runner.compaction.failed", "session_id", sessionID, "error", err.Error())
			} else if compEv != nil {
				select {
				case eventsCh <- *compEv:
				default:
					r.logger.Debug("runner.compaction.event_dropped", "session_id", sessionID)
				}
			}
		}
	}()

	return invocationID, eventsCh, errorsCh, nil
}

// RunSync executes an invocation and blocks until completion, returning every
// streamed event. The first streamed error aborts collection.
func (r *Runner) RunSync(
	ctx context.Context,
	sessionID string,
	userContent core.Content,
	runOptFns ...func(o *RunOptions),
) ([]core.Event, error) {
	_, eventsCh, errorsCh, err := r.Run(ctx, sessionID, userContent, runOptFns...)
	if err != nil {
		return nil, err
	}

	var events []core.Event
	for eventsCh != nil || errorsCh != nil {
		select {
		case ev, ok := <-eventsCh:
			if !ok {
				eventsCh = nil
				continue
			}
			events = append(events, ev)
		case runErr, ok := <-errorsCh:
			if !ok {
				errorsCh = nil
				continue
			}
			return events, runErr
		}
	}

	return events, nil
}

// Cancel cancels a running invocation by id.
func (r *Runner) Cancel(invocationID string) error {
	r.mu.Lock()
	cancel, exists := r.activeRuns[invocationID]
	r.mu.Unlock()

	if !exists {
		return fmt.Errorf("invocation %s not found", invocationID)
	}

	cancel()

	return nil
}

// processEvents persists and forwards agent-emitted events. Partial streaming
// fragments are forwarded but never persisted; every persisted event releases
// the resume gate so the agent can observe the committed session.
func (r *Runner) processEvents(
	runCtx *core.RunContext,
	sessionID string,
	agentEmit <-chan core.Event,
	resumeCh chan<- struct{},
	eventsCh chan<- core.Event,
	errorsCh chan<- error,
) {
	for {
		select {
		case <-runCtx.Done():
			return
		case ev, ok := <-agentEmit:
			if !ok {
				return
			}
			if !ev.IsPartial() {
				// AppendEvent folds the event's state delta into derived
				// state; no separate delta application step exists.
				if err := r.sessionStore.AppendEvent(sessionID, ev); err != nil {
					select {
					case <-runCtx.Done():
					case errorsCh <- fmt.Errorf("failed to append event to session: %w", err):
					}
					return
				}
			}
			select {
			case <-runCtx.Done():
				return
			case eventsCh <- ev:
				r.logger.Debug("runner.event.delivered", "event_id", ev.ID, "session_id", sessionID)
			}
			if !ev.IsPartial() {
				select {
				case <-runCtx.Done():
					return
				case resumeCh <- struct{}{}:
				default:
				}
			}
		}
	}
}
