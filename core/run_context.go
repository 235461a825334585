package core

import (
	"context"
	"fmt"
	"maps"

	"github.com/hupe1980/agentstate/logging"
)

// RunContext carries execution state & helpers for one agent invocation. It
// aggregates:
//   - The ambient cancellation Context
//   - Identifiers (SessionID, InvocationID, Agent info)
//   - Input user Content and host-supplied tool confirmations
//   - Emission / resumption coordination channels
//   - Backing services (session, artifact, memory) for persistence concerns
//   - A working Session snapshot and a pending StateDelta buffer
//   - Branch label for sub-conversation paths
//
// One invocation owns the session at a time; the RunContext itself is not a
// concurrency boundary. Concurrently executing tools never write through it;
// each tool call gets its own ToolContext delta buffer instead.
type RunContext struct {
	Context                 context.Context
	SessionID, InvocationID string
	Agent                   AgentInfo
	UserContent             Content
	MaxModelCalls           int
	Emit                    chan<- Event
	Resume                  <-chan struct{}
	SessionStore            SessionStore
	ArtifactStore           ArtifactStore
	MemoryStore             MemoryStore
	Limiter                 *ModelLimiter
	Session                 *Session

	// ToolConfirmations are resolutions the host collected for previously
	// requested confirmations, keyed by function call id.
	ToolConfirmations map[string]ToolConfirmation

	// StateDelta stages agent-authored mutations until EmitEvent attaches
	// them to the next event. Tool-call mutations do not pass through here.
	StateDelta map[string]any
	Branch     string

	*loggerAdapter
}

// NewRunContext constructs a RunContext with an empty staging buffer.
func NewRunContext(
	ctx context.Context,
	sessionID, invocationID string,
	agent AgentInfo,
	userContent Content,
	maxModelCalls int,
	emit chan<- Event,
	resume <-chan struct{},
	sess *Session,
	sessionStore SessionStore,
	artifactStore ArtifactStore,
	memoryStore MemoryStore,
	logger logging.Logger,
) *RunContext {
	return &RunContext{
		Context:           ctx,
		SessionID:         sessionID,
		InvocationID:      invocationID,
		Agent:             agent,
		UserContent:       userContent,
		MaxModelCalls:     maxModelCalls,
		Emit:              emit,
		Resume:            resume,
		Session:           sess,
		SessionStore:      sessionStore,
		ArtifactStore:     artifactStore,
		MemoryStore:       memoryStore,
		Limiter:           NewModelLimiter(maxModelCalls),
		ToolConfirmations: map[string]ToolConfirmation{},
		StateDelta:        map[string]any{},
		loggerAdapter:     newLoggerAdapter(logger),
	}
}

// Done returns a channel closed when the underlying context is cancelled.
func (rc *RunContext) Done() <-chan struct{} { return rc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (rc *RunContext) Err() error { return rc.Context.Err() }

// GetState returns a staged (delta) value if present, else the derived
// session value.
func (rc *RunContext) GetState(k string) (any, bool) {
	if v, ok := rc.StateDelta[k]; ok {
		return v, true
	}

	if rc.Session != nil {
		return rc.Session.GetState(k)
	}

	return nil, false
}

// SetState stages a state mutation in the in-memory delta buffer.
func (rc *RunContext) SetState(k string, v any) { rc.StateDelta[k] = v }

// ApplyStateDelta merges all pairs from d into the staged StateDelta.
func (rc *RunContext) ApplyStateDelta(d map[string]any) {
	maps.Copy(rc.StateDelta, d)
}

// ArtifactScope returns the artifact addressing scope of this invocation's
// session.
func (rc *RunContext) ArtifactScope() ArtifactScope {
	if rc.Session != nil {
		return rc.Session.ArtifactScope()
	}
	return ArtifactScope{SessionID: rc.SessionID}
}

// SaveArtifact appends a new artifact version and stages the version number
// for the next emitted event.
func (rc *RunContext) SaveArtifact(filename string, a Artifact) (int, error) {
	if rc.ArtifactStore == nil {
		return 0, fmt.Errorf("artifact store not configured")
	}
	return rc.ArtifactStore.Save(rc.ArtifactScope(), filename, a)
}

// LoadArtifact retrieves the latest version of an artifact.
func (rc *RunContext) LoadArtifact(filename string) (Artifact, error) {
	if rc.ArtifactStore == nil {
		return Artifact{}, fmt.Errorf("artifact store not configured")
	}
	return rc.ArtifactStore.Get(rc.ArtifactScope(), filename)
}

// ListArtifacts returns artifact filenames visible to the session.
func (rc *RunContext) ListArtifacts() ([]string, error) {
	if rc.ArtifactStore == nil {
		return []string{}, nil
	}
	return rc.ArtifactStore.List(rc.ArtifactScope())
}

// SearchMemory queries the MemoryStore for relevant content.
func (rc *RunContext) SearchMemory(q string, limit int) ([]SearchResult, error) {
	if rc.MemoryStore == nil {
		return []SearchResult{}, nil
	}
	return rc.MemoryStore.Search(rc.SessionID, q, limit)
}

// StoreMemory appends content plus metadata to the MemoryStore.
func (rc *RunContext) StoreMemory(content string, md map[string]any) error {
	if rc.MemoryStore == nil {
		return fmt.Errorf("memory store not configured")
	}
	return rc.MemoryStore.Store(rc.SessionID, content, md)
}

// RefreshSession reloads the session snapshot from the SessionStore.
func (rc *RunContext) RefreshSession() error {
	if rc.SessionStore == nil {
		return fmt.Errorf("session store not configured")
	}

	s, err := rc.SessionStore.Get(rc.SessionID)
	if err != nil {
		return err
	}

	rc.Session = s

	return nil
}

// Confirmation returns the host-supplied resolution for a function call id,
// if any.
func (rc *RunContext) Confirmation(functionCallID string) (ToolConfirmation, bool) {
	c, ok := rc.ToolConfirmations[functionCallID]
	return c, ok
}

// WithBranch returns a shallow copy with fresh staging buffers and the given
// branch label for sub-conversation paths.
func (rc *RunContext) WithBranch(branch string) *RunContext {
	c := *rc
	c.StateDelta = map[string]any{}
	maps.Copy(c.StateDelta, rc.StateDelta)
	c.Branch = branch
	return &c
}

// EmitEvent merges the pending StateDelta into the event and emits it, then
// clears the staging buffer.
func (rc *RunContext) EmitEvent(ev Event) error {
	if len(rc.StateDelta) > 0 {
		if ev.Actions.StateDelta == nil {
			ev.Actions.StateDelta = map[string]any{}
		}
		maps.Copy(ev.Actions.StateDelta, rc.StateDelta)
	}

	if rc.Branch != "" && ev.Branch == nil {
		b := rc.Branch
		ev.Branch = &b
	}

	select {
	case <-rc.Context.Done():
		return rc.Context.Err()
	case rc.Emit <- ev:
	}

	rc.StateDelta = map[string]any{}

	return nil
}

// WaitForResume blocks until Resume signals or context cancellation.
func (rc *RunContext) WaitForResume() error {
	if rc.Resume == nil {
		return nil
	}

	select {
	case <-rc.Resume:
		return nil
	case <-rc.Context.Done():
		return rc.Context.Err()
	}
}
