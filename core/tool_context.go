package core

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentstate/logging"
)

// ToolContext provides a constrained, auditable surface for tool / function
// implementations invoked within a model turn. It accumulates EventActions
// (state deltas, artifact versions, confirmation/credential requests, transfer
// and escalation signals) in a buffer private to one function call.
//
// Isolation contract: concurrently executing sibling tool calls each own
// their ToolContext; nothing here writes through to the session or to the
// RunContext staging buffer. The orchestrator merges all per-call buffers
// into one event after the batch completes, so a failing or slow sibling can
// never corrupt another call's delta.
type ToolContext struct {
	runCtx         *RunContext
	functionCallID string
	agentInfo      AgentInfo
	eventActions   EventActions

	*loggerAdapter
}

// NewToolContext constructs a tool context bound to a parent RunContext and
// unique functionCallID.
func NewToolContext(runCtx *RunContext, functionCallID string) *ToolContext {
	return &ToolContext{
		runCtx:         runCtx,
		functionCallID: functionCallID,
		agentInfo:      runCtx.Agent,
		eventActions:   EventActions{},
		loggerAdapter:  newLoggerAdapter(runCtx.Logger()),
	}
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.runCtx.Context }

// SessionID returns the session ID associated with the tool invocation.
func (tc *ToolContext) SessionID() string { return tc.runCtx.SessionID }

// InvocationID returns the invocation ID associated with the tool invocation.
func (tc *ToolContext) InvocationID() string { return tc.runCtx.InvocationID }

// Logger returns the logger associated with the tool invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.loggerAdapter.Logger() }

// FunctionCallID returns the function call ID associated with the tool
// invocation.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// AgentName returns the agent name associated with the tool invocation.
func (tc *ToolContext) AgentName() string { return tc.agentInfo.Name }

// GetState reads a key, preferring this call's own staged delta, then the
// derived session state.
func (tc *ToolContext) GetState(k string) (any, bool) {
	if v, ok := tc.eventActions.StateDelta[k]; ok {
		if v == nil {
			return nil, false
		}
		return v, true
	}
	if tc.runCtx.Session != nil {
		return tc.runCtx.Session.GetState(k)
	}
	return nil, false
}

// SetState records a state mutation in this call's private delta buffer. The
// mutation becomes visible to the session only when the orchestrator merges
// the buffer into the batch's response event.
func (tc *ToolContext) SetState(k string, v any) {
	if tc.eventActions.StateDelta == nil {
		tc.eventActions.StateDelta = map[string]any{}
	}
	tc.eventActions.StateDelta[k] = v
}

// DeleteState records a deletion (nil delta value) for a key.
func (tc *ToolContext) DeleteState(k string) { tc.SetState(k, nil) }

// Actions returns the event actions accumulated in the tool context.
func (tc *ToolContext) Actions() *EventActions { return &tc.eventActions }

// SkipSummarization requests that post-processing summarization be bypassed
// for the originating event.
func (tc *ToolContext) SkipSummarization() {
	b := true
	if tc.eventActions.SkipSummarization == nil {
		tc.eventActions.SkipSummarization = &b
	}
}

// RequestConfirmation records a pending confirmation for this call, keyed by
// its function call id. The orchestrator surfaces it to the host via a
// synthetic request event; the call is expected to return an error-shaped
// result for this turn.
func (tc *ToolContext) RequestConfirmation(hint string, payload map[string]any) {
	if tc.eventActions.RequestedToolConfirmations == nil {
		tc.eventActions.RequestedToolConfirmations = map[string]ToolConfirmation{}
	}
	tc.eventActions.RequestedToolConfirmations[tc.functionCallID] = ToolConfirmation{
		Confirmed: false,
		Hint:      hint,
		Payload:   payload,
	}
	tc.SkipSummarization()
}

// Confirmation returns the host-supplied resolution for this call, if any.
func (tc *ToolContext) Confirmation() (ToolConfirmation, bool) {
	return tc.runCtx.Confirmation(tc.functionCallID)
}

// RequestCredential records a pending auth request for this call. authConfig
// is an opaque payload the host surface knows how to render.
func (tc *ToolContext) RequestCredential(authConfig any) {
	if tc.eventActions.RequestedAuthConfigs == nil {
		tc.eventActions.RequestedAuthConfigs = map[string]any{}
	}
	tc.eventActions.RequestedAuthConfigs[tc.functionCallID] = authConfig
	tc.SkipSummarization()
}

// TransferToAgent signals orchestration to handoff control to another agent.
func (tc *ToolContext) TransferToAgent(name string) {
	tc.eventActions.TransferToAgent = &name
	tc.LogInfo("tool.transfer.request", "from_agent", tc.AgentName(), "to_agent", name, "function_call_id", tc.functionCallID)
}

// Escalate requests escalation (e.g., to a higher-skill agent or human).
func (tc *ToolContext) Escalate() {
	b := true
	if tc.eventActions.Escalate == nil {
		tc.eventActions.Escalate = &b
	}

	tc.LogInfo("tool.escalate.request", "agent", tc.AgentName(), "function_call_id", tc.functionCallID)
}

// SaveArtifact appends a new version of the artifact and records the version
// number in this call's ArtifactDelta for emission.
func (tc *ToolContext) SaveArtifact(filename string, a Artifact) (int, error) {
	if tc.runCtx.ArtifactStore == nil {
		return 0, fmt.Errorf("artifact store not configured")
	}

	version, err := tc.runCtx.ArtifactStore.Save(tc.runCtx.ArtifactScope(), filename, a)
	if err != nil {
		return 0, err
	}

	if tc.eventActions.ArtifactDelta == nil {
		tc.eventActions.ArtifactDelta = map[string]int{}
	}
	tc.eventActions.ArtifactDelta[filename] = version

	return version, nil
}

// LoadArtifact retrieves the latest version of a persisted artifact.
func (tc *ToolContext) LoadArtifact(filename string) (Artifact, error) {
	if tc.runCtx.ArtifactStore == nil {
		return Artifact{}, fmt.Errorf("artifact store not configured")
	}
	return tc.runCtx.ArtifactStore.Get(tc.runCtx.ArtifactScope(), filename)
}

// LoadArtifactVersion retrieves one specific version of an artifact.
func (tc *ToolContext) LoadArtifactVersion(filename string, version int) (Artifact, error) {
	if tc.runCtx.ArtifactStore == nil {
		return Artifact{}, fmt.Errorf("artifact store not configured")
	}
	return tc.runCtx.ArtifactStore.GetVersion(tc.runCtx.ArtifactScope(), filename, version)
}

// ListArtifacts returns artifact filenames visible to the session.
func (tc *ToolContext) ListArtifacts() ([]string, error) {
	if tc.runCtx.ArtifactStore == nil {
		return nil, fmt.Errorf("artifact store not configured")
	}
	return tc.runCtx.ArtifactStore.List(tc.runCtx.ArtifactScope())
}

// SearchMemory performs a recall query against the configured MemoryStore.
func (tc *ToolContext) SearchMemory(q string, limit int) ([]SearchResult, error) {
	if tc.runCtx.MemoryStore == nil {
		return nil, fmt.Errorf("memory store not configured")
	}
	return tc.runCtx.MemoryStore.Search(tc.SessionID(), q, limit)
}

// StoreMemory appends new content to the session's memory store with metadata.
func (tc *ToolContext) StoreMemory(content string, md map[string]any) error {
	if tc.runCtx.MemoryStore == nil {
		return fmt.Errorf("memory store not configured")
	}
	return tc.runCtx.MemoryStore.Store(tc.SessionID(), content, md)
}

// GetSessionHistory returns conversation history (filtered) for context.
func (tc *ToolContext) GetSessionHistory() []Event {
	if tc.runCtx.Session == nil {
		return nil
	}
	return tc.runCtx.Session.GetConversationHistory()
}

// Validate performs a structural sanity check of the context.
func (tc *ToolContext) Validate() error {
	if tc.runCtx == nil || tc.runCtx.SessionID == "" || tc.functionCallID == "" {
		return fmt.Errorf("invalid ToolContext")
	}
	return nil
}

// InternalRunContext returns the parent run context. Used by the orchestrator
// and tests; tools should not need it.
func (tc *ToolContext) InternalRunContext() *RunContext { return tc.runCtx }

// InternalMergeActions merges this call's accumulated EventActions into the
// provided event. State keys merge last-writer-wins; maps are unioned. Used
// by the orchestrator when constructing the batch response event.
func (tc *ToolContext) InternalMergeActions(ev *Event) {
	a := &tc.eventActions

	if len(a.StateDelta) > 0 {
		if ev.Actions.StateDelta == nil {
			ev.Actions.StateDelta = map[string]any{}
		}
		for k, v := range a.StateDelta {
			ev.Actions.StateDelta[k] = v
		}
	}

	if len(a.ArtifactDelta) > 0 {
		if ev.Actions.ArtifactDelta == nil {
			ev.Actions.ArtifactDelta = map[string]int{}
		}
		for k, v := range a.ArtifactDelta {
			ev.Actions.ArtifactDelta[k] = v
		}
	}

	if len(a.RequestedToolConfirmations) > 0 {
		if ev.Actions.RequestedToolConfirmations == nil {
			ev.Actions.RequestedToolConfirmations = map[string]ToolConfirmation{}
		}
		for k, v := range a.RequestedToolConfirmations {
			ev.Actions.RequestedToolConfirmations[k] = v
		}
	}

	if len(a.RequestedAuthConfigs) > 0 {
		if ev.Actions.RequestedAuthConfigs == nil {
			ev.Actions.RequestedAuthConfigs = map[string]any{}
		}
		for k, v := range a.RequestedAuthConfigs {
			ev.Actions.RequestedAuthConfigs[k] = v
		}
	}

	if a.SkipSummarization != nil {
		ev.Actions.SkipSummarization = a.SkipSummarization
	}

	if a.TransferToAgent != nil {
		ev.Actions.TransferToAgent = a.TransferToAgent
		tc.LogInfo("tool.transfer.applied", "from_agent", tc.AgentName(), "to_agent", *a.TransferToAgent, "function_call_id", tc.functionCallID)
	}

	if a.Escalate != nil {
		ev.Actions.Escalate = a.Escalate
		tc.LogInfo("tool.escalate.applied", "agent", tc.AgentName(), "function_call_id", tc.functionCallID)
	}
}
