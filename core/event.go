package core

import (
	"time"

	"github.com/google/uuid"
)

// Function call names used on synthetic events that pause the conversation
// until the host supplies a resolution (see flow.FunctionExecutor).
const (
	// RequestConfirmationFunctionName is the synthetic call asking the host
	// surface to confirm or reject a gated tool call.
	RequestConfirmationFunctionName = "request_confirmation"
	// RequestCredentialFunctionName is the synthetic call asking the host
	// surface to collect credentials for a tool call.
	RequestCredentialFunctionName = "request_credential"
)

// ToolConfirmation is the paused control-flow state of a gated tool call.
// A pending request has Confirmed == false and is keyed by function call id in
// EventActions.RequestedToolConfirmations; the host resolves it by supplying
// a ToolConfirmation for the same call id on a later invocation.
type ToolConfirmation struct {
	Confirmed bool           `json:"confirmed"`         // Approval decision (false while pending or rejected)
	Hint      string         `json:"hint,omitempty"`    // Human-readable reason the tool wants confirmation
	Payload   map[string]any `json:"payload,omitempty"` // Optional structured context for the host surface
}

// EventCompaction summarizes a contiguous range of events. The raw events
// stay in the log; context assembly substitutes CompactedContent for every
// event whose timestamp falls inside [StartTimestamp, EndTimestamp].
type EventCompaction struct {
	StartTimestamp   time.Time `json:"start_timestamp"`
	EndTimestamp     time.Time `json:"end_timestamp"`
	CompactedContent *Content  `json:"compacted_content"`
}

// Covers reports whether ts falls inside the compacted range (inclusive).
func (c EventCompaction) Covers(ts time.Time) bool {
	return !ts.Before(c.StartTimestamp) && !ts.After(c.EndTimestamp)
}

// EventActions encodes side-effects or orchestration signals attached to an
// Event. All fields are optional pointers / maps so absence can be
// distinguished from zero values. Deltas are applied when the event is
// appended to the session log; the remaining fields are interpreted by the
// runner, the rewind engine and the visibility filter.
type EventActions struct {
	SkipSummarization          *bool                       `json:"skip_summarization,omitempty"`
	StateDelta                 map[string]any              `json:"state_delta,omitempty"`
	ArtifactDelta              map[string]int              `json:"artifact_delta,omitempty"`
	TransferToAgent            *string                     `json:"transfer_to_agent,omitempty"`
	Escalate                   *bool                       `json:"escalate,omitempty"`
	RequestedAuthConfigs       map[string]any              `json:"requested_auth_configs,omitempty"`
	RequestedToolConfirmations map[string]ToolConfirmation `json:"requested_tool_confirmations,omitempty"`

	// RewindBeforeInvocationID is present only on rewind-marker events. It
	// names the invocation whose effects (and everything after) this marker
	// hides from effective visibility.
	RewindBeforeInvocationID *string `json:"rewind_before_invocation_id,omitempty"`

	// Compaction is present only on compaction events.
	Compaction *EventCompaction `json:"compaction,omitempty"`
}

// IsRewind reports whether these actions mark a rewind event.
func (a EventActions) IsRewind() bool { return a.RewindBeforeInvocationID != nil }

// IsCompaction reports whether these actions mark a compaction event.
func (a EventActions) IsCompaction() bool { return a.Compaction != nil }

// Event is the atomic, immutable unit of session history. It captures
// correlation (ID, InvocationID, Author), conversational content (role-based
// parts), orchestration directives (Actions), streaming flags and a UTC
// timestamp. The log never reorders or deletes events; corrections are
// expressed as new events.
type Event struct {
	ID           string            `json:"id"`
	InvocationID string            `json:"invocation_id"`
	Author       string            `json:"author"`
	Actions      EventActions      `json:"actions"`
	Branch       *string           `json:"branch,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
	Content      *Content          `json:"content,omitempty"`
	Partial      *bool             `json:"partial,omitempty"`
	TurnComplete *bool             `json:"turn_complete,omitempty"`

	// LongRunningToolIDs lists function call ids whose tools keep running
	// after the response event, so IsFinalResponse treats them as terminal.
	LongRunningToolIDs []string `json:"long_running_tool_ids,omitempty"`

	CustomMetadata map[string]string `json:"custom_metadata,omitempty"`
}

// NewEvent creates a bare event authored by 'author' bound to an invocation.
// Prefer the semantic constructors below for common event categories.
func NewEvent(invocationID, author string) Event {
	return Event{
		ID:           NewID(),
		InvocationID: invocationID,
		Author:       author,
		Timestamp:    time.Now().UTC(),
		Actions:      EventActions{},
	}
}

// NewUserMessageEvent creates a user-authored text message event.
func NewUserMessageEvent(invocationID, message string) Event {
	e := NewEvent(invocationID, "user")
	e.Content = &Content{Role: "user", Parts: []Part{TextPart{Text: message}}}
	return e
}

// NewUserContentEvent creates a user-authored event with arbitrary Content,
// for inputs that are not a simple text message.
func NewUserContentEvent(invocationID string, content *Content) Event {
	e := NewEvent(invocationID, "user")
	e.Content = content
	return e
}

// NewMessageEvent creates an assistant-style message event with a single text
// part. Author can be an agent name or system identifier.
func NewMessageEvent(author, message string) Event {
	e := NewEvent("", author)
	e.Content = &Content{Role: "assistant", Parts: []Part{TextPart{Text: message}}}
	return e
}

// NewFunctionCallEvent represents an agent requesting execution of a named
// function/tool.
func NewFunctionCallEvent(author, functionName, args string) Event {
	e := NewEvent("", author)
	e.Content = &Content{
		Role: "assistant",
		Parts: []Part{
			FunctionCallPart{
				FunctionCall: FunctionCall{
					ID:        NewID(),
					Name:      functionName,
					Arguments: args,
				},
			},
		},
	}
	return e
}

// NewRewindEvent constructs the user-authored marker event appended by the
// rewind engine. stateDelta and artifactDelta are the corrective deltas that
// make derived state/artifacts match the pre-target snapshot.
func NewRewindEvent(targetInvocationID string, stateDelta map[string]any, artifactDelta map[string]int) Event {
	e := NewEvent(NewID(), "user")
	e.Actions.RewindBeforeInvocationID = &targetInvocationID
	e.Actions.StateDelta = stateDelta
	e.Actions.ArtifactDelta = artifactDelta
	return e
}

// NewCompactionEvent constructs the event appended by the compaction engine
// for the range [start, end] summarized into content.
func NewCompactionEvent(author string, start, end time.Time, content *Content) Event {
	e := NewEvent(NewID(), author)
	e.Actions.Compaction = &EventCompaction{
		StartTimestamp:   start,
		EndTimestamp:     end,
		CompactedContent: content,
	}
	return e
}

// NewID generates a new unique identifier for events and invocations.
func NewID() string { return uuid.NewString() }

// IsPartial reports whether this event represents a streaming / incomplete
// fragment that will be followed by additional events composing the final
// assistant turn.
func (e Event) IsPartial() bool { return e.Partial != nil && *e.Partial }

// GetFunctionCalls returns any FunctionCall parts contained within the event
// content preserving their original order.
func (e Event) GetFunctionCalls() []FunctionCall {
	if e.Content == nil {
		return nil
	}
	var calls []FunctionCall
	for _, p := range e.Content.Parts {
		if fc, ok := p.(FunctionCallPart); ok {
			calls = append(calls, fc.FunctionCall)
		}
	}
	return calls
}

// GetFunctionResponses returns any FunctionResponse parts contained within the
// event content preserving their original order.
func (e Event) GetFunctionResponses() []FunctionResponse {
	if e.Content == nil {
		return nil
	}
	var responses []FunctionResponse
	for _, p := range e.Content.Parts {
		if fr, ok := p.(FunctionResponsePart); ok {
			responses = append(responses, fr.FunctionResponse)
		}
	}
	return responses
}

// IsFinalResponse implements the heuristic used by higher layers to decide
// when an assistant turn is complete (no pending tool calls/responses, not
// partial, not awaiting a skipped summarization).
func (e Event) IsFinalResponse() bool {
	if (e.Actions.SkipSummarization != nil && *e.Actions.SkipSummarization) || len(e.LongRunningToolIDs) > 0 {
		return true
	}

	return len(e.GetFunctionCalls()) == 0 &&
		len(e.GetFunctionResponses()) == 0 &&
		!e.IsPartial()
}

// UnixSeconds returns the timestamp as fractional seconds since Unix epoch.
// Useful for metrics & numeric serialization paths.
func (e Event) UnixSeconds() float64 { return float64(e.Timestamp.UnixNano()) / 1e9 }
