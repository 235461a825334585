package testutil

import (
	"time"

	"github.com/hupe1980/agentstate/core"
)

// EventBuilder provides a fluent helper for constructing events in tests.
// Example:
//
//	ev := NewEventBuilder().Author("agent").Invocation("inv-1").AssistantText("hello").Build()
//
// Chain only the parts you need; sensible defaults are applied.
type EventBuilder struct {
	author       string
	invocationID string
	id           string
	role         string
	timestamp    *time.Time
	textParts    []string
	customParts  []core.Part
	actions      core.EventActions
	partial      *bool
}

// NewEventBuilder creates a builder with default author "agent".
func NewEventBuilder() *EventBuilder { return &EventBuilder{author: "agent"} }

// Author sets the author name for the event (chainable).
func (b *EventBuilder) Author(a string) *EventBuilder { b.author = a; return b }

// Invocation sets the invocation ID associated with the event (chainable).
func (b *EventBuilder) Invocation(id string) *EventBuilder { b.invocationID = id; return b }

// ID overrides the auto-generated event ID (chainable).
func (b *EventBuilder) ID(id string) *EventBuilder { b.id = id; return b }

// At pins the event timestamp, useful for compaction range tests (chainable).
func (b *EventBuilder) At(ts time.Time) *EventBuilder { b.timestamp = &ts; return b }

// Partial marks the event as a streaming / partial chunk (chainable).
func (b *EventBuilder) Partial(p bool) *EventBuilder { b.partial = &p; return b }

// UserText appends a user role text part and sets role to user (chainable).
func (b *EventBuilder) UserText(t string) *EventBuilder {
	b.role = "user"
	b.textParts = append(b.textParts, t)
	return b
}

// AssistantText appends an assistant role text part and sets role to assistant (chainable).
func (b *EventBuilder) AssistantText(t string) *EventBuilder {
	b.role = "assistant"
	b.textParts = append(b.textParts, t)
	return b
}

// AddPart appends a custom content part (chainable).
func (b *EventBuilder) AddPart(p core.Part) *EventBuilder {
	b.customParts = append(b.customParts, p)
	return b
}

// StateDelta merges key/value pairs into the event's state delta (chainable).
func (b *EventBuilder) StateDelta(delta map[string]any) *EventBuilder {
	if b.actions.StateDelta == nil {
		b.actions.StateDelta = map[string]any{}
	}
	for k, v := range delta {
		b.actions.StateDelta[k] = v
	}
	return b
}

// ArtifactDelta merges filename/version pairs into the event's artifact delta (chainable).
func (b *EventBuilder) ArtifactDelta(delta map[string]int) *EventBuilder {
	if b.actions.ArtifactDelta == nil {
		b.actions.ArtifactDelta = map[string]int{}
	}
	for k, v := range delta {
		b.actions.ArtifactDelta[k] = v
	}
	return b
}

// RewindBefore marks the event as a rewind marker targeting an invocation (chainable).
func (b *EventBuilder) RewindBefore(invocationID string) *EventBuilder {
	b.author = "user"
	b.actions.RewindBeforeInvocationID = &invocationID
	return b
}

// Compaction marks the event as a compaction covering [start, end] (chainable).
func (b *EventBuilder) Compaction(start, end time.Time, summary string) *EventBuilder {
	b.actions.Compaction = &core.EventCompaction{
		StartTimestamp: start,
		EndTimestamp:   end,
		CompactedContent: &core.Content{
			Role:  "assistant",
			Parts: []core.Part{core.TextPart{Text: summary}},
		},
	}
	return b
}

// Build materializes the event.
func (b *EventBuilder) Build() core.Event {
	ev := core.NewEvent(b.invocationID, b.author)
	if b.id != "" {
		ev.ID = b.id
	}
	if b.timestamp != nil {
		ev.Timestamp = *b.timestamp
	}
	ev.Actions = b.actions
	ev.Partial = b.partial

	parts := make([]core.Part, 0, len(b.textParts)+len(b.customParts))
	for _, t := range b.textParts {
		parts = append(parts, core.TextPart{Text: t})
	}
	parts = append(parts, b.customParts...)

	if len(parts) > 0 {
		role := b.role
		if role == "" {
			role = "assistant"
		}
		ev.Content = &core.Content{Role: role, Parts: parts}
	}

	return ev
}
