package testutil

import (
	"github.com/hupe1980/agentstate/core"
)

// SessionBuilder helps construct sessions with fluent chaining for tests.
// Example:
//
//	sess := NewSessionBuilder("sess-1").Events(ev1, ev2).Build()
//
// Events are appended through Session.AddEvent so derived state matches what
// production code would compute.
type SessionBuilder struct {
	id      string
	appName string
	userID  string
	events  []core.Event
}

// NewSessionBuilder creates a new builder with default app/user identifiers.
func NewSessionBuilder(id string) *SessionBuilder {
	return &SessionBuilder{id: id, appName: "test-app", userID: "test-user"}
}

// App sets the owning application name (chainable).
func (b *SessionBuilder) App(name string) *SessionBuilder { b.appName = name; return b }

// User sets the owning user id (chainable).
func (b *SessionBuilder) User(id string) *SessionBuilder { b.userID = id; return b }

// Event appends a single event to the session history (chainable).
func (b *SessionBuilder) Event(ev core.Event) *SessionBuilder {
	b.events = append(b.events, ev)
	return b
}

// Events appends multiple events to the session history (chainable).
func (b *SessionBuilder) Events(evs ...core.Event) *SessionBuilder {
	b.events = append(b.events, evs...)
	return b
}

// Build returns a *core.Session with derived state folded from the events.
func (b *SessionBuilder) Build() *core.Session {
	s := core.NewSession(b.id, b.appName, b.userID)
	for _, ev := range b.events {
		s.AddEvent(ev)
	}
	return s
}
