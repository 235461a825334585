// Package core defines the conversational state model shared by every other
// package in agentstate: immutable Events carrying action payloads, scoped
// key/value State derived from the event log, Sessions as append-only event
// containers, and the store interfaces (session, artifact, memory) that
// concrete backends implement.
//
// The central invariant is event sourcing: a Session's State is never written
// directly. Every mutation travels as a StateDelta attached to an Event, and
// derived State is the in-order fold of all deltas, with nil values acting as
// deletes. Rewind and compaction never remove history; they append marker
// events that the visibility filter (Session.EffectiveEvents) interprets when
// assembling model context.
package core
