// Package runner drives complete invocations: it appends the user input to
// the session, executes the agent against a RunContext, persists every
// non-partial emitted event (folding its state delta), streams events to the
// caller and triggers history compaction when an invocation completes.
package runner
