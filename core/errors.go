package core

import "errors"

var (
	// ErrSessionNotFound is returned when an operation references a session id
	// unknown to the SessionStore.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvocationNotFound is returned by the rewind engine when no event in
	// the session log carries the requested target invocation id.
	ErrInvocationNotFound = errors.New("invocation not found")

	// ErrCompactionDisabled is returned when compaction is requested but no
	// summarizer has been configured.
	ErrCompactionDisabled = errors.New("compaction disabled: no summarizer configured")
)
