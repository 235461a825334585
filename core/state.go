package core

import "strings"

// State key prefixes partition the flat key/value map into scopes with
// different persistence and visibility breadth. Unprefixed keys are
// session-scoped.
const (
	// AppStatePrefix marks keys shared across all sessions of an application.
	AppStatePrefix = "app:"
	// UserStatePrefix marks keys shared across all sessions of one user.
	UserStatePrefix = "user:"
	// TempStatePrefix marks invocation-local keys that are never persisted.
	TempStatePrefix = "temp:"
)

// StateScope identifies the scope a state key belongs to.
type StateScope int

const (
	// ScopeSession covers unprefixed, session-local keys.
	ScopeSession StateScope = iota
	// ScopeApp covers "app:" prefixed keys.
	ScopeApp
	// ScopeUser covers "user:" prefixed keys.
	ScopeUser
	// ScopeTemp covers "temp:" prefixed keys.
	ScopeTemp
)

// String returns a readable scope label.
func (s StateScope) String() string {
	switch s {
	case ScopeApp:
		return "app"
	case ScopeUser:
		return "user"
	case ScopeTemp:
		return "temp"
	default:
		return "session"
	}
}

// ScopeOf classifies a state key by its prefix. Prefixes are checked in order
// of specificity: app, user, temp, then session for everything else.
func ScopeOf(key string) StateScope {
	switch {
	case strings.HasPrefix(key, AppStatePrefix):
		return ScopeApp
	case strings.HasPrefix(key, UserStatePrefix):
		return ScopeUser
	case strings.HasPrefix(key, TempStatePrefix):
		return ScopeTemp
	default:
		return ScopeSession
	}
}

// StripTempState returns a copy of delta without "temp:" scoped keys. The
// input map is never mutated. A nil or all-temp delta yields an empty map
// rather than nil so callers can merge unconditionally.
func StripTempState(delta map[string]any) map[string]any {
	out := make(map[string]any, len(delta))
	for k, v := range delta {
		if ScopeOf(k) == ScopeTemp {
			continue
		}
		out[k] = v
	}
	return out
}

// ApplyStateDelta folds delta into state in place. A nil delta value deletes
// the key; "temp:" keys are dropped since they must never reach derived
// persisted state.
func ApplyStateDelta(state, delta map[string]any) {
	for k, v := range delta {
		if ScopeOf(k) == ScopeTemp {
			continue
		}
		if v == nil {
			delete(state, k)
			continue
		}
		state[k] = v
	}
}

// FoldStateDeltas derives state from an ordered event slice by folding every
// event's StateDelta in append order. The result contains session, app and
// user scoped keys; temp keys are excluded by construction.
func FoldStateDeltas(events []Event) map[string]any {
	state := map[string]any{}
	for _, ev := range events {
		ApplyStateDelta(state, ev.Actions.StateDelta)
	}
	return state
}
