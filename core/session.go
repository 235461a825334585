package core

import (
	"sync"
	"time"
)

// Session is a conversational container owning an ordered, append-only event
// log and the key/value state derived from it. It is safe for concurrent
// access.
//
// Contract:
//   - AddEvent is the only mutator; it folds the event's StateDelta into the
//     derived State (nil deletes, temp keys dropped) and preserves insertion
//     order
//   - GetEvents returns a defensive copy to avoid external mutation
//   - EffectiveEvents (effective.go) is the rewind/compaction filtered view
//     used for model context assembly; GetEvents stays raw for audit
//   - Clone performs deep copies of maps/slices for safe divergence
type Session struct {
	ID             string         `json:"id"`
	AppName        string         `json:"app_name"`
	UserID         string         `json:"user_id"`
	State          map[string]any `json:"state"`
	Events         []Event        `json:"events"`
	LastUpdateTime time.Time      `json:"last_update_time"`
	mu             sync.RWMutex
}

// NewSession creates an empty session owned by the given app and user.
func NewSession(id, appName, userID string) *Session {
	return &Session{
		ID:             id,
		AppName:        appName,
		UserID:         userID,
		State:          map[string]any{},
		Events:         []Event{},
		LastUpdateTime: time.Now().UTC(),
	}
}

// AddEvent appends an event to the log and folds its StateDelta into derived
// State. The artifact delta is kept on the event for audit only; artifact
// bytes live in the ArtifactStore.
func (s *Session) AddEvent(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, ev)
	ApplyStateDelta(s.State, ev.Actions.StateDelta)
	s.LastUpdateTime = time.Now().UTC()
}

// GetState returns the derived value and existence flag for a state key.
func (s *Session) GetState(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.State[key]
	return v, ok
}

// StateSnapshot returns a shallow copy of the full derived state map.
func (s *Session) StateSnapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.State))
	for k, v := range s.State {
		out[k] = v
	}
	return out
}

// StateAt derives the state as it was immediately before event index idx,
// i.e. the fold of deltas of Events[:idx]. Used by the rewind engine to
// compute the pre-target snapshot.
func (s *Session) StateAt(idx int) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx > len(s.Events) {
		idx = len(s.Events)
	}
	return FoldStateDeltas(s.Events[:idx])
}

// GetEvents returns a defensive copy of the full raw event slice, including
// events hidden by rewinds and ranges covered by compactions.
func (s *Session) GetEvents() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := make([]Event, len(s.Events))
	copy(events, s.Events)
	return events
}

// FirstEventIndex returns the index of the first event carrying the given
// invocation id, or -1 when the invocation never produced an event.
func (s *Session) FirstEventIndex(invocationID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i, ev := range s.Events {
		if ev.InvocationID == invocationID {
			return i
		}
	}
	return -1
}

// GetConversationHistory returns raw events suitable for providing
// conversational context (user/assistant/tool roles, no partial fragments).
// Unlike EffectiveEvents it ignores rewind and compaction markers; prefer
// EffectiveEvents for model context assembly.
func (s *Session) GetConversationHistory() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	allowed := map[string]bool{"user": true, "assistant": true, "tool": true}
	res := make([]Event, 0, len(s.Events))
	for _, ev := range s.Events {
		if ev.Content == nil || !allowed[ev.Content.Role] {
			continue
		}
		if ev.IsPartial() {
			continue
		}
		res = append(res, ev)
	}
	return res
}

// Clone returns a deep copy of the session safe for independent mutation.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := &Session{
		ID:             s.ID,
		AppName:        s.AppName,
		UserID:         s.UserID,
		State:          make(map[string]any, len(s.State)),
		Events:         make([]Event, len(s.Events)),
		LastUpdateTime: s.LastUpdateTime,
	}
	for k, v := range s.State {
		clone.State[k] = v
	}
	copy(clone.Events, s.Events)
	return clone
}

// ArtifactScope returns the artifact addressing scope for this session.
func (s *Session) ArtifactScope() ArtifactScope {
	return ArtifactScope{AppName: s.AppName, UserID: s.UserID, SessionID: s.ID}
}

// SessionStore persists sessions and their evolving state / event history.
// Implementations must preserve append order and be the sole writer of
// persisted state; AppendEvent is the only mutation entry point.
type SessionStore interface {
	Create(appName, userID, sessionID string) (*Session, error)
	Get(sessionID string) (*Session, error)
	AppendEvent(sessionID string, event Event) error
}
