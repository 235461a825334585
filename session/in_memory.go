package session

import (
	"sync"

	"github.com/hupe1980/agentstate/core"
)

// InMemoryStore is a volatile SessionStore implementation storing sessions in
// a process local map. It is safe for concurrent access. Each returned
// session is cloned to prevent external mutation of internal state, with the
// app- and user-shared scopes overlaid into the clone's derived state so a
// session observes "app:" / "user:" keys written by sibling sessions.
type InMemoryStore struct {
	mu        sync.RWMutex
	sessions  map[string]*core.Session
	appState  map[string]map[string]any // appName -> key -> value
	userState map[string]map[string]any // appName/userID -> key -> value
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions:  make(map[string]*core.Session),
		appState:  make(map[string]map[string]any),
		userState: make(map[string]map[string]any),
	}
}

// Create allocates a new session for the given app and user. An empty
// sessionID is replaced by a generated id. An existing session with the same
// id is overwritten.
func (s *InMemoryStore) Create(appName, userID, sessionID string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sessionID == "" {
		sessionID = core.NewID()
	}

	sess := core.NewSession(sessionID, appName, userID)
	s.sessions[sessionID] = sess

	return s.overlayLocked(sess), nil
}

// Get returns a clone of an existing session with shared scopes overlaid, or
// core.ErrSessionNotFound.
func (s *InMemoryStore) Get(sessionID string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, core.ErrSessionNotFound
	}

	return s.overlayLocked(sess), nil
}

// AppendEvent adds an event to an existing session, folding the event's state
// delta into the session and routing "app:" / "user:" keys into the shared
// scope maps. "temp:" keys never persist. Partial streaming fragments are
// appended as-is; the caller decides whether to persist them.
func (s *InMemoryStore) AppendEvent(sessionID string, ev core.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return core.ErrSessionNotFound
	}

	for k, v := range ev.Actions.StateDelta {
		switch core.ScopeOf(k) {
		case core.ScopeApp:
			s.applyShared(s.appState, sess.AppName, k, v)
		case core.ScopeUser:
			s.applyShared(s.userState, userKey(sess.AppName, sess.UserID), k, v)
		}
	}

	sess.AddEvent(ev)

	return nil
}

// applyShared folds one key into a shared scope bucket, honoring nil deletes.
func (s *InMemoryStore) applyShared(bucket map[string]map[string]any, owner, key string, value any) {
	m, ok := bucket[owner]
	if !ok {
		if value == nil {
			return
		}
		m = make(map[string]any)
		bucket[owner] = m
	}
	if value == nil {
		delete(m, key)
		return
	}
	m[key] = value
}

// overlayLocked clones the session and merges shared scope keys into the
// clone's state view. Caller must hold at least the read lock.
func (s *InMemoryStore) overlayLocked(sess *core.Session) *core.Session {
	clone := sess.Clone()
	for k, v := range s.appState[sess.AppName] {
		clone.State[k] = v
	}
	for k, v := range s.userState[userKey(sess.AppName, sess.UserID)] {
		clone.State[k] = v
	}
	return clone
}

func userKey(appName, userID string) string { return appName + "/" + userID }
