package core

import (
	"context"
	"testing"

	"github.com/hupe1980/agentstate/logging"
)

type stubSessionStore struct{ sess *Session }

func (s *stubSessionStore) Create(appName, userID, sessionID string) (*Session, error) {
	return NewSession(sessionID, appName, userID), nil
}
func (s *stubSessionStore) Get(string) (*Session, error)     { return s.sess, nil }
func (s *stubSessionStore) AppendEvent(_ string, ev Event) error {
	s.sess.AddEvent(ev)
	return nil
}

func testRunContext(t *testing.T) *RunContext {
	t.Helper()
	sess := NewSession("sess-1", "app", "u1")
	return NewRunContext(
		context.Background(),
		"sess-1", "inv-1",
		AgentInfo{Name: "Agent", Type: "test"},
		Content{},
		0,
		make(chan Event, 8), make(chan struct{}, 1),
		sess,
		&stubSessionStore{sess: sess}, nil, nil,
		logging.NoOpLogger{},
	)
}

func TestToolContext_StateIsolation(t *testing.T) {
	runCtx := testRunContext(t)
	runCtx.Session.AddEvent(deltaEvent("inv-0", map[string]any{"shared": "base"}))

	tc1 := NewToolContext(runCtx, "fc-1")
	tc2 := NewToolContext(runCtx, "fc-2")

	tc1.SetState("shared", "from-1")

	// sibling never sees the uncommitted write
	if v, _ := tc2.GetState("shared"); v != "base" {
		t.Errorf("sibling saw uncommitted delta: %v", v)
	}
	// session state untouched until merge
	if v, _ := runCtx.Session.GetState("shared"); v != "base" {
		t.Errorf("session mutated directly: %v", v)
	}
	// writer reads its own delta
	if v, _ := tc1.GetState("shared"); v != "from-1" {
		t.Errorf("writer does not see own delta: %v", v)
	}
}

func TestToolContext_DeleteStateShadowsSession(t *testing.T) {
	runCtx := testRunContext(t)
	runCtx.Session.AddEvent(deltaEvent("inv-0", map[string]any{"k": "v"}))

	tc := NewToolContext(runCtx, "fc-1")
	tc.DeleteState("k")

	if _, ok := tc.GetState("k"); ok {
		t.Error("deleted key still visible through tool context")
	}
	if _, ok := runCtx.Session.GetState("k"); !ok {
		t.Error("session must keep the key until the delta commits")
	}
}

func TestToolContext_RequestConfirmation(t *testing.T) {
	tc := NewToolContext(testRunContext(t), "fc-1")
	tc.RequestConfirmation("needs approval", map[string]any{"why": "dangerous"})

	a := tc.Actions()
	c, ok := a.RequestedToolConfirmations["fc-1"]
	if !ok {
		t.Fatal("confirmation not keyed by call id")
	}
	if c.Confirmed {
		t.Error("pending confirmations start unconfirmed")
	}
	if c.Hint != "needs approval" {
		t.Errorf("unexpected hint: %q", c.Hint)
	}
	if a.SkipSummarization == nil || !*a.SkipSummarization {
		t.Error("confirmation requests imply skip summarization")
	}
}

func TestToolContext_ConfirmationLookup(t *testing.T) {
	runCtx := testRunContext(t)
	runCtx.ToolConfirmations["fc-1"] = ToolConfirmation{Confirmed: true}

	tc := NewToolContext(runCtx, "fc-1")
	if c, ok := tc.Confirmation(); !ok || !c.Confirmed {
		t.Error("expected approved resolution for own call id")
	}

	other := NewToolContext(runCtx, "fc-2")
	if _, ok := other.Confirmation(); ok {
		t.Error("resolution must be scoped to the call id")
	}
}

func TestToolContext_InternalMergeActions(t *testing.T) {
	runCtx := testRunContext(t)

	tc1 := NewToolContext(runCtx, "fc-1")
	tc1.SetState("a", 1)
	tc1.RequestCredential(map[string]any{"scheme": "basic"})

	tc2 := NewToolContext(runCtx, "fc-2")
	tc2.SetState("a", 2)
	tc2.SetState("b", 3)
	tc2.TransferToAgent("other")

	ev := NewEvent("inv-1", "tool")
	tc1.InternalMergeActions(&ev)
	tc2.InternalMergeActions(&ev)

	if ev.Actions.StateDelta["a"] != 2 || ev.Actions.StateDelta["b"] != 3 {
		t.Errorf("merge result wrong: %v", ev.Actions.StateDelta)
	}
	if _, ok := ev.Actions.RequestedAuthConfigs["fc-1"]; !ok {
		t.Error("auth request lost in merge")
	}
	if ev.Actions.TransferToAgent == nil || *ev.Actions.TransferToAgent != "other" {
		t.Error("transfer lost in merge")
	}
}

func TestRunContext_EmitEventMergesStagedDelta(t *testing.T) {
	sess := NewSession("sess-1", "app", "u1")
	emit := make(chan Event, 1)
	runCtx := NewRunContext(
		context.Background(),
		"sess-1", "inv-1",
		AgentInfo{Name: "Agent", Type: "test"},
		Content{},
		0,
		emit, make(chan struct{}, 1),
		sess,
		&stubSessionStore{sess: sess}, nil, nil,
		logging.NoOpLogger{},
	)
	runCtx.SetState("staged", "yes")

	ev := NewMessageEvent("Agent", "done")
	if err := runCtx.EmitEvent(ev); err != nil {
		t.Fatalf("emit failed: %v", err)
	}

	got := <-emit
	if got.Actions.StateDelta["staged"] != "yes" {
		t.Errorf("staged delta not merged: %v", got.Actions.StateDelta)
	}
	if len(runCtx.StateDelta) != 0 {
		t.Error("staging buffer not cleared after emit")
	}
}
