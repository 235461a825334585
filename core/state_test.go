package core

import (
	"testing"
)

func TestScopeOf(t *testing.T) {
	cases := []struct {
		key  string
		want StateScope
	}{
		{"color", ScopeSession},
		{"app:theme", ScopeApp},
		{"user:locale", ScopeUser},
		{"temp:scratch", ScopeTemp},
		{"", ScopeSession},
	}
	for _, c := range cases {
		if got := ScopeOf(c.key); got != c.want {
			t.Errorf("ScopeOf(%q) = %v, want %v", c.key, got, c.want)
		}
	}
}

func TestApplyStateDelta_NilDeletes(t *testing.T) {
	state := map[string]any{"a": 1, "b": 2}
	ApplyStateDelta(state, map[string]any{"a": nil, "c": 3})

	if _, ok := state["a"]; ok {
		t.Error("nil delta value should delete the key")
	}
	if state["b"] != 2 || state["c"] != 3 {
		t.Errorf("unexpected state: %v", state)
	}
}

func TestApplyStateDelta_TempNeverPersisted(t *testing.T) {
	state := map[string]any{}
	ApplyStateDelta(state, map[string]any{"temp:scratch": "x", "keep": "y"})

	if _, ok := state["temp:scratch"]; ok {
		t.Error("temp: keys must not be folded into state")
	}
	if state["keep"] != "y" {
		t.Errorf("unexpected state: %v", state)
	}
}

func TestStripTempState(t *testing.T) {
	in := map[string]any{"temp:a": 1, "b": 2}
	out := StripTempState(in)

	if _, ok := out["temp:a"]; ok {
		t.Error("temp key survived stripping")
	}
	if out["b"] != 2 {
		t.Errorf("unexpected output: %v", out)
	}
	// input untouched
	if _, ok := in["temp:a"]; !ok {
		t.Error("StripTempState must not mutate its input")
	}
}

func TestFoldStateDeltas(t *testing.T) {
	events := []Event{
		{Actions: EventActions{StateDelta: map[string]any{"a": 1, "b": 1}}},
		{Actions: EventActions{StateDelta: map[string]any{"b": 2}}},
		{Actions: EventActions{StateDelta: map[string]any{"a": nil, "c": 3}}},
	}

	state := FoldStateDeltas(events)
	if _, ok := state["a"]; ok {
		t.Error("deleted key present after fold")
	}
	if state["b"] != 2 || state["c"] != 3 {
		t.Errorf("unexpected fold result: %v", state)
	}
}

func TestFoldStateDeltas_OrderMatters(t *testing.T) {
	early := Event{Actions: EventActions{StateDelta: map[string]any{"k": "early"}}}
	late := Event{Actions: EventActions{StateDelta: map[string]any{"k": "late"}}}

	if got := FoldStateDeltas([]Event{early, late})["k"]; got != "late" {
		t.Errorf("expected in-order fold, got %v", got)
	}
	if got := FoldStateDeltas([]Event{late, early})["k"]; got != "early" {
		t.Errorf("expected in-order fold, got %v", got)
	}
}
