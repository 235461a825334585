package core

import (
	"testing"
	"time"
)

func rewindMarker(target string) Event {
	ev := NewEvent(NewID(), "user")
	ev.Actions.RewindBeforeInvocationID = &target
	return ev
}

func TestApplyRewindFilter_TruncatesAtTarget(t *testing.T) {
	events := []Event{
		deltaEvent("inv-1", nil),
		deltaEvent("inv-2", nil),
		deltaEvent("inv-3", nil),
		rewindMarker("inv-2"),
	}

	visible := ApplyRewindFilter(events)
	if len(visible) != 2 {
		t.Fatalf("expected 2 visible events, got %d", len(visible))
	}
	if visible[0].InvocationID != "inv-1" {
		t.Errorf("expected inv-1 first, got %s", visible[0].InvocationID)
	}
	if !visible[1].Actions.IsRewind() {
		t.Error("marker itself must stay visible")
	}
}

func TestApplyRewindFilter_Transitive(t *testing.T) {
	// rewind to inv-3, continue with inv-4, then rewind to inv-2: the second
	// marker hides inv-2 onward including the first marker and inv-4
	events := []Event{
		deltaEvent("inv-1", nil),
		deltaEvent("inv-2", nil),
		deltaEvent("inv-3", nil),
		rewindMarker("inv-3"),
		deltaEvent("inv-4", nil),
		rewindMarker("inv-2"),
	}

	visible := ApplyRewindFilter(events)
	if len(visible) != 2 {
		t.Fatalf("expected 2 visible events, got %d: %+v", len(visible), visible)
	}
	if visible[0].InvocationID != "inv-1" {
		t.Errorf("expected only inv-1 plus marker, got %s", visible[0].InvocationID)
	}
}

func TestApplyRewindFilter_NeverReReveals(t *testing.T) {
	// a later rewind targeting an already-hidden invocation cannot bring
	// anything back
	events := []Event{
		deltaEvent("inv-1", nil),
		deltaEvent("inv-2", nil),
		rewindMarker("inv-2"),
		rewindMarker("inv-2"),
	}

	visible := ApplyRewindFilter(events)
	for _, ev := range visible {
		if ev.InvocationID == "inv-2" && !ev.Actions.IsRewind() {
			t.Fatal("hidden event re-revealed")
		}
	}
	// both markers remain
	markers := 0
	for _, ev := range visible {
		if ev.Actions.IsRewind() {
			markers++
		}
	}
	if markers != 2 {
		t.Errorf("expected both markers visible, got %d", markers)
	}
}

func TestApplyRewindFilter_InputNotMutated(t *testing.T) {
	events := []Event{
		deltaEvent("inv-1", nil),
		deltaEvent("inv-2", nil),
		rewindMarker("inv-1"),
	}
	ApplyRewindFilter(events)
	if len(events) != 3 {
		t.Error("input slice mutated")
	}
}

func timedEvent(invocationID, text string, ts time.Time) Event {
	ev := NewEvent(invocationID, "assistant")
	ev.Content = &Content{Role: "assistant", Parts: []Part{TextPart{Text: text}}}
	ev.Timestamp = ts
	return ev
}

func compactionEvent(start, end time.Time, summary string) Event {
	return NewCompactionEvent("system", start, end, &Content{
		Role:  "assistant",
		Parts: []Part{TextPart{Text: summary}},
	})
}

func TestEffectiveEvents_CompactionSubstitution(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewSession("s1", "app", "u1")
	s.AddEvent(timedEvent("inv-1", "one", base))
	s.AddEvent(timedEvent("inv-2", "two", base.Add(time.Minute)))
	s.AddEvent(compactionEvent(base, base.Add(time.Minute), "summary"))
	s.AddEvent(timedEvent("inv-3", "three", base.Add(2*time.Minute)))

	var texts []string
	for ev := range s.EffectiveEvents() {
		if ev.Content != nil {
			texts = append(texts, ev.Content.Text())
		}
	}

	want := []string{"summary", "three"}
	if len(texts) != len(want) {
		t.Fatalf("expected %v, got %v", want, texts)
	}
	for i := range want {
		if texts[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, texts)
		}
	}
}

func TestEffectiveEvents_LatestCompactionWins(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewSession("s2", "app", "u1")
	s.AddEvent(timedEvent("inv-1", "one", base))
	s.AddEvent(timedEvent("inv-2", "two", base.Add(time.Minute)))
	s.AddEvent(compactionEvent(base, base.Add(time.Minute), "old summary"))
	s.AddEvent(timedEvent("inv-3", "three", base.Add(2*time.Minute)))
	// overlapping re-compaction covering everything so far
	s.AddEvent(compactionEvent(base, base.Add(2*time.Minute), "new summary"))

	var texts []string
	for ev := range s.EffectiveEvents() {
		if ev.Content != nil {
			texts = append(texts, ev.Content.Text())
		}
	}

	if len(texts) != 1 || texts[0] != "new summary" {
		t.Fatalf("expected only the newest summary, got %v", texts)
	}
}

func TestEffectiveEvents_Restartable(t *testing.T) {
	s := NewSession("s3", "app", "u1")
	s.AddEvent(timedEvent("inv-1", "one", time.Now().UTC()))

	seq := s.EffectiveEvents()

	count := func() int {
		n := 0
		for range seq {
			n++
		}
		return n
	}

	if first, second := count(), count(); first != second || first != 1 {
		t.Errorf("sequence not restartable: %d vs %d", first, second)
	}
}

func TestEffectiveEvents_EarlyBreak(t *testing.T) {
	s := NewSession("s4", "app", "u1")
	s.AddEvent(timedEvent("inv-1", "one", time.Now().UTC()))
	s.AddEvent(timedEvent("inv-2", "two", time.Now().UTC()))

	n := 0
	for range s.EffectiveEvents() {
		n++
		break
	}
	if n != 1 {
		t.Errorf("early break consumed %d events", n)
	}
}

func TestEffectiveEventsAsOf_IgnoresLaterEvents(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewSession("s7", "app", "u1")
	s.AddEvent(timedEvent("inv-1", "one", base))
	s.AddEvent(timedEvent("inv-2", "two", base.Add(time.Minute)))

	marker := rewindMarker("inv-2")
	marker.Timestamp = base.Add(2 * time.Minute)
	s.AddEvent(marker)

	comp := compactionEvent(base, base.Add(time.Minute), "summary")
	comp.Timestamp = base.Add(3 * time.Minute)
	s.AddEvent(comp)

	collect := func(asOf time.Time) []string {
		var texts []string
		for ev := range s.EffectiveEventsAsOf(asOf) {
			if ev.Content != nil && ev.Content.Text() != "" {
				texts = append(texts, ev.Content.Text())
			}
		}
		return texts
	}

	// before the rewind marker existed, both turns were visible raw
	got := collect(base.Add(time.Minute))
	if len(got) != 2 || got[0] != "one" || got[1] != "two" {
		t.Fatalf("as-of view before the marker = %v", got)
	}

	// once the marker is in range, inv-2 is hidden; the compaction is not yet
	got = collect(base.Add(2 * time.Minute))
	if len(got) != 1 || got[0] != "one" {
		t.Fatalf("as-of view at the marker = %v", got)
	}

	// the unbounded view agrees with an as-of bound covering everything
	var full []string
	for ev := range s.EffectiveEvents() {
		if ev.Content != nil && ev.Content.Text() != "" {
			full = append(full, ev.Content.Text())
		}
	}
	got = collect(base.Add(time.Hour))
	if len(got) != len(full) {
		t.Fatalf("bounded view %v disagrees with full view %v", got, full)
	}
}

func TestEffectiveEvents_RewindBeforeCompaction(t *testing.T) {
	// a compaction covering a rewound range cannot resurrect hidden content
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewSession("s5", "app", "u1")
	s.AddEvent(timedEvent("inv-1", "one", base))
	s.AddEvent(timedEvent("inv-2", "two", base.Add(time.Minute)))
	s.AddEvent(rewindMarker("inv-2"))
	s.AddEvent(compactionEvent(base, base.Add(time.Minute), "covers hidden range"))

	for ev := range s.EffectiveEvents() {
		if ev.Content != nil && ev.Content.Text() == "two" {
			t.Fatal("rewound event resurrected by compaction")
		}
	}
}

func TestEffectiveState_MatchesDerivedState(t *testing.T) {
	s := NewSession("s6", "app", "u1")
	s.AddEvent(deltaEvent("inv-1", map[string]any{"color": "red"}))
	s.AddEvent(deltaEvent("inv-2", map[string]any{"color": "blue"}))

	// corrective marker as the rewind engine would append
	marker := rewindMarker("inv-2")
	marker.Actions.StateDelta = map[string]any{"color": "red"}
	s.AddEvent(marker)

	eff := s.EffectiveState()
	if eff["color"] != "red" {
		t.Errorf("effective state = %v", eff)
	}
	if v, _ := s.GetState("color"); v != "red" {
		t.Errorf("derived state = %v", s.StateSnapshot())
	}
}
