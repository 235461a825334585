package core

import (
	"iter"
	"time"
)

// ApplyRewindFilter returns the subset of events visible after interpreting
// every rewind marker, preserving order. For each marker, all events from the
// first event of the marker's target invocation up to (and not including) the
// marker are dropped from the visible view. Markers compose transitively: a
// later rewind can only further restrict visibility, never re-reveal events a
// prior rewind already hid, because hidden events are absent from the working
// view when later markers are interpreted.
//
// The input slice is not mutated. Marker events themselves stay visible; they
// carry the corrective state and typically no content.
func ApplyRewindFilter(events []Event) []Event {
	visible := make([]Event, 0, len(events))
	for _, ev := range events {
		if target := ev.Actions.RewindBeforeInvocationID; target != nil {
			for i, vis := range visible {
				if vis.InvocationID == *target {
					visible = visible[:i]
					break
				}
			}
		}
		visible = append(visible, ev)
	}
	return visible
}

// EffectiveEvents returns a lazy, finite, restartable sequence of events for
// model-context assembly. The raw log is first passed through the rewind
// filter, then every range fully covered by a compaction event is replaced by
// a single event carrying the compaction's summarized content, positioned
// where the covered range began. Compaction events themselves are not yielded
// raw. Because rewind filtering runs first, a compaction covering a rewound
// range cannot resurrect hidden content.
//
// The sequence re-reads the session on every iteration, so callers may store
// it and range multiple times.
func (s *Session) EffectiveEvents() iter.Seq[Event] {
	return s.effectiveSeq(nil)
}

// EffectiveEventsAsOf is EffectiveEvents bounded to the log as it stood at
// asOf: events recorded after that instant are ignored, including rewind
// markers and compactions, so the view reflects what a reader at that time
// would have seen.
func (s *Session) EffectiveEventsAsOf(asOf time.Time) iter.Seq[Event] {
	return s.effectiveSeq(&asOf)
}

func (s *Session) effectiveSeq(asOf *time.Time) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		raw := s.GetEvents()
		if asOf != nil {
			bounded := make([]Event, 0, len(raw))
			for _, ev := range raw {
				if !ev.Timestamp.After(*asOf) {
					bounded = append(bounded, ev)
				}
			}
			raw = bounded
		}

		visible := ApplyRewindFilter(raw)

		// Collect compaction spans in log order. With overlapping windows the
		// latest compaction wins for events covered by more than one.
		var spans []Event
		for _, ev := range visible {
			if ev.Actions.IsCompaction() {
				spans = append(spans, ev)
			}
		}

		emitted := make([]bool, len(spans))
		for _, ev := range visible {
			if ev.Actions.IsCompaction() {
				continue
			}
			span := -1
			for i, cev := range spans {
				if cev.Actions.Compaction.Covers(ev.Timestamp) {
					span = i
				}
			}
			if span < 0 {
				if !yield(ev) {
					return
				}
				continue
			}
			if emitted[span] {
				continue
			}
			emitted[span] = true
			sub := spans[span]
			sub.Content = sub.Actions.Compaction.CompactedContent
			if !yield(sub) {
				return
			}
		}
	}
}

// EffectiveState derives the state visible after rewind filtering. It matches
// the persisted derived state because every rewind marker carries the
// corrective delta for the events it hides, so folding the full raw log and
// folding the filtered log agree on session-scoped keys.
func (s *Session) EffectiveState() map[string]any {
	return FoldStateDeltas(ApplyRewindFilter(s.GetEvents()))
}
