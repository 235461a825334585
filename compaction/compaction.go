package compaction

import (
	"context"
	"time"

	"github.com/hupe1980/agentstate/core"
	"github.com/hupe1980/agentstate/logging"
)

// DefaultInterval is the number of completed invocations after which a
// compaction run is attempted.
const DefaultInterval = 10

// Summarizer condenses a range of events into one Content. Implementations
// are typically model-backed (see ModelSummarizer); returning a nil content
// with nil error means "nothing worth summarizing" and skips the compaction.
type Summarizer interface {
	Summarize(ctx context.Context, events []core.Event) (*core.Content, error)
}

// SummarizerFunc adapts a plain function to the Summarizer interface.
type SummarizerFunc func(ctx context.Context, events []core.Event) (*core.Content, error)

// Summarize implements Summarizer.
func (f SummarizerFunc) Summarize(ctx context.Context, events []core.Event) (*core.Content, error) {
	return f(ctx, events)
}

// Options configures the compaction Engine.
type Options struct {
	// Interval is the invocation count that triggers MaybeCompact. Values
	// < 1 fall back to DefaultInterval.
	Interval int

	// Overlap is the number of most recent invocations kept out of the
	// compacted range so fresh context survives verbatim.
	Overlap int

	// Author is recorded on appended compaction events. Defaults to
	// "system".
	Author string

	// Logger receives structured diagnostics. Defaults to a no-op logger.
	Logger logging.Logger
}

// Engine appends compaction events over the oldest unsummarized range of a
// session.
//
// The engine never mutates or removes raw events. Overlapping compactions are
// legal; the visibility filter resolves them by letting the latest covering
// compaction win.
type Engine struct {
	sessionStore core.SessionStore
	summarizer   Summarizer
	opts         Options
}

// New creates a compaction engine over the given store and summarizer.
func New(sessionStore core.SessionStore, summarizer Summarizer, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Interval: DefaultInterval,
		Author:   "system",
		Logger:   logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Interval < 1 {
		opts.Interval = DefaultInterval
	}
	if opts.Author == "" {
		opts.Author = "system"
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Engine{
		sessionStore: sessionStore,
		summarizer:   summarizer,
		opts:         opts,
	}
}

// MaybeCompact runs Compact when at least Interval distinct invocations have
// completed since the last compaction boundary. Returns the appended event or
// nil when no compaction happened.
func (e *Engine) MaybeCompact(ctx context.Context, sessionID string) (*core.Event, error) {
	sess, err := e.sessionStore.Get(sessionID)
	if err != nil {
		return nil, err
	}

	pending, _ := e.pendingRange(sess)
	if distinctInvocations(pending) < e.opts.Interval {
		return nil, nil
	}

	return e.compact(ctx, sess)
}

// Compact unconditionally attempts to summarize the oldest unsummarized
// contiguous range. Returns the appended event, or nil when there is nothing
// to compact or the summarizer declined.
func (e *Engine) Compact(ctx context.Context, sessionID string) (*core.Event, error) {
	sess, err := e.sessionStore.Get(sessionID)
	if err != nil {
		return nil, err
	}

	return e.compact(ctx, sess)
}

func (e *Engine) compact(ctx context.Context, sess *core.Session) (*core.Event, error) {
	pending, _ := e.pendingRange(sess)

	window := e.trimOverlap(pending)
	if len(window) == 0 {
		return nil, nil
	}

	content, err := e.summarizer.Summarize(ctx, window)
	if err != nil {
		// summarization is best effort: the raw history stays authoritative
		e.opts.Logger.Warn("compaction.summarize.failed",
			"session_id", sess.ID,
			"events", len(window),
			"error", err.Error(),
		)
		return nil, nil
	}
	if content == nil || len(content.Parts) == 0 {
		e.opts.Logger.Debug("compaction.summarize.empty", "session_id", sess.ID)
		return nil, nil
	}

	ev := core.NewCompactionEvent(
		e.opts.Author,
		window[0].Timestamp,
		window[len(window)-1].Timestamp,
		content,
	)

	if err := e.sessionStore.AppendEvent(sess.ID, ev); err != nil {
		return nil, err
	}

	e.opts.Logger.Info("compaction.applied",
		"session_id", sess.ID,
		"events", len(window),
		"start", window[0].Timestamp,
		"end", window[len(window)-1].Timestamp,
	)

	return &ev, nil
}

// pendingRange returns the effective (rewind-filtered) events not yet covered
// by any compaction, excluding compaction events themselves and bare rewind
// markers. The second return reports whether a prior compaction exists.
func (e *Engine) pendingRange(sess *core.Session) ([]core.Event, bool) {
	events := core.ApplyRewindFilter(sess.GetEvents())

	var (
		lastEnd      time.Time
		haveBoundary bool
	)
	for _, ev := range events {
		if ev.Actions.IsCompaction() {
			if !haveBoundary || ev.Actions.Compaction.EndTimestamp.After(lastEnd) {
				lastEnd = ev.Actions.Compaction.EndTimestamp
				haveBoundary = true
			}
		}
	}

	var pending []core.Event
	for _, ev := range events {
		if ev.Actions.IsCompaction() || ev.Actions.IsRewind() {
			continue
		}
		if haveBoundary && !ev.Timestamp.After(lastEnd) {
			continue
		}
		pending = append(pending, ev)
	}

	return pending, haveBoundary
}

// trimOverlap drops the events of the Overlap most recent invocations from
// the pending range so the newest exchanges survive uncompacted.
func (e *Engine) trimOverlap(pending []core.Event) []core.Event {
	if e.opts.Overlap <= 0 || len(pending) == 0 {
		return pending
	}

	// walk backwards counting distinct invocation ids
	seen := map[string]bool{}
	cut := len(pending)
	for i := len(pending) - 1; i >= 0; i-- {
		id := pending[i].InvocationID
		if !seen[id] {
			if len(seen) == e.opts.Overlap {
				break
			}
			seen[id] = true
		}
		cut = i
	}

	return pending[:cut]
}

func distinctInvocations(events []core.Event) int {
	seen := map[string]bool{}
	for _, ev := range events {
		if ev.InvocationID != "" {
			seen[ev.InvocationID] = true
		}
	}
	return len(seen)
}
