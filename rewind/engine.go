package rewind

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/hupe1980/agentstate/core"
	"github.com/hupe1980/agentstate/logging"
)

// Options configures the rewind Engine.
type Options struct {
	// Logger receives structured diagnostics. Defaults to a no-op logger.
	Logger logging.Logger
}

// Engine computes and appends rewind marker events.
//
// A rewind targets an invocation id and restores the session to the moment
// just before that invocation's first event:
//   - Session-scoped state keys are corrected via an inverse delta (changed
//     keys reset, created keys deleted, deleted keys re-created). "app:",
//     "user:" and "temp:" keys are never touched.
//   - Artifacts modified at or after the target get a forward-pointing
//     restoration: the pre-target version is re-saved as a new latest
//     version. Artifacts created after the target receive an inaccessible
//     sentinel version instead. "user:" artifacts are excluded.
//
// The marker event is appended only after every restoration source loaded
// successfully, so a missing artifact version leaves the session untouched.
type Engine struct {
	sessionStore  core.SessionStore
	artifactStore core.ArtifactStore
	opts          Options
}

// New creates a rewind engine over the given stores.
func New(sessionStore core.SessionStore, artifactStore core.ArtifactStore, optFns ...func(o *Options)) *Engine {
	opts := Options{Logger: logging.NoOpLogger{}}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Engine{
		sessionStore:  sessionStore,
		artifactStore: artifactStore,
		opts:          opts,
	}
}

// RewindBefore appends a rewind marker hiding targetInvocationID and
// everything after it, and returns the appended marker event.
//
// Errors:
//
//	core.ErrSessionNotFound    - unknown session id
//	core.ErrInvocationNotFound - invocation produced no event in this session
//
// On error no marker is appended and derived state is unchanged.
func (e *Engine) RewindBefore(sessionID, targetInvocationID string) (core.Event, error) {
	sess, err := e.sessionStore.Get(sessionID)
	if err != nil {
		return core.Event{}, err
	}

	targetIdx := sess.FirstEventIndex(targetInvocationID)
	if targetIdx < 0 {
		return core.Event{}, core.ErrInvocationNotFound
	}

	e.opts.Logger.Debug("rewind.start",
		"session_id", sessionID,
		"target_invocation_id", targetInvocationID,
		"target_event_index", targetIdx,
	)

	stateDelta := inverseStateDelta(sess.StateSnapshot(), sess.StateAt(targetIdx))

	artifactDelta, err := e.revertArtifacts(sess, targetIdx)
	if err != nil {
		return core.Event{}, err
	}

	ev := core.NewRewindEvent(targetInvocationID, stateDelta, artifactDelta)
	if err := e.sessionStore.AppendEvent(sessionID, ev); err != nil {
		return core.Event{}, err
	}

	e.opts.Logger.Info("rewind.applied",
		"session_id", sessionID,
		"target_invocation_id", targetInvocationID,
		"state_keys", len(stateDelta),
		"artifacts", len(artifactDelta),
	)

	return ev, nil
}

// inverseStateDelta produces the session-scoped delta turning current into
// target. Keys equal in both snapshots are omitted; keys present only in
// current map to nil (deletion).
func inverseStateDelta(current, target map[string]any) map[string]any {
	delta := map[string]any{}

	for k, targetVal := range target {
		if core.ScopeOf(k) != core.ScopeSession {
			continue
		}
		if currentVal, ok := current[k]; !ok || !reflect.DeepEqual(currentVal, targetVal) {
			delta[k] = targetVal
		}
	}

	for k := range current {
		if core.ScopeOf(k) != core.ScopeSession {
			continue
		}
		if _, ok := target[k]; !ok {
			delta[k] = nil
		}
	}

	return delta
}

// revertArtifacts restores every session-scoped artifact touched at or after
// targetIdx. All restoration sources are loaded before any version is
// written, keeping the operation free of partial effects on load failures.
func (e *Engine) revertArtifacts(sess *core.Session, targetIdx int) (map[string]int, error) {
	if e.artifactStore == nil {
		return nil, nil
	}

	events := sess.GetEvents()

	// filename -> highest version recorded before the target, -1 if created
	// at or after it
	preTarget := map[string]int{}
	for _, ev := range events[targetIdx:] {
		for filename := range ev.Actions.ArtifactDelta {
			if core.IsUserArtifact(filename) {
				continue
			}
			if _, seen := preTarget[filename]; seen {
				continue
			}
			preTarget[filename] = highestVersionBefore(events[:targetIdx], filename)
		}
	}

	if len(preTarget) == 0 {
		return nil, nil
	}

	filenames := make([]string, 0, len(preTarget))
	for fn := range preTarget {
		filenames = append(filenames, fn)
	}
	sort.Strings(filenames)

	scope := sess.ArtifactScope()

	// Load phase: fetch every restoration source up front.
	restorations := make([]core.Artifact, len(filenames))
	for i, fn := range filenames {
		version := preTarget[fn]
		if version < 0 {
			// created after the target: mask instead of delete
			restorations[i] = core.Artifact{MimeType: core.InaccessibleMimeType}
			continue
		}
		art, err := e.artifactStore.GetVersion(scope, fn, version)
		if err != nil {
			return nil, fmt.Errorf("load artifact %q version %d: %w", fn, version, err)
		}
		restorations[i] = art
	}

	// Write phase: append restorations as new latest versions.
	artifactDelta := make(map[string]int, len(filenames))
	for i, fn := range filenames {
		newVersion, err := e.artifactStore.Save(scope, fn, restorations[i])
		if err != nil {
			return nil, fmt.Errorf("restore artifact %q: %w", fn, err)
		}
		artifactDelta[fn] = newVersion
	}

	return artifactDelta, nil
}

// highestVersionBefore scans event artifact deltas for the newest version of
// filename recorded in the given prefix of the log. Returns -1 when the
// filename never appears.
func highestVersionBefore(events []core.Event, filename string) int {
	version := -1
	for _, ev := range events {
		if v, ok := ev.Actions.ArtifactDelta[filename]; ok && v > version {
			version = v
		}
	}
	return version
}
