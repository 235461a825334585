// Package rewind implements conversation rollback over the append-only event
// log. Rather than deleting history, the engine appends a user-authored marker
// event whose corrective state delta and artifact restorations make the
// derived session view match the snapshot immediately before a target
// invocation. The visibility filter (core.EffectiveEvents) then hides the
// rolled-back range from model context assembly while the raw log stays
// intact for audit.
package rewind
