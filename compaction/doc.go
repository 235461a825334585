// Package compaction keeps long-running sessions within model context limits
// by summarizing older event ranges. Summaries are appended as compaction
// events; the raw events stay in the log for audit and the visibility filter
// (core.EffectiveEvents) substitutes the summary when assembling model
// context. A failed or empty summarization is skipped silently, leaving the
// raw history authoritative.
package compaction
