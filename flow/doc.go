// Package flow contains the tool call orchestrator. It takes the function
// calls of one assistant turn, runs them through confirmation gating, plugin
// and callback interception and parallel execution with panic isolation, and
// folds every per-call outcome into a single tool response event. Calls that
// need host input (confirmation, credentials) additionally produce a synthetic
// request event that pauses the conversation.
package flow
