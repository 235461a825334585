// Package plugin defines cross-cutting interception hooks around tool
// execution. Plugins observe or override every tool call of an application,
// unlike per-call callbacks registered on a single executor. A chain runs
// plugins in registration order; the first plugin returning a non-nil value
// short-circuits the rest of the chain.
package plugin
