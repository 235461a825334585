// Package session provides core.SessionStore implementations. The in-memory
// store is suitable for tests and single-process deployments; durable
// backends implement the same interface. Stores route state deltas by scope
// prefix: "app:" keys are shared across all sessions of an application,
// "user:" keys across all sessions of a user, "temp:" keys are dropped before
// persistence, and unprefixed keys stay session-local.
package session
