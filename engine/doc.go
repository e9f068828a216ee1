// Package engine is the hub core. It consumes bus messages one at a time,
// updates the state store, evaluates the active rules against a snapshot of
// the state, and enqueues the actions of every rule that matches. Liveness
// tracking and persistence hang off the same intake path for topics outside
// the reserved namespace.
package engine
