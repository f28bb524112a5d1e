// Package history is the context manager: the windowing policy between the
// conversation store and the agent engine.
//
// # Overview
//
// The store keeps every message ever exchanged on a thread; the engine gets
// a bounded window. Load applies the retention pipeline (drop very old
// records, collapse old ones into a system digest, then keep the last N)
// and Save writes the complete updated history back as a full replacement,
// never a delta.
//
// # Roles
//
// Message roles form the closed set {user, assistant, system}. A role tag
// read from storage that is not in the set degrades deterministically to
// user. Tool invocations are carried on assistant messages as ToolCalls and
// round-trip through the record's opaque extra map.
//
// # Pending actions
//
// A conversation can carry one free-form pending-action token (for example
// "awaiting_connection"). PendingAction reads it, ClearPendingAction
// rewrites the conversation with the flag removed and everything else
// untouched.
package history
