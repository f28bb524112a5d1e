// ABOUTME: Email/session glue between trigger deliveries and the agent engine
// ABOUTME: Parsing, turn orchestration, and reply rendering

// Package mail turns inbound email notifications into agent turns.
//
// A turn is: parse the trigger, load the bounded conversation window, append
// the inbound message, run the engine, persist the full updated history, and
// reply on the original thread. Persistence strictly precedes reply dispatch
// and a failed reply never rolls it back.
//
// Turns for the same (sender, thread) pair are serialized; everything else
// runs concurrently. Messages the assistant sent itself and redelivered
// trigger events are dropped before a turn starts.
package mail
