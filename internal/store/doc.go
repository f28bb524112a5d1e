// Package store provides SQLite-backed persistence for conversations.
//
// # Overview
//
// One row per (user_id, thread_id) pair holds the full message history and
// per-thread state for an email conversation. Message history and the
// auxiliary context blob are stored as JSON text; timestamps are UTC.
//
// # Semantics
//
//   - Get returns the complete row or ErrNotFound, never partial data.
//   - Upsert is create-or-replace: message list, pending action and context
//     are fully replaced, updated_at advances, created_at is set only on
//     first insert. Calling it twice with identical input leaves an
//     equivalent row.
//   - Delete of an absent key is a no-op.
//   - ListForUser orders by most-recent-update descending.
//
// Every write happens in a single transaction; a failure leaves the prior
// row intact. Concurrent upserts to the same key resolve last-writer-wins
// by commit order; the store offers no per-key locking beyond that.
//
// # Usage
//
//	s, err := store.NewSQLiteStore("/var/lib/inbox-agent/conversations.db")
//	if err != nil { ... }
//	defer s.Close()
//
//	conv, err := s.Get(ctx, "alice@example.com", "thread-1")
//	if errors.Is(err, store.ErrNotFound) { ... }
package store
