// ABOUTME: Tests for the SQLite conversation store
// ABOUTME: Covers upsert replace semantics, idempotency, delete, and user listing

package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testConversation(user, thread string, contents ...string) *Conversation {
	msgs := make([]MessageRecord, 0, len(contents))
	for _, c := range contents {
		msgs = append(msgs, MessageRecord{
			Type:      "user",
			Content:   c,
			Timestamp: time.Now().UTC(),
		})
	}
	return &Conversation{
		UserID:      user,
		ThreadID:    thread,
		SenderEmail: user,
		Messages:    msgs,
	}
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "deeper", "test.db")

	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created in nested directory")
	}
}

func TestGet_NotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "alice@example.com", "no-such-thread")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpsertAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conv := testConversation("alice@example.com", "thread-1", "hello", "world")
	conv.PendingAction = "awaiting_connection"
	conv.Context = map[string]any{"source": "gmail"}

	if err := s.Upsert(ctx, conv); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := s.Get(ctx, "alice@example.com", "thread-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if got.SenderEmail != "alice@example.com" {
		t.Errorf("SenderEmail mismatch: got %q", got.SenderEmail)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got.Messages))
	}
	if got.Messages[0].Content != "hello" || got.Messages[1].Content != "world" {
		t.Errorf("message order not preserved: %+v", got.Messages)
	}
	if got.PendingAction != "awaiting_connection" {
		t.Errorf("PendingAction mismatch: got %q", got.PendingAction)
	}
	if got.Context["source"] != "gmail" {
		t.Errorf("Context mismatch: %+v", got.Context)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps not set")
	}
}

func TestUpsert_ReplacesNotMerges(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := testConversation("alice@example.com", "thread-1", "one", "two", "three")
	first.PendingAction = "awaiting_connection"
	if err := s.Upsert(ctx, first); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	second := testConversation("alice@example.com", "thread-1", "only")
	if err := s.Upsert(ctx, second); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}

	got, err := s.Get(ctx, "alice@example.com", "thread-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(got.Messages) != 1 {
		t.Fatalf("expected full replacement, got %d messages", len(got.Messages))
	}
	if got.Messages[0].Content != "only" {
		t.Errorf("unexpected message content: %q", got.Messages[0].Content)
	}
	if got.PendingAction != "" {
		t.Errorf("pending action should have been replaced, got %q", got.PendingAction)
	}
}

func TestUpsert_PreservesCreatedAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conv := testConversation("alice@example.com", "thread-1", "hi")
	if err := s.Upsert(ctx, conv); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	created, err := s.Get(ctx, "alice@example.com", "thread-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	if err := s.Upsert(ctx, conv); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}
	updated, err := s.Get(ctx, "alice@example.com", "thread-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("created_at changed on update: %v -> %v", created.CreatedAt, updated.CreatedAt)
	}
	if !updated.UpdatedAt.After(created.UpdatedAt) {
		t.Errorf("updated_at did not advance: %v -> %v", created.UpdatedAt, updated.UpdatedAt)
	}
}

func TestUpsert_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conv := testConversation("alice@example.com", "thread-1", "hello", "world")
	conv.PendingAction = "awaiting_connection"

	if err := s.Upsert(ctx, conv); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := s.Upsert(ctx, conv); err != nil {
		t.Fatalf("repeat Upsert failed: %v", err)
	}

	got, err := s.Get(ctx, "alice@example.com", "thread-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(got.Messages) != 2 {
		t.Errorf("expected 2 messages, got %d", len(got.Messages))
	}
	if got.Messages[0].Content != "hello" || got.Messages[1].Content != "world" {
		t.Errorf("message content/order changed: %+v", got.Messages)
	}
	if got.PendingAction != "awaiting_connection" {
		t.Errorf("pending action changed: %q", got.PendingAction)
	}
}

func TestUpsert_PreservesExtraFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conv := testConversation("alice@example.com", "thread-1")
	conv.Messages = []MessageRecord{{
		Type:      "assistant",
		Content:   "done",
		Timestamp: time.Now().UTC(),
		Extra:     map[string]any{"tool_calls": []any{map[string]any{"name": "GMAIL_FETCH_EMAILS"}}},
	}}

	if err := s.Upsert(ctx, conv); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := s.Get(ctx, "alice@example.com", "thread-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Messages[0].Extra == nil {
		t.Fatal("extra fields were dropped")
	}
	if _, ok := got.Messages[0].Extra["tool_calls"]; !ok {
		t.Error("tool_calls not preserved in extra fields")
	}
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conv := testConversation("alice@example.com", "thread-1", "hi")
	if err := s.Upsert(ctx, conv); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	if err := s.Delete(ctx, "alice@example.com", "thread-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(ctx, "alice@example.com", "thread-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}

	// Deleting an absent key is a no-op
	if err := s.Delete(ctx, "alice@example.com", "thread-1"); err != nil {
		t.Fatalf("Delete of absent key should be a no-op, got %v", err)
	}
}

func TestListForUser_OrdersByRecency(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, thread := range []string{"thread-a", "thread-b", "thread-c"} {
		if err := s.Upsert(ctx, testConversation("alice@example.com", thread, "hi")); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	// Touch thread-a so it becomes the most recent
	if err := s.Upsert(ctx, testConversation("alice@example.com", "thread-a", "again")); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	// Another user's conversation must not appear
	if err := s.Upsert(ctx, testConversation("bob@example.com", "thread-x", "yo")); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	convs, err := s.ListForUser(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("ListForUser failed: %v", err)
	}
	if len(convs) != 3 {
		t.Fatalf("expected 3 conversations, got %d", len(convs))
	}
	if convs[0].ThreadID != "thread-a" {
		t.Errorf("expected thread-a first, got %q", convs[0].ThreadID)
	}
}
