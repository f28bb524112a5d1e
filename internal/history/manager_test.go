// ABOUTME: Tests for the context manager windowing and retention policy
// ABOUTME: Covers fresh threads, window truncation, digests, and pending actions

package history

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/inbox-agent/internal/store"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return NewManager(s, DefaultConfig(), nil)
}

func userMessages(n int) []Message {
	msgs := make([]Message, 0, n)
	for i := 1; i <= n; i++ {
		msgs = append(msgs, Message{Role: RoleUser, Content: fmt.Sprintf("message %d", i)})
	}
	return msgs
}

func TestLoad_FreshThreadReturnsEmpty(t *testing.T) {
	m := newTestManager(t)

	msgs, err := m.Load(context.Background(), "alice@example.com", "new-thread")
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.NotNil(t, msgs)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	saved := []Message{
		{Role: RoleUser, Content: "Please summarize X"},
		{Role: RoleAssistant, Content: "Summary: X is ..."},
		{Role: RoleSystem, Content: "note"},
	}
	require.NoError(t, m.Save(ctx, "alice@example.com", "t1", "alice@example.com", saved, ""))

	got, err := m.Load(ctx, "alice@example.com", "t1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i := range saved {
		assert.Equal(t, saved[i].Role, got[i].Role)
		assert.Equal(t, saved[i].Content, got[i].Content)
	}
}

func TestLoad_ShortHistoryReturnedWhole(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Save(ctx, "alice@example.com", "t1", "alice@example.com", userMessages(10), ""))

	got, err := m.Load(ctx, "alice@example.com", "t1")
	require.NoError(t, err)
	require.Len(t, got, 10)
	assert.Equal(t, "message 1", got[0].Content)
	assert.Equal(t, "message 10", got[9].Content)
}

func TestLoad_LongHistoryTruncatedToWindow(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Save(ctx, "alice@example.com", "t1", "alice@example.com", userMessages(12), ""))

	got, err := m.Load(ctx, "alice@example.com", "t1")
	require.NoError(t, err)
	require.Len(t, got, 10, "window size is exact")
	assert.Equal(t, "message 3", got[0].Content, "older messages are silently omitted")
	assert.Equal(t, "message 12", got[9].Content)
}

func TestLoad_CustomWindowSize(t *testing.T) {
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	m := NewManager(s, Config{RecentWindowSize: 3}, nil)
	ctx := context.Background()

	require.NoError(t, m.Save(ctx, "alice@example.com", "t1", "alice@example.com", userMessages(5), ""))

	got, err := m.Load(ctx, "alice@example.com", "t1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "message 3", got[0].Content)
}

func TestLoad_SummarizesOldMessages(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	msgs := []Message{
		{Role: RoleUser, Content: "old question", CreatedAt: now.Add(-72 * time.Hour)},
		{Role: RoleAssistant, Content: "old answer", CreatedAt: now.Add(-71 * time.Hour)},
		{Role: RoleUser, Content: "recent question", CreatedAt: now.Add(-1 * time.Hour)},
	}
	require.NoError(t, m.Save(ctx, "alice@example.com", "t1", "alice@example.com", msgs, ""))

	got, err := m.Load(ctx, "alice@example.com", "t1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, RoleSystem, got[0].Role)
	assert.Contains(t, got[0].Content, "Summary of 2 earlier messages")
	assert.Contains(t, got[0].Content, "old question")
	assert.Equal(t, "recent question", got[1].Content)
}

func TestLoad_DropsVeryOldMessages(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	msgs := []Message{
		{Role: RoleUser, Content: "ancient", CreatedAt: now.Add(-8 * 24 * time.Hour)},
		{Role: RoleUser, Content: "recent", CreatedAt: now.Add(-1 * time.Hour)},
	}
	require.NoError(t, m.Save(ctx, "alice@example.com", "t1", "alice@example.com", msgs, ""))

	got, err := m.Load(ctx, "alice@example.com", "t1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "recent", got[0].Content)
	for _, msg := range got {
		assert.False(t, strings.Contains(msg.Content, "ancient"))
	}
}

func TestLoad_DigestTruncatesOnRuneBoundaries(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	msgs := []Message{
		{Role: RoleUser, Content: strings.Repeat("é", 300), CreatedAt: now.Add(-72 * time.Hour)},
		{Role: RoleUser, Content: "recent", CreatedAt: now.Add(-1 * time.Hour)},
	}
	require.NoError(t, m.Save(ctx, "alice@example.com", "t1", "alice@example.com", msgs, ""))

	got, err := m.Load(ctx, "alice@example.com", "t1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, RoleSystem, got[0].Role)
	assert.True(t, utf8.ValidString(got[0].Content), "digest must not split multibyte characters")
	assert.Contains(t, got[0].Content, "…")
}

func TestPendingAction_Lifecycle(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	// Absent conversation: empty, no error
	action, err := m.PendingAction(ctx, "alice@example.com", "t1")
	require.NoError(t, err)
	assert.Empty(t, action)

	require.NoError(t, m.Save(ctx, "alice@example.com", "t1", "alice@example.com",
		userMessages(2), "awaiting_connection"))

	action, err = m.PendingAction(ctx, "alice@example.com", "t1")
	require.NoError(t, err)
	assert.Equal(t, "awaiting_connection", action)

	require.NoError(t, m.ClearPendingAction(ctx, "alice@example.com", "t1"))

	action, err = m.PendingAction(ctx, "alice@example.com", "t1")
	require.NoError(t, err)
	assert.Empty(t, action)

	// History and sender survive the rewrite
	got, err := m.Load(ctx, "alice@example.com", "t1")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestClearPendingAction_AbsentConversationIsNoop(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.ClearPendingAction(context.Background(), "nobody@example.com", "none"))
}
