// ABOUTME: Context manager applying the bounded-window retrieval policy over the store
// ABOUTME: Loads recent history, saves full histories, and tracks the pending-action flag

package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/2389/inbox-agent/internal/store"
)

// ConversationStore defines what the manager needs from storage
type ConversationStore interface {
	Get(ctx context.Context, userID, threadID string) (*store.Conversation, error)
	Upsert(ctx context.Context, conv *store.Conversation) error
}

// Config holds the windowing and retention policy, fixed at construction.
type Config struct {
	// RecentWindowSize is the maximum number of most-recent messages
	// returned for a turn.
	RecentWindowSize int

	// SummarizeAfterHours collapses messages older than this horizon into a
	// single system digest message on load.
	SummarizeAfterHours int

	// DropAfterDays removes messages older than this horizon from the
	// loaded context entirely. The stored history is not rewritten; old
	// records simply stop being loaded.
	DropAfterDays int
}

// DefaultConfig returns the documented policy defaults.
func DefaultConfig() Config {
	return Config{
		RecentWindowSize:    10,
		SummarizeAfterHours: 48,
		DropAfterDays:       7,
	}
}

// Manager translates between stored message records and the in-memory
// representation the agent engine expects, applying the windowing policy.
type Manager struct {
	db     ConversationStore
	cfg    Config
	logger *slog.Logger

	// now is swappable for retention tests
	now func() time.Time
}

// NewManager creates a context manager over the given store.
func NewManager(db ConversationStore, cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RecentWindowSize <= 0 {
		cfg.RecentWindowSize = DefaultConfig().RecentWindowSize
	}
	return &Manager{
		db:     db,
		cfg:    cfg,
		logger: logger.With("component", "history"),
		now:    time.Now,
	}
}

// Load returns the bounded conversation context for a turn, in original
// order. A fresh (user, thread) pair yields an empty slice.
//
// Retention pipeline, oldest first:
//  1. records older than DropAfterDays are dropped,
//  2. records older than SummarizeAfterHours collapse into one system
//     digest message,
//  3. the last RecentWindowSize messages win.
func (m *Manager) Load(ctx context.Context, userID, threadID string) ([]Message, error) {
	conv, err := m.db.Get(ctx, userID, threadID)
	if errors.Is(err, store.ErrNotFound) {
		return []Message{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading conversation: %w", err)
	}

	now := m.now().UTC()
	records := conv.Messages

	if m.cfg.DropAfterDays > 0 {
		dropBefore := now.Add(-time.Duration(m.cfg.DropAfterDays) * 24 * time.Hour)
		records = dropOlderThan(records, dropBefore)
	}

	messages := make([]Message, 0, len(records))
	for _, rec := range records {
		messages = append(messages, deserialize(rec))
	}

	if m.cfg.SummarizeAfterHours > 0 {
		summarizeBefore := now.Add(-time.Duration(m.cfg.SummarizeAfterHours) * time.Hour)
		messages = summarizeOlderThan(messages, summarizeBefore)
	}

	if len(messages) > m.cfg.RecentWindowSize {
		messages = messages[len(messages)-m.cfg.RecentWindowSize:]
	}

	m.logger.Debug("context loaded",
		"user_id", userID,
		"thread_id", threadID,
		"stored", len(conv.Messages),
		"returned", len(messages))
	return messages, nil
}

// Save serializes the entire given message list and upserts it: full
// history replacement, so callers must pass the complete updated history
// each turn, not a delta.
func (m *Manager) Save(ctx context.Context, userID, threadID, senderEmail string, messages []Message, pendingAction string) error {
	now := m.now().UTC()

	records := make([]store.MessageRecord, 0, len(messages))
	for _, msg := range messages {
		records = append(records, serialize(msg, now))
	}

	conv := &store.Conversation{
		UserID:        userID,
		ThreadID:      threadID,
		SenderEmail:   senderEmail,
		Messages:      records,
		PendingAction: pendingAction,
	}
	if err := m.db.Upsert(ctx, conv); err != nil {
		return fmt.Errorf("saving conversation: %w", err)
	}

	m.logger.Debug("context saved",
		"user_id", userID,
		"thread_id", threadID,
		"messages", len(records))
	return nil
}

// PendingAction returns the conversation's pending-action flag, or the empty
// string when the conversation is absent or has none.
func (m *Manager) PendingAction(ctx context.Context, userID, threadID string) (string, error) {
	conv, err := m.db.Get(ctx, userID, threadID)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("loading conversation: %w", err)
	}
	return conv.PendingAction, nil
}

// ClearPendingAction rewrites the conversation with the flag cleared,
// preserving message history, sender and context unchanged. Clearing an
// absent conversation is a no-op.
func (m *Manager) ClearPendingAction(ctx context.Context, userID, threadID string) error {
	conv, err := m.db.Get(ctx, userID, threadID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading conversation: %w", err)
	}

	conv.PendingAction = ""
	if err := m.db.Upsert(ctx, conv); err != nil {
		return fmt.Errorf("clearing pending action: %w", err)
	}
	return nil
}

// dropOlderThan removes records with timestamps before the cutoff. Records
// without a timestamp are kept.
func dropOlderThan(records []store.MessageRecord, cutoff time.Time) []store.MessageRecord {
	kept := make([]store.MessageRecord, 0, len(records))
	for _, rec := range records {
		if !rec.Timestamp.IsZero() && rec.Timestamp.Before(cutoff) {
			continue
		}
		kept = append(kept, rec)
	}
	return kept
}

// summarizeOlderThan collapses every message older than the cutoff into one
// leading system digest. The digest is deterministic, with no model round-trip,
// so Load stays a pure store read. Its timestamp is the newest collapsed
// message's, letting the digest itself age out through the drop horizon.
func summarizeOlderThan(messages []Message, cutoff time.Time) []Message {
	split := 0
	for split < len(messages) {
		ts := messages[split].CreatedAt
		if ts.IsZero() || !ts.Before(cutoff) {
			break
		}
		split++
	}
	if split == 0 {
		return messages
	}

	old := messages[:split]
	digest := Message{
		Role:      RoleSystem,
		Content:   digestContent(old),
		CreatedAt: old[len(old)-1].CreatedAt,
	}

	result := make([]Message, 0, len(messages)-split+1)
	result = append(result, digest)
	result = append(result, messages[split:]...)
	return result
}

// digestLineLimit bounds how much of each collapsed message survives in the
// digest, counted in runes so truncation never splits a multibyte character.
const digestLineLimit = 120

func digestContent(old []Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Summary of %d earlier messages in this thread:\n", len(old))
	for _, msg := range old {
		line := strings.ReplaceAll(msg.Content, "\n", " ")
		if runes := []rune(line); len(runes) > digestLineLimit {
			line = string(runes[:digestLineLimit]) + "…"
		}
		fmt.Fprintf(&b, "- [%s] %s\n", msg.Role, line)
	}
	return strings.TrimRight(b.String(), "\n")
}
