// ABOUTME: SQLite implementation of conversation persistence using modernc.org/sqlite
// ABOUTME: Provides keyed upsert/get/delete/list with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists conversations in a SQLite database
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS conversations (
			user_id         TEXT NOT NULL,
			thread_id       TEXT NOT NULL,
			sender_email    TEXT NOT NULL,
			message_history TEXT NOT NULL,
			pending_action  TEXT,
			context         TEXT NOT NULL,
			created_at      DATETIME NOT NULL,
			updated_at      DATETIME NOT NULL,
			PRIMARY KEY (user_id, thread_id)
		);

		CREATE INDEX IF NOT EXISTS idx_conversations_user_updated
			ON conversations(user_id, updated_at);

		CREATE INDEX IF NOT EXISTS idx_conversations_thread_id
			ON conversations(thread_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get returns the conversation for the given (user, thread) key, or
// ErrNotFound. The returned record is always complete.
func (s *SQLiteStore) Get(ctx context.Context, userID, threadID string) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, thread_id, sender_email, message_history,
		       pending_action, context, created_at, updated_at
		FROM conversations
		WHERE user_id = ? AND thread_id = ?`,
		userID, threadID)

	return scanConversation(row)
}

// Upsert creates or fully replaces the conversation row for
// (conv.UserID, conv.ThreadID). Message history, pending action and context
// are replaced, not merged. created_at is preserved on update; updated_at
// always advances. The whole write is a single atomic statement.
func (s *SQLiteStore) Upsert(ctx context.Context, conv *Conversation) error {
	history, err := json.Marshal(conv.Messages)
	if err != nil {
		return fmt.Errorf("encoding message history: %w", err)
	}

	blob := conv.Context
	if blob == nil {
		blob = map[string]any{}
	}
	contextJSON, err := json.Marshal(blob)
	if err != nil {
		return fmt.Errorf("encoding context: %w", err)
	}

	now := time.Now().UTC()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations
			(user_id, thread_id, sender_email, message_history,
			 pending_action, context, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, thread_id) DO UPDATE SET
			sender_email    = excluded.sender_email,
			message_history = excluded.message_history,
			pending_action  = excluded.pending_action,
			context         = excluded.context,
			updated_at      = excluded.updated_at`,
		conv.UserID, conv.ThreadID, conv.SenderEmail, string(history),
		nullableString(conv.PendingAction), string(contextJSON), now, now)
	if err != nil {
		return fmt.Errorf("upserting conversation: %w", err)
	}

	s.logger.Debug("conversation upserted",
		"user_id", conv.UserID,
		"thread_id", conv.ThreadID,
		"messages", len(conv.Messages))
	return nil
}

// Delete removes the conversation row if present. Deleting an absent key is
// a no-op, not an error.
func (s *SQLiteStore) Delete(ctx context.Context, userID, threadID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM conversations WHERE user_id = ? AND thread_id = ?`,
		userID, threadID)
	if err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}
	return nil
}

// ListForUser returns all conversations for a user, most recently updated
// first.
func (s *SQLiteStore) ListForUser(ctx context.Context, userID string) ([]*Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, thread_id, sender_email, message_history,
		       pending_action, context, created_at, updated_at
		FROM conversations
		WHERE user_id = ?
		ORDER BY updated_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	var convs []*Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversations: %w", err)
	}
	return convs, nil
}

// scanner covers both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanConversation(row scanner) (*Conversation, error) {
	var (
		conv          Conversation
		history       string
		pendingAction sql.NullString
		contextJSON   string
	)

	err := row.Scan(&conv.UserID, &conv.ThreadID, &conv.SenderEmail, &history,
		&pendingAction, &contextJSON, &conv.CreatedAt, &conv.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning conversation: %w", err)
	}

	if err := json.Unmarshal([]byte(history), &conv.Messages); err != nil {
		return nil, fmt.Errorf("decoding message history: %w", err)
	}
	if err := json.Unmarshal([]byte(contextJSON), &conv.Context); err != nil {
		return nil, fmt.Errorf("decoding context: %w", err)
	}
	if pendingAction.Valid {
		conv.PendingAction = pendingAction.String
	}

	return &conv, nil
}

// nullableString maps "" to NULL so pending_action stays a nullable column
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
