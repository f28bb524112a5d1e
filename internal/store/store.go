// ABOUTME: Store data types for inbox-agent conversation persistence
// ABOUTME: Defines Conversation, MessageRecord and the sentinel lookup errors

package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested conversation does not exist
var ErrNotFound = errors.New("not found")

// MessageRecord is the serialized form of a single conversation turn as it
// is stored on disk. Extra carries auxiliary fields (tool calls and anything
// else a future engine attaches) and round-trips opaquely.
type MessageRecord struct {
	Type      string         `json:"type"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Extra     map[string]any `json:"additional_kwargs,omitempty"`
}

// Conversation is one email thread's durable state, keyed by the
// (UserID, ThreadID) pair. Messages are kept in insertion order and are
// never reordered.
type Conversation struct {
	UserID        string
	ThreadID      string
	SenderEmail   string
	Messages      []MessageRecord
	PendingAction string         // free-form state flag, e.g. "awaiting_connection"
	Context       map[string]any // opaque blob for future extensions
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
