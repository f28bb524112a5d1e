// ABOUTME: In-memory message representation with a closed role set
// ABOUTME: Handles serialization to and from store records, including tool calls

package history

import (
	"encoding/json"
	"time"

	"github.com/2389/inbox-agent/internal/store"
)

// Role identifies who authored a message. The set is closed; anything else
// read from storage degrades to RoleUser (see ParseRole).
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ParseRole maps a stored role tag onto the closed role set. Unrecognized
// tags deliberately fall back to RoleUser rather than failing: a record
// written by a newer version still loads, it just loses its special
// standing. This is a documented fallback, not silent data loss; content
// and auxiliary fields are untouched.
func ParseRole(tag string) Role {
	switch Role(tag) {
	case RoleUser, RoleAssistant, RoleSystem:
		return Role(tag)
	default:
		return RoleUser
	}
}

// ToolCall records a tool invocation requested by the assistant.
type ToolCall struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
}

// Message is a single conversation turn in the form the agent engine
// consumes and produces.
type Message struct {
	Role      Role
	Content   string
	CreatedAt time.Time
	ToolCalls []ToolCall
	Extra     map[string]any
}

// IsToolCall reports whether this message invokes tools rather than
// carrying a user-facing response.
func (m *Message) IsToolCall() bool {
	return len(m.ToolCalls) > 0
}

// extraToolCallsKey is where tool calls ride inside the opaque extra map of
// a stored record.
const extraToolCallsKey = "tool_calls"

// serialize converts a message to its storage record. The message's own
// timestamp is preserved when set; messages that never had one (fresh engine
// output) are stamped now. Without stable timestamps the age-based retention
// in Manager.Load would never trigger.
func serialize(m Message, now time.Time) store.MessageRecord {
	ts := m.CreatedAt
	if ts.IsZero() {
		ts = now
	}

	rec := store.MessageRecord{
		Type:      string(m.Role),
		Content:   m.Content,
		Timestamp: ts.UTC(),
	}

	if len(m.Extra) > 0 || len(m.ToolCalls) > 0 {
		rec.Extra = make(map[string]any, len(m.Extra)+1)
		for k, v := range m.Extra {
			rec.Extra[k] = v
		}
		if len(m.ToolCalls) > 0 {
			rec.Extra[extraToolCallsKey] = m.ToolCalls
		}
	}

	return rec
}

// deserialize converts a storage record back to a message. Unknown role tags
// fall back to RoleUser; tool calls are lifted out of the extra map when
// present, whatever shape JSON decoding left them in.
func deserialize(rec store.MessageRecord) Message {
	msg := Message{
		Role:      ParseRole(rec.Type),
		Content:   rec.Content,
		CreatedAt: rec.Timestamp,
	}

	if len(rec.Extra) == 0 {
		return msg
	}

	msg.Extra = make(map[string]any, len(rec.Extra))
	for k, v := range rec.Extra {
		if k == extraToolCallsKey {
			msg.ToolCalls = decodeToolCalls(v)
			continue
		}
		msg.Extra[k] = v
	}
	if len(msg.Extra) == 0 {
		msg.Extra = nil
	}

	return msg
}

// decodeToolCalls recovers []ToolCall from whatever the JSON round-trip left
// behind ([]ToolCall in memory, []any of maps after a load from disk).
func decodeToolCalls(v any) []ToolCall {
	if calls, ok := v.([]ToolCall); ok {
		return calls
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var calls []ToolCall
	if err := json.Unmarshal(raw, &calls); err != nil {
		return nil
	}
	return calls
}
