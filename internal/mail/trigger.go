// ABOUTME: Inbound trigger payload parsing into a normalized event
// ABOUTME: Missing optional fields degrade to documented defaults, never fail

package mail

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Defaults applied when the trigger payload omits optional fields.
const (
	unknownSender  = "unknown@email.com"
	defaultSubject = "No Subject"
)

// TriggerEvent is the normalized view of one inbound email notification.
// It lives for a single turn and is never persisted.
type TriggerEvent struct {
	SenderEmail        string
	Subject            string
	Body               string
	ThreadID           string
	MessageID          string
	ConnectedAccountID string
}

// rawTrigger mirrors the nested delivery shape; only the fields the handler
// needs are decoded.
type rawTrigger struct {
	Payload struct {
		Sender      string `json:"sender"`
		Subject     string `json:"subject"`
		MessageText string `json:"message_text"`
		ThreadID    string `json:"thread_id"`
		MessageID   string `json:"message_id"`
	} `json:"payload"`
	Metadata struct {
		ConnectedAccount struct {
			ID string `json:"id"`
		} `json:"connected_account"`
	} `json:"metadata"`
}

// ParseTrigger decodes a raw trigger delivery into a TriggerEvent. Absent
// optional fields map to defaults; only malformed JSON is an error.
func ParseTrigger(raw []byte) (*TriggerEvent, error) {
	var rt rawTrigger
	if err := json.Unmarshal(raw, &rt); err != nil {
		return nil, fmt.Errorf("parsing trigger payload: %w", err)
	}

	evt := &TriggerEvent{
		SenderEmail:        ExtractAddress(rt.Payload.Sender),
		Subject:            rt.Payload.Subject,
		Body:               rt.Payload.MessageText,
		ThreadID:           rt.Payload.ThreadID,
		MessageID:          rt.Payload.MessageID,
		ConnectedAccountID: rt.Metadata.ConnectedAccount.ID,
	}
	if evt.Subject == "" {
		evt.Subject = defaultSubject
	}
	return evt, nil
}

// ExtractAddress strips a display-name decoration from a sender string:
// "Alice <alice@x.com>" yields "alice@x.com". A bare address passes through
// unchanged; an empty string yields the unknown-sender sentinel.
func ExtractAddress(sender string) string {
	sender = strings.TrimSpace(sender)
	if sender == "" {
		return unknownSender
	}

	open := strings.LastIndex(sender, "<")
	end := strings.LastIndex(sender, ">")
	if open >= 0 && end > open {
		if addr := strings.TrimSpace(sender[open+1 : end]); addr != "" {
			return addr
		}
	}
	return sender
}
