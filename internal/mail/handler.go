// ABOUTME: Per-email turn orchestration: load context, run engine, persist, reply
// ABOUTME: Loop prevention, duplicate suppression, and per-thread serialization live here

package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/2389/inbox-agent/internal/agent"
	"github.com/2389/inbox-agent/internal/dedupe"
	"github.com/2389/inbox-agent/internal/history"
)

// Replier sends the composed answer back on the original mail thread.
type Replier interface {
	ReplyToThread(ctx context.Context, connectedAccountID, threadID, recipient, htmlBody string) error
}

// SessionProvider provisions a tool router session for a turn.
type SessionProvider interface {
	CreateSession(ctx context.Context, userID string) (*agent.Session, error)
}

// ContextManager is the slice of the history manager the handler uses.
type ContextManager interface {
	Load(ctx context.Context, userID, threadID string) ([]history.Message, error)
	Save(ctx context.Context, userID, threadID, senderEmail string, messages []history.Message, pendingAction string) error
}

// Handler processes inbound trigger events end to end. All collaborators are
// injected; the handler owns only turn sequencing and thread serialization.
type Handler struct {
	history  ContextManager
	engine   agent.Engine
	sessions SessionProvider
	replier  Replier
	seen     *dedupe.Cache
	mailbox  string
	timeout  time.Duration
	logger   *slog.Logger

	mu    sync.Mutex
	locks map[string]*threadLock
}

// threadLock serializes turns for one (sender, thread) pair. refs counts
// waiters plus the holder so the entry can be evicted once idle.
type threadLock struct {
	mu   sync.Mutex
	refs int
}

// HandlerConfig carries the handler's policy knobs.
type HandlerConfig struct {
	// MailboxAddress is the assistant's own address, used for loop prevention.
	MailboxAddress string

	// EngineTimeout bounds one engine turn. Zero means no bound.
	EngineTimeout time.Duration
}

// NewHandler wires a turn handler from its collaborators.
func NewHandler(hist ContextManager, engine agent.Engine, sessions SessionProvider, replier Replier, seen *dedupe.Cache, cfg HandlerConfig, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		history:  hist,
		engine:   engine,
		sessions: sessions,
		replier:  replier,
		seen:     seen,
		mailbox:  cfg.MailboxAddress,
		timeout:  cfg.EngineTimeout,
		logger:   logger.With("component", "mail"),
		locks:    map[string]*threadLock{},
	}
}

// HandleRaw parses a raw trigger delivery and processes it.
func (h *Handler) HandleRaw(ctx context.Context, raw json.RawMessage) error {
	evt, err := ParseTrigger(raw)
	if err != nil {
		return err
	}
	return h.Handle(ctx, evt)
}

// Handle runs one turn for a normalized trigger event. Turns for the same
// (sender, thread) pair are serialized; distinct pairs run concurrently.
func (h *Handler) Handle(ctx context.Context, evt *TriggerEvent) error {
	logger := h.logger.With("sender", evt.SenderEmail, "thread_id", evt.ThreadID)

	if strings.EqualFold(evt.SenderEmail, h.mailbox) {
		logger.Info("ignoring own outbound message")
		return nil
	}

	unlock := h.lockThread(evt.SenderEmail, evt.ThreadID)
	defer unlock()

	// Checked under the thread lock: a redelivery racing the first copy
	// waits here and then sees the mark the first turn left behind.
	if evt.MessageID != "" && h.seen != nil && h.seen.Check(evt.MessageID) {
		logger.Info("ignoring duplicate delivery", "message_id", evt.MessageID)
		return nil
	}

	if err := h.turn(ctx, evt, logger); err != nil {
		return err
	}

	if evt.MessageID != "" && h.seen != nil {
		h.seen.Mark(evt.MessageID)
	}
	return nil
}

// turn is the serialized body of one email turn.
func (h *Handler) turn(ctx context.Context, evt *TriggerEvent, logger *slog.Logger) error {
	userID := evt.SenderEmail

	messages, err := h.history.Load(ctx, userID, evt.ThreadID)
	if err != nil {
		return fmt.Errorf("loading context: %w", err)
	}
	messages = append(messages, history.Message{
		Role:    history.RoleUser,
		Content: frameInbound(evt),
	})

	session, err := h.sessions.CreateSession(ctx, userID)
	if err != nil {
		return fmt.Errorf("provisioning session: %w", err)
	}

	reply, messages, err := h.runEngine(ctx, session, messages)
	if err != nil {
		return fmt.Errorf("running engine: %w", err)
	}

	if err := h.history.Save(ctx, userID, evt.ThreadID, evt.SenderEmail, messages, ""); err != nil {
		return fmt.Errorf("saving context: %w", err)
	}
	logger.Info("turn persisted", "messages", len(messages))

	// Persistence already happened; a reply failure must not undo it.
	if err := h.dispatchReply(ctx, evt, reply); err != nil {
		logger.Error("reply dispatch failed", "error", err)
	}
	return nil
}

// runEngine executes the engine under the configured timeout, draining all
// batches. It returns the reply text (last non-empty, non-tool-call message)
// and the full updated history.
func (h *Handler) runEngine(ctx context.Context, session *agent.Session, messages []history.Message) (string, []history.Message, error) {
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	batches, err := h.engine.Run(ctx, session, messages)
	if err != nil {
		return "", nil, err
	}

	var reply string
	for batch := range batches {
		if batch.Err != nil {
			return "", nil, batch.Err
		}
		for _, msg := range batch.Messages {
			messages = append(messages, msg)
			if !msg.IsToolCall() && strings.TrimSpace(msg.Content) != "" {
				reply = msg.Content
			}
		}
	}
	return reply, messages, nil
}

// dispatchReply sends the reply when there is somewhere to send it.
func (h *Handler) dispatchReply(ctx context.Context, evt *TriggerEvent, reply string) error {
	if evt.ThreadID == "" || strings.TrimSpace(reply) == "" {
		h.logger.Debug("nothing to reply with", "thread_id", evt.ThreadID)
		return nil
	}

	html, err := renderReplyHTML(reply)
	if err != nil {
		return err
	}
	return h.replier.ReplyToThread(ctx, evt.ConnectedAccountID, evt.ThreadID, evt.SenderEmail, html)
}

// lockThread acquires the per-(sender, thread) mutex and returns its release
// function. Entries are dropped from the map once the last holder releases,
// so a long-running listener does not accumulate a lock per thread it ever
// touched.
func (h *Handler) lockThread(userID, threadID string) func() {
	key := userID + "\x00" + threadID

	h.mu.Lock()
	lock, ok := h.locks[key]
	if !ok {
		lock = &threadLock{}
		h.locks[key] = lock
	}
	lock.refs++
	h.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()

		h.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(h.locks, key)
		}
		h.mu.Unlock()
	}
}

// frameInbound wraps the inbound email so the engine sees the task framing
// along with subject and sender.
func frameInbound(evt *TriggerEvent) string {
	return fmt.Sprintf(
		"Process this email and execute the instructions:\n\nSubject: %s\n\nFrom: %s\n\n%s",
		evt.Subject, evt.SenderEmail, evt.Body)
}
