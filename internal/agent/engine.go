// ABOUTME: Engine interface and streaming batch types for agent execution
// ABOUTME: The tool-using reasoning component lives behind this boundary

package agent

import (
	"context"

	"github.com/2389/inbox-agent/internal/history"
)

// Batch is one increment of engine output. A turn drains batches until the
// channel closes; a batch carrying Err aborts the turn.
type Batch struct {
	Messages []history.Message
	Err      error
}

// Session is a provisioned tool router session for one user. MCPURL is the
// endpoint through which the engine discovers and executes tools.
type Session struct {
	ID     string
	UserID string
	MCPURL string
}

// Engine executes one agent turn: given the bounded conversation history
// (newest inbound message last), it produces an asynchronous sequence of
// message batches. Implementations must close the channel when the turn is
// complete and must honor ctx cancellation.
type Engine interface {
	Run(ctx context.Context, session *Session, messages []history.Message) (<-chan Batch, error)
}
