// ABOUTME: Tool router session provisioning for agent turns
// ABOUTME: Wraps Composio session creation with the configured toolkits

package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/2389/inbox-agent/internal/composio"
)

// SessionCreator defines what the session manager needs from the Composio
// client.
type SessionCreator interface {
	CreateToolRouterSession(ctx context.Context, userID string, toolkits []composio.Toolkit) (*composio.Session, error)
}

// SessionManager provisions per-user tool router sessions.
type SessionManager struct {
	client   SessionCreator
	toolkits []composio.Toolkit
	logger   *slog.Logger
}

// NewSessionManager creates a session manager exposing the given toolkit
// names. gmailAuthConfig is attached to the gmail toolkit when set.
func NewSessionManager(client SessionCreator, toolkitNames []string, gmailAuthConfig string, logger *slog.Logger) *SessionManager {
	if logger == nil {
		logger = slog.Default()
	}
	toolkits := make([]composio.Toolkit, 0, len(toolkitNames))
	for _, name := range toolkitNames {
		tk := composio.Toolkit{Toolkit: name}
		if name == "gmail" {
			tk.AuthConfig = gmailAuthConfig
		}
		toolkits = append(toolkits, tk)
	}
	return &SessionManager{
		client:   client,
		toolkits: toolkits,
		logger:   logger.With("component", "session"),
	}
}

// CreateSession provisions a tool router session scoped to one user.
func (m *SessionManager) CreateSession(ctx context.Context, userID string) (*Session, error) {
	m.logger.Debug("creating tool router session", "user_id", userID)

	sess, err := m.client.CreateToolRouterSession(ctx, userID, m.toolkits)
	if err != nil {
		return nil, fmt.Errorf("creating session for %s: %w", userID, err)
	}

	m.logger.Info("tool router session created", "session_id", sess.ID, "user_id", userID)
	return &Session{ID: sess.ID, UserID: userID, MCPURL: sess.URL}, nil
}
