// ABOUTME: Tests for tool router session provisioning
// ABOUTME: Verifies toolkit assembly and error propagation

package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/inbox-agent/internal/composio"
)

type fakeSessionCreator struct {
	gotUserID   string
	gotToolkits []composio.Toolkit
	session     *composio.Session
	err         error
}

func (f *fakeSessionCreator) CreateToolRouterSession(ctx context.Context, userID string, toolkits []composio.Toolkit) (*composio.Session, error) {
	f.gotUserID = userID
	f.gotToolkits = toolkits
	return f.session, f.err
}

func TestSessionManager_CreateSession(t *testing.T) {
	fake := &fakeSessionCreator{
		session: &composio.Session{ID: "sess_1", URL: "https://mcp.example/sess_1"},
	}
	mgr := NewSessionManager(fake, []string{"gmail", "slack"}, "ac_gmail", nil)

	sess, err := mgr.CreateSession(context.Background(), "alice@example.com")
	require.NoError(t, err)

	assert.Equal(t, "sess_1", sess.ID)
	assert.Equal(t, "alice@example.com", sess.UserID)
	assert.Equal(t, "https://mcp.example/sess_1", sess.MCPURL)

	assert.Equal(t, "alice@example.com", fake.gotUserID)
	require.Len(t, fake.gotToolkits, 2)
	assert.Equal(t, composio.Toolkit{Toolkit: "gmail", AuthConfig: "ac_gmail"}, fake.gotToolkits[0])
	assert.Equal(t, composio.Toolkit{Toolkit: "slack"}, fake.gotToolkits[1])
}

func TestSessionManager_CreateSessionError(t *testing.T) {
	fake := &fakeSessionCreator{err: errors.New("backend down")}
	mgr := NewSessionManager(fake, []string{"gmail"}, "", nil)

	_, err := mgr.CreateSession(context.Background(), "bob@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bob@example.com")
}
