// ABOUTME: Tests for the websocket trigger subscription
// ABOUTME: Covers delivery, trigger-id filtering, and clean shutdown

package composio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTriggerServer serves a websocket endpoint that writes the given
// messages and then blocks until the client goes away.
func newTriggerServer(t *testing.T, messages []string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/ws/triggers", r.URL.Path)
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		for _, msg := range messages {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(msg)))
		}
		// Hold the connection open; reads detect client close
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSubscribe_DeliversMatchingEvents(t *testing.T) {
	srv := newTriggerServer(t, []string{
		`{"trigger_id":"trg_1","payload":{"subject":"first"}}`,
		`{"trigger_id":"trg_other","payload":{"subject":"ignored"}}`,
		`{"trigger_id":"trg_1","payload":{"subject":"second"}}`,
	})

	c, err := NewClient("ck_test", srv.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub, err := c.Subscribe(ctx, "trg_1")
	require.NoError(t, err)
	defer sub.Close()

	first := <-sub.Events()
	assert.Contains(t, string(first), `"first"`)

	second := <-sub.Events()
	assert.Contains(t, string(second), `"second"`)
}

func TestSubscribe_CloseEndsStream(t *testing.T) {
	srv := newTriggerServer(t, nil)

	c, err := NewClient("ck_test", srv.URL)
	require.NoError(t, err)

	sub, err := c.Subscribe(context.Background(), "trg_1")
	require.NoError(t, err)

	sub.Close()

	select {
	case _, open := <-sub.Events():
		assert.False(t, open, "events channel should close after Close")
	case <-time.After(2 * time.Second):
		t.Fatal("events channel did not close")
	}
}

func TestSubscribe_RequiresTriggerID(t *testing.T) {
	c, err := NewClient("ck_test", "http://localhost:0")
	require.NoError(t, err)

	_, err = c.Subscribe(context.Background(), "")
	require.Error(t, err)
}

func TestSubscribe_BadEndpointFailsFast(t *testing.T) {
	c, err := NewClient("ck_test", "http://127.0.0.1:1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err = c.Subscribe(ctx, "trg_1")
	require.Error(t, err)
}
