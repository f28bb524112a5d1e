// ABOUTME: Websocket subscription to Composio trigger deliveries
// ABOUTME: Reconnects with backoff and filters events to one trigger id

package composio

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// triggerEnvelope is the minimal wrapper Composio puts around a delivery;
// only the trigger identity is inspected here, the payload is passed through
// untouched.
type triggerEnvelope struct {
	TriggerID   string `json:"trigger_id"`
	TriggerSlug string `json:"trigger_slug"`
}

// Subscription is an active trigger subscription. Raw trigger events arrive
// on Events until the context given to Subscribe is cancelled or Close is
// called.
type Subscription struct {
	events chan json.RawMessage
	cancel context.CancelFunc
}

// Events returns the channel of raw trigger deliveries. The channel is
// closed when the subscription ends.
func (s *Subscription) Events() <-chan json.RawMessage {
	return s.events
}

// Close terminates the subscription.
func (s *Subscription) Close() {
	s.cancel()
}

// reconnection backoff bounds
const (
	minBackoff = time.Second
	maxBackoff = time.Minute
)

// Subscribe opens a websocket subscription for the given trigger id.
// Deliveries for other triggers on the same connection are ignored. The
// read loop reconnects with exponential backoff until ctx is cancelled.
func (c *Client) Subscribe(ctx context.Context, triggerID string) (*Subscription, error) {
	if triggerID == "" {
		return nil, fmt.Errorf("subscribing: trigger id must not be empty")
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		events: make(chan json.RawMessage, 16),
		cancel: cancel,
	}

	// Dial once synchronously so a bad endpoint or credential fails fast.
	conn, err := c.dial(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribing to trigger %s: %w", triggerID, err)
	}

	c.logger.Info("trigger subscription established", "trigger_id", triggerID)
	go c.readLoop(ctx, sub, conn, triggerID)
	return sub, nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	wsURL := strings.Replace(c.baseURL, "http", "ws", 1) + "/ws/triggers"

	header := http.Header{}
	header.Set("x-api-key", c.apiKey)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dialing %s (status %d): %w", wsURL, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dialing %s: %w", wsURL, err)
	}
	return conn, nil
}

// readLoop pumps trigger deliveries into the subscription channel,
// redialing on failure until the context ends.
func (c *Client) readLoop(ctx context.Context, sub *Subscription, conn *websocket.Conn, triggerID string) {
	defer close(sub.events)

	backoff := minBackoff
	for {
		c.pump(ctx, sub, conn, triggerID)
		if ctx.Err() != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}

			var err error
			conn, err = c.dial(ctx)
			if err != nil {
				c.logger.Warn("trigger reconnect failed", "error", err, "retry_in", backoff)
				backoff = min(backoff*2, maxBackoff)
				continue
			}
			c.logger.Info("trigger subscription re-established", "trigger_id", triggerID)
			backoff = minBackoff
			break
		}
	}
}

// pump reads one connection until it fails, forwarding matching deliveries.
// Context cancellation closes the connection to unblock the pending read.
func (c *Client) pump(ctx context.Context, sub *Subscription, conn *websocket.Conn, triggerID string) {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Warn("trigger stream read failed", "error", err)
			}
			return
		}

		var env triggerEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.Warn("discarding malformed trigger delivery", "error", err)
			continue
		}
		if env.TriggerID != "" && env.TriggerID != triggerID && env.TriggerSlug != triggerID {
			c.logger.Debug("ignoring delivery for other trigger", "trigger_id", env.TriggerID)
			continue
		}

		select {
		case sub.events <- json.RawMessage(data):
		case <-ctx.Done():
			return
		}
	}
}
