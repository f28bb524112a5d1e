// ABOUTME: HTTP client for the Composio API: tool execution, replies, tool router sessions
// ABOUTME: Thin pass-through surface; all retries and reasoning live elsewhere

package composio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("composio: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

// Client is a focused Composio API client covering the three calls this
// agent makes: execute a tool, reply to a mail thread, and create a tool
// router session.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client (used in tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Composio client for the given API key and base URL.
func NewClient(apiKey, baseURL string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("composio: api key must not be empty")
	}
	c := &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default().With("component", "composio"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// toolExecuteRequest is the request body for tool execution.
type toolExecuteRequest struct {
	ConnectedAccountID string         `json:"connected_account_id,omitempty"`
	Arguments          map[string]any `json:"arguments"`
	UserID             string         `json:"user_id,omitempty"`
}

// toolExecuteResponse is the minimal response shape for tool execution.
type toolExecuteResponse struct {
	Successful bool            `json:"successful"`
	Error      string          `json:"error,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// ExecuteTool runs a single Composio tool by slug and returns its raw data
// payload.
func (c *Client) ExecuteTool(ctx context.Context, slug, connectedAccountID string, args map[string]any) (json.RawMessage, error) {
	body := toolExecuteRequest{
		ConnectedAccountID: connectedAccountID,
		Arguments:          args,
		UserID:             "me",
	}

	var result toolExecuteResponse
	url := fmt.Sprintf("%s/api/v3/tools/execute/%s", c.baseURL, slug)
	if err := c.postJSON(ctx, url, body, &result); err != nil {
		return nil, fmt.Errorf("executing tool %s: %w", slug, err)
	}
	if !result.Successful {
		return nil, fmt.Errorf("executing tool %s: %s", slug, result.Error)
	}
	return result.Data, nil
}

// ReplyToThread sends an HTML reply on an existing mail thread through the
// connected Gmail account.
func (c *Client) ReplyToThread(ctx context.Context, connectedAccountID, threadID, recipient, htmlBody string) error {
	c.logger.Info("sending reply", "thread_id", threadID, "recipient", recipient)

	_, err := c.ExecuteTool(ctx, "GMAIL_REPLY_TO_THREAD", connectedAccountID, map[string]any{
		"thread_id":       threadID,
		"recipient_email": recipient,
		"message_body":    htmlBody,
		"is_html":         true,
		"user_id":         "me",
	})
	if err != nil {
		return fmt.Errorf("replying to thread %s: %w", threadID, err)
	}

	c.logger.Info("reply sent", "thread_id", threadID)
	return nil
}

// Toolkit names a toolkit to expose through a tool router session, with its
// auth config when connections are managed manually.
type Toolkit struct {
	Toolkit    string `json:"toolkit"`
	AuthConfig string `json:"auth_config,omitempty"`
}

// Session is a created tool router session. URL is the MCP endpoint an
// agent engine connects to for tool discovery and execution.
type Session struct {
	ID  string `json:"session_id"`
	URL string `json:"url"`
}

type createSessionRequest struct {
	UserID                    string    `json:"user_id"`
	Toolkits                  []Toolkit `json:"toolkits"`
	ManuallyManageConnections bool      `json:"manually_manage_connections"`
}

// CreateToolRouterSession creates a tool router session scoped to one user.
func (c *Client) CreateToolRouterSession(ctx context.Context, userID string, toolkits []Toolkit) (*Session, error) {
	body := createSessionRequest{
		UserID:                    userID,
		Toolkits:                  toolkits,
		ManuallyManageConnections: true,
	}

	var session Session
	url := c.baseURL + "/api/v3/tool_router/sessions"
	if err := c.postJSON(ctx, url, body, &session); err != nil {
		return nil, fmt.Errorf("creating tool router session: %w", err)
	}

	c.logger.Debug("tool router session created", "session_id", session.ID)
	return &session, nil
}

// postJSON issues an authenticated POST and decodes the JSON response into out.
func (c *Client) postJSON(ctx context.Context, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPStatusError{StatusCode: resp.StatusCode, URL: url, Body: strings.TrimSpace(string(data))}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
