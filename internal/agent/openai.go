// ABOUTME: OpenAI-backed Engine implementation over the Chat Completions API
// ABOUTME: Plain-LLM engine; tool-using engines plug in behind the same interface

package agent

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

	"github.com/2389/inbox-agent/internal/history"
)

// defaultSystemPrompt frames every turn. The engine's answer is sent back
// as the email reply verbatim, so the prompt insists on HTML output and
// forbids the model from sending mail on its own.
const defaultSystemPrompt = `You are an intelligent email assistant. You receive emails and execute instructions.

INSTRUCTIONS:
1. Analyze each email carefully and determine what the sender wants done.
2. Complete the task and explain what you did; include any links as plain text.
3. DO NOT send a reply email yourself under any circumstances. Your response is delivered as the reply automatically.

RESPONSE FORMAT:
- Format your response in HTML (not markdown), using tags like <h2>, <p>, <ul>, <li>, <a>, <strong>.
- If an account connection is required, include the connection link as a clickable HTML link.

You have access to the full conversation history, so you can reference previous emails and context. Be helpful, efficient, and professional.`

// chatMessage is the wire shape of one chat completion message.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the minimal request shape for the Chat Completions endpoint.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

// chatResponse is the minimal response shape returned by the endpoint.
type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// OpenAIEngine is the bundled Engine: a single chat-completions call per
// turn, no tool execution. The tool router session is accepted for
// interface compatibility; engines that execute tools use its MCP URL.
type OpenAIEngine struct {
	apiKey       string
	baseURL      string
	model        string
	systemPrompt string
	httpClient   *http.Client
	logger       *slog.Logger
}

// OpenAIOption configures an OpenAIEngine.
type OpenAIOption func(*OpenAIEngine)

// WithSystemPrompt overrides the default system prompt.
func WithSystemPrompt(prompt string) OpenAIOption {
	return func(e *OpenAIEngine) {
		e.systemPrompt = prompt
	}
}

// WithHTTPClient overrides the default HTTP client (used in tests).
func WithHTTPClient(hc *http.Client) OpenAIOption {
	return func(e *OpenAIEngine) {
		e.httpClient = hc
	}
}

// NewOpenAIEngine creates the bundled LLM engine.
func NewOpenAIEngine(apiKey, baseURL, model string, opts ...OpenAIOption) (*OpenAIEngine, error) {
	if apiKey == "" {
		return nil, errors.New("openai: api key must not be empty")
	}
	if model == "" {
		return nil, errors.New("openai: model must not be empty")
	}
	e := &OpenAIEngine{
		apiKey:       apiKey,
		baseURL:      strings.TrimRight(baseURL, "/"),
		model:        model,
		systemPrompt: defaultSystemPrompt,
		httpClient:   &http.Client{Timeout: 5 * time.Minute},
		logger:       slog.Default().With("component", "engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Run issues one chat completion and emits a single batch with the
// assistant's message. The channel closes when the turn completes or fails.
func (e *OpenAIEngine) Run(ctx context.Context, session *Session, messages []history.Message) (<-chan Batch, error) {
	if len(messages) == 0 {
		return nil, errors.New("openai: message list must not be empty")
	}

	out := make(chan Batch, 1)
	go func() {
		defer close(out)

		reply, err := e.complete(ctx, messages)
		if err != nil {
			out <- Batch{Err: err}
			return
		}
		out <- Batch{Messages: []history.Message{{
			Role:    history.RoleAssistant,
			Content: reply,
		}}}
	}()
	return out, nil
}

// complete performs the chat-completions request. The instruction prompt
// always leads; system messages from history (such as a retention digest)
// follow it, so long-lived threads keep the format and no-self-reply rules.
func (e *OpenAIEngine) complete(ctx context.Context, messages []history.Message) (string, error) {
	wire := make([]chatMessage, 0, len(messages)+1)
	wire = append(wire, chatMessage{Role: "system", Content: e.systemPrompt})
	for _, msg := range messages {
		wire = append(wire, chatMessage{Role: string(msg.Role), Content: msg.Content})
	}

	payload, err := json.Marshal(chatRequest{Model: e.model, Messages: wire})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	url := e.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling chat completions: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("chat completions returned status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("chat completions returned no choices")
	}

	e.logger.Debug("chat completion finished", "model", e.model, "messages", len(wire))
	return parsed.Choices[0].Message.Content, nil
}
