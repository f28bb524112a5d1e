// Package composio speaks to the Composio API: the external surface this
// agent delegates to for everything that touches the outside world.
//
// Three calls cover the agent's needs:
//
//   - ExecuteTool / ReplyToThread: direct tool execution, used only for
//     sending the final email reply (GMAIL_REPLY_TO_THREAD with an HTML
//     body).
//   - CreateToolRouterSession: provisions a per-user tool router session;
//     the returned MCP URL is handed to the agent engine.
//   - Subscribe: a websocket subscription delivering inbound email trigger
//     events as raw JSON, reconnecting with backoff. Delivery is
//     at-least-once; consumers deduplicate by message id.
//
// The package is deliberately a thin pass-through: no retries on tool
// execution, no interpretation of payloads beyond trigger-id filtering.
package composio
