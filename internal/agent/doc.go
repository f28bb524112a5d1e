// ABOUTME: Agent execution boundary: engine interface, sessions, OpenAI engine
// ABOUTME: Turns conversation history into streamed batches of new messages

// Package agent runs one reasoning turn per inbound email.
//
// The Engine interface is the seam between the mail handler and whatever
// does the actual thinking. The bundled OpenAIEngine makes a single chat
// completion call; a tool-executing engine would connect to the session's
// MCP URL and stream multiple batches as it works. The handler treats both
// identically: drain batches until the channel closes, persist everything.
//
// SessionManager provisions the per-user tool router session that scopes
// which connected accounts and toolkits a turn may touch.
package agent
