// Package config handles configuration loading for inbox-agent.
//
// # Overview
//
// Configuration is loaded from a YAML file with environment variable
// expansion, or assembled entirely from environment variables when no file
// is given. Every optional value has a documented default; the database
// path, Composio API key and trigger id are required for listen mode and
// their absence is a fatal startup error.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	composio:
//	  api_key: "${COMPOSIO_API_KEY}"
//
// # Environment Fallbacks
//
// Fields left empty by the file fall back to the deployment environment:
//
//	mailbox.address            GMAIL_USER_ID
//	mailbox.trigger_id         GMAIL_TRIGGER_ID
//	database.path              DATABASE_URL
//	composio.api_key           COMPOSIO_API_KEY
//	composio.gmail_auth_config GMAIL_AUTH_CONFIG
//	openai.api_key             OPENAI_API_KEY
//
// # Configuration Sections
//
// Mailbox identity and loop prevention:
//
//	mailbox:
//	  address: "assistant@example.com"
//	  trigger_id: "trg_abc123"
//
// Database:
//
//	database:
//	  path: "/var/lib/inbox-agent/conversations.db"
//
// Agent execution:
//
//	agent:
//	  timeout: "5m"
//	  toolkits: ["gmail"]
//
// Context windowing and retention:
//
//	context:
//	  recent_window_size: 10
//	  summarize_after_hours: 48
//	  drop_after_days: 7
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "json"  # text, json
package config
