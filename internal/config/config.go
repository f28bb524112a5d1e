// ABOUTME: Configuration loading and parsing for inbox-agent
// ABOUTME: Supports YAML files with environment variable expansion plus env-only fallback

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete inbox-agent configuration
type Config struct {
	Mailbox  MailboxConfig  `yaml:"mailbox"`
	Database DatabaseConfig `yaml:"database"`
	Composio ComposioConfig `yaml:"composio"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Agent    AgentConfig    `yaml:"agent"`
	Context  ContextConfig  `yaml:"context"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// MailboxConfig identifies the monitored inbox
type MailboxConfig struct {
	// Address is the assistant's own mailbox. Inbound mail from this address
	// is skipped entirely to prevent reply loops.
	Address string `yaml:"address"`

	// TriggerID is the Composio trigger subscription to listen on
	TriggerID string `yaml:"trigger_id"`
}

// DatabaseConfig holds conversation database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ComposioConfig holds Composio API credentials
type ComposioConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`

	// GmailAuthConfig is the auth config id passed when creating
	// tool router sessions
	GmailAuthConfig string `yaml:"gmail_auth_config"`
}

// OpenAIConfig holds credentials for the bundled LLM engine
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// AgentConfig holds per-turn agent execution settings
type AgentConfig struct {
	Timeout time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	TimeoutRaw string `yaml:"timeout"`

	// Toolkits lists the Composio toolkits exposed through the tool router
	Toolkits []string `yaml:"toolkits"`
}

// ContextConfig holds conversation windowing and retention settings
type ContextConfig struct {
	RecentWindowSize    int `yaml:"recent_window_size"`
	SummarizeAfterHours int `yaml:"summarize_after_hours"`
	DropAfterDays       int `yaml:"drop_after_days"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults applied when the file or environment leaves a value unset.
const (
	DefaultModel               = "gpt-5"
	DefaultComposioBaseURL     = "https://backend.composio.dev"
	DefaultOpenAIBaseURL       = "https://api.openai.com/v1"
	DefaultAgentTimeout        = 5 * time.Minute
	DefaultRecentWindowSize    = 10
	DefaultSummarizeAfterHours = 48
	DefaultDropAfterDays       = 7
)

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded. If path is empty,
// configuration is assembled from environment variables alone.
func Load(path string) (*Config, error) {
	if path == "" {
		return FromEnv()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyEnvFallbacks()
	cfg.applyDefaults()

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	return &cfg, nil
}

// FromEnv assembles a Config purely from process environment variables:
// GMAIL_USER_ID, GMAIL_TRIGGER_ID, DATABASE_URL, COMPOSIO_API_KEY,
// GMAIL_AUTH_CONFIG and OPENAI_API_KEY.
func FromEnv() (*Config, error) {
	var cfg Config
	cfg.applyEnvFallbacks()
	cfg.applyDefaults()

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}
	return &cfg, nil
}

// applyEnvFallbacks fills empty fields from well-known environment variables
func (c *Config) applyEnvFallbacks() {
	fallback(&c.Mailbox.Address, "GMAIL_USER_ID")
	fallback(&c.Mailbox.TriggerID, "GMAIL_TRIGGER_ID")
	fallback(&c.Database.Path, "DATABASE_URL")
	fallback(&c.Composio.APIKey, "COMPOSIO_API_KEY")
	fallback(&c.Composio.GmailAuthConfig, "GMAIL_AUTH_CONFIG")
	fallback(&c.OpenAI.APIKey, "OPENAI_API_KEY")
}

func fallback(field *string, env string) {
	if *field == "" {
		*field = os.Getenv(env)
	}
}

// applyDefaults fills unset values with documented defaults
func (c *Config) applyDefaults() {
	if c.Composio.BaseURL == "" {
		c.Composio.BaseURL = DefaultComposioBaseURL
	}
	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = DefaultOpenAIBaseURL
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = DefaultModel
	}
	if c.Context.RecentWindowSize == 0 {
		c.Context.RecentWindowSize = DefaultRecentWindowSize
	}
	if c.Context.SummarizeAfterHours == 0 {
		c.Context.SummarizeAfterHours = DefaultSummarizeAfterHours
	}
	if c.Context.DropAfterDays == 0 {
		c.Context.DropAfterDays = DefaultDropAfterDays
	}
	if len(c.Agent.Toolkits) == 0 {
		c.Agent.Toolkits = []string{"gmail"}
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment
// variable values. Unset variables are replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all fields required to run the trigger listener are
// present. A missing database path is a fatal startup error.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required (or set DATABASE_URL)")
	}
	if c.Composio.APIKey == "" {
		return fmt.Errorf("composio.api_key is required (or set COMPOSIO_API_KEY)")
	}
	if c.Mailbox.TriggerID == "" {
		return fmt.Errorf("mailbox.trigger_id is required (or set GMAIL_TRIGGER_ID)")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	if cfg.Agent.TimeoutRaw == "" {
		cfg.Agent.Timeout = DefaultAgentTimeout
		return nil
	}

	d, err := time.ParseDuration(cfg.Agent.TimeoutRaw)
	if err != nil {
		return fmt.Errorf("parsing agent timeout %q: %w", cfg.Agent.TimeoutRaw, err)
	}
	cfg.Agent.Timeout = d
	return nil
}
