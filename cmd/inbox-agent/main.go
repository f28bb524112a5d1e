// ABOUTME: Entry point for the inbox-agent email automation assistant
// ABOUTME: Runs the trigger listener or an interactive chat loop for local testing

package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/2389/inbox-agent/internal/agent"
	"github.com/2389/inbox-agent/internal/composio"
	"github.com/2389/inbox-agent/internal/config"
	"github.com/2389/inbox-agent/internal/dedupe"
	"github.com/2389/inbox-agent/internal/history"
	"github.com/2389/inbox-agent/internal/mail"
	"github.com/2389/inbox-agent/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
  _       _                                      _
 (_)_ __ | |__   _____  __     __ _  __ _  ___ _ __ | |_
 | | '_ \| '_ \ / _ \ \/ /____/ _' |/ _' |/ _ \ '_ \| __|
 | | | | | |_) | (_) >  <_____| (_| | (_| |  __/ | | | |_
 |_|_| |_|_.__/ \___/_/\_\     \__,_|\__, |\___|_| |_|\__|
                                     |___/
`

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "inbox-agent",
		Short:         "Email-triggered automation assistant",
		Long:          "inbox-agent watches a mailbox and executes emailed instructions with a tool-using agent.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), configPath)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (default: environment variables)")

	listenCmd := &cobra.Command{
		Use:   "listen",
		Short: "Listen for inbound email triggers and process them",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListen(cmd.Context(), configPath)
		},
	}
	rootCmd.AddCommand(listenCmd)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runListen starts the production loop: subscribe to the mailbox trigger and
// process each delivery concurrently, one goroutine per event.
func runListen(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	cyan.Print(banner)
	gray.Printf("    version: %s\n\n", version)

	logger.Info("starting inbox-agent",
		"mailbox", cfg.Mailbox.Address,
		"trigger_id", cfg.Mailbox.TriggerID,
		"database", cfg.Database.Path,
	)

	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	client, err := composio.NewClient(cfg.Composio.APIKey, cfg.Composio.BaseURL,
		composio.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("creating composio client: %w", err)
	}

	engine, err := agent.NewOpenAIEngine(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	handler := newHandler(cfg, db, engine,
		agent.NewSessionManager(client, cfg.Agent.Toolkits, cfg.Composio.GmailAuthConfig, logger),
		client, logger)

	sub, err := client.Subscribe(ctx, cfg.Mailbox.TriggerID)
	if err != nil {
		return fmt.Errorf("subscribing to trigger: %w", err)
	}
	defer sub.Close()

	var wg sync.WaitGroup
	for raw := range sub.Events() {
		raw := raw
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := handler.HandleRaw(ctx, raw); err != nil {
				logger.Error("trigger processing failed", "error", err)
			}
		}()
	}
	wg.Wait()

	logger.Info("inbox-agent stopped")
	return nil
}

// runChat starts an interactive loop against the same turn pipeline, with
// replies printed to the terminal instead of sent as email. Useful for
// exercising prompts and history without a mailbox.
func runChat(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "inbox-agent.db"
	}

	logger := setupLogger(config.LoggingConfig{Level: cfg.Logging.Level, Format: "text"})
	slog.SetDefault(logger)

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	engine, err := agent.NewOpenAIEngine(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	handler := newHandler(cfg, db, engine, localSessions{}, terminalReplier{}, logger)

	reader := bufio.NewReader(os.Stdin)
	fmt.Print("Your email address: ")
	userID, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("reading user id: %w", err)
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		userID = "local@example.com"
	}
	threadID := uuid.New().String()

	gray := color.New(color.FgHiBlack)
	gray.Println("Type a message and press enter. quit/exit/q to leave.")

	for {
		green := color.New(color.FgGreen)
		green.Print("> ")

		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println()
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" || line == "q" {
			return nil
		}

		evt := &mail.TriggerEvent{
			SenderEmail: userID,
			Subject:     "Chat message",
			Body:        line,
			ThreadID:    threadID,
			MessageID:   uuid.New().String(),
		}
		if err := handler.Handle(ctx, evt); err != nil {
			color.Red("turn failed: %v", err)
		}
	}
}

// dedupe bounds for redelivered trigger events
const (
	dedupeTTL     = 30 * time.Minute
	dedupeMaxSize = 1000
)

// newHandler assembles the turn pipeline shared by both commands.
func newHandler(cfg *config.Config, db *store.SQLiteStore, engine agent.Engine, sessions mail.SessionProvider, replier mail.Replier, logger *slog.Logger) *mail.Handler {
	hist := history.NewManager(db, history.Config{
		RecentWindowSize:    cfg.Context.RecentWindowSize,
		SummarizeAfterHours: cfg.Context.SummarizeAfterHours,
		DropAfterDays:       cfg.Context.DropAfterDays,
	}, logger)

	return mail.NewHandler(hist, engine, sessions, replier,
		dedupe.New(dedupeTTL, dedupeMaxSize),
		mail.HandlerConfig{
			MailboxAddress: cfg.Mailbox.Address,
			EngineTimeout:  cfg.Agent.Timeout,
		}, logger)
}

// localSessions satisfies the session dependency in chat mode, where no tool
// router backend is involved.
type localSessions struct{}

func (localSessions) CreateSession(ctx context.Context, userID string) (*agent.Session, error) {
	return &agent.Session{ID: uuid.New().String(), UserID: userID}, nil
}

// terminalReplier prints the reply instead of sending mail.
type terminalReplier struct{}

func (terminalReplier) ReplyToThread(ctx context.Context, connectedAccountID, threadID, recipient, htmlBody string) error {
	cyan := color.New(color.FgCyan)
	cyan.Println("\n--- reply ---")
	fmt.Println(htmlBody)
	cyan.Println("-------------")
	return nil
}
