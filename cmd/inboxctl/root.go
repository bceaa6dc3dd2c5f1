package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/capitalize-ai/inbox-triage/internal/config"
	"github.com/capitalize-ai/inbox-triage/internal/connector"
	"github.com/capitalize-ai/inbox-triage/internal/inbox"
	"github.com/capitalize-ai/inbox-triage/internal/llm"
	"github.com/capitalize-ai/inbox-triage/internal/suggest"
	"github.com/capitalize-ai/inbox-triage/pkg/logger"
)

var (
	debugMode bool
	timeout   time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "inboxctl",
	Short: "Triage a chat inbox from the command line",
	Long: `inboxctl talks to the local chat connector to list conversations that
need a reply, read their messages, draft a reply suggestion, send a message
or archive a conversation.

Configuration is read from the environment (and .env files) exactly like
the API server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Log to stderr at debug level")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Deadline for the whole command")
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	rootCmd.Version = version
	rootCmd.SetVersionTemplate(versionTemplate())
	return rootCmd.ExecuteContext(ctx)
}

func versionTemplate() string {
	if commit != "none" && commit != "" {
		return fmt.Sprintf("inboxctl %s (%s)\n", version, commit)
	}
	return fmt.Sprintf("inboxctl %s\n", version)
}

// app is what every subcommand works against.
type app struct {
	cfg       *config.Config
	repo      inbox.Repository
	generator suggest.Generator // nil when no LLM key is configured
	logger    *logger.Logger
}

// openApp builds the app from configuration. Tests replace it.
var openApp = func() (*app, error) {
	cfg := config.Load()

	log := logger.Nop()
	if debugMode {
		var err error
		if log, err = logger.NewDevelopment(); err != nil {
			return nil, fmt.Errorf("error creating logger: %w", err)
		}
	}

	client := connector.NewClient(cfg.BeeperBaseURL, cfg.BeeperAccessToken, cfg.UpstreamTimeout)
	a := &app{
		cfg:    cfg,
		repo:   connector.NewRepository(client, cfg.EnrichConcurrency, log),
		logger: log,
	}

	if provider, apiKey := cfg.LLMProvider(); provider != "" {
		c, err := llm.NewClient(llm.Provider(provider), apiKey)
		if err != nil {
			return nil, fmt.Errorf("error creating LLM client: %w", err)
		}
		a.generator = llm.NewReplyGenerator(c, cfg.LLMModel, cfg.LLMMaxTokens, cfg.LLMTimeout)
	}

	return a, nil
}

// withApp adapts a subcommand body to cobra, applying the command deadline.
func withApp(run func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer func() { _ = a.logger.Sync() }()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		return run(ctx, cmd, a, args)
	}
}
