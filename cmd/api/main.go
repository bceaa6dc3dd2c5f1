// Package main is the entry point for the inbox API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/inbox-triage/internal/config"
	"github.com/capitalize-ai/inbox-triage/internal/connector"
	"github.com/capitalize-ai/inbox-triage/internal/handler"
	"github.com/capitalize-ai/inbox-triage/internal/inbox"
	"github.com/capitalize-ai/inbox-triage/internal/llm"
	"github.com/capitalize-ai/inbox-triage/internal/model"
	natsclient "github.com/capitalize-ai/inbox-triage/internal/nats"
	"github.com/capitalize-ai/inbox-triage/internal/suggest"
	"github.com/capitalize-ai/inbox-triage/pkg/logger"
	"github.com/capitalize-ai/inbox-triage/pkg/tracing"
)

// Version information set via ldflags at build time
var (
	version = "dev"
	commit  = "none"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.Build(logger.Options{Level: cfg.LogLevel, Development: cfg.IsDevelopment()})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	logger.SetGlobal(log)

	log.Info("starting inbox API server",
		zap.String("env", cfg.Env),
		zap.String("version", version),
		zap.String("commit", commit),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize tracing if enabled
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "inbox-triage", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer func() { _ = tracing.Shutdown(context.Background(), tp) }()
		}
	}

	if cfg.BeeperAccessToken == "" {
		log.Warn("BEEPER_ACCESS_TOKEN is not set; the inbox will report unauthorized")
	}

	// Upstream connector
	client := connector.NewClient(cfg.BeeperBaseURL, cfg.BeeperAccessToken, cfg.UpstreamTimeout)
	repo := connector.NewRepository(client, cfg.EnrichConcurrency, log)

	// Optional activity publishing
	var natsClient *natsclient.Client
	var activity inbox.ActivitySink
	if cfg.NATSURL != "" {
		natsClient, err = natsclient.Connect(natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Error("failed to connect to NATS", zap.Error(err))
			os.Exit(1)
		}
		defer natsClient.Close()
		activity = natsclient.NewPublisher(natsClient, cfg.NATSSubjectPrefix)
	}

	// Suggestions
	var suggestFn inbox.SuggestFunc
	if gen := newReplyGenerator(cfg, log); gen != nil {
		assembler := suggest.NewAssembler(repo, gen, cfg.SuggestionWindow, log)
		suggestFn = assembler.Loader
	} else {
		log.Warn("no LLM API key configured, reply suggestions disabled")
	}

	session := inbox.NewSession(ctx, inbox.SessionOptions{
		Repository: repo,
		Suggest:    suggestFn,
		Activity:   activity,
		ListOptions: model.ListConversationsOptions{
			IncludeMuted: cfg.IncludeMuted,
			Limit:        cfg.ConversationLimit,
		},
		MessageLimit:    cfg.MessageLimit,
		RefreshInterval: cfg.RefreshInterval,
		Logger:          log,
	})

	go func() {
		if err := session.Run(ctx); err != nil {
			log.Error("inbox refresh stopped", zap.Error(err))
		}
	}()

	router := handler.NewRouter(handler.RouterConfig{
		Session:           session,
		NATS:              natsClient,
		JWTSecret:         cfg.JWTSecret,
		AllowedOrigins:    cfg.AllowedOrigins,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
		Build:             handler.BuildInfo{Version: version, Commit: commit},
		Logger:            log,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}

// newReplyGenerator returns nil when no provider key is configured.
func newReplyGenerator(cfg *config.Config, log *logger.Logger) *llm.ReplyGenerator {
	provider, apiKey := cfg.LLMProvider()
	if provider == "" {
		return nil
	}

	client, err := llm.NewClient(llm.Provider(provider), apiKey)
	if err != nil {
		log.Warn("failed to create LLM client, suggestions disabled", zap.Error(err))
		return nil
	}

	log.Info("reply suggestions enabled", zap.String("provider", client.Name()))
	return llm.NewReplyGenerator(client, cfg.LLMModel, cfg.LLMMaxTokens, cfg.LLMTimeout)
}
