package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/inbox-triage/internal/inbox"
	"github.com/capitalize-ai/inbox-triage/internal/middleware"
	natsclient "github.com/capitalize-ai/inbox-triage/internal/nats"
	"github.com/capitalize-ai/inbox-triage/pkg/logger"
)

// RouterConfig holds what the HTTP surface needs.
type RouterConfig struct {
	Session           *inbox.Session
	NATS              *natsclient.Client // nil when publishing is disabled
	JWTSecret         string
	AllowedOrigins    []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	Build             BuildInfo
	Logger            *logger.Logger
}

// NewRouter builds the chi router for the API server.
func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = logger.Global()
	}

	healthHandler := NewHealthHandler(cfg.Session, cfg.NATS, cfg.Build)
	inboxHandler := NewInboxHandler(cfg.Session, log)
	viewHandler := NewViewHandler(cfg.Session, log)
	streamHandler := NewStreamHandler(cfg.Session, log)

	// Reads need a valid token; anything that changes inbox state also needs
	// the write scope. Both are no-ops without a secret.
	requireWrite := middleware.RequireScope(cfg.JWTSecret, middleware.ScopeWrite)

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Get("/version", healthHandler.Version)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		if cfg.RateLimitRequests > 0 {
			r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
		}

		r.With(requireWrite).Post("/keys", inboxHandler.Key)

		r.Route("/inbox", func(r chi.Router) {
			r.Get("/", inboxHandler.Get)
			r.Get("/stream", streamHandler.Stream)

			w := r.With(requireWrite)
			w.Post("/refresh", inboxHandler.Refresh)
			w.Put("/filter", inboxHandler.SetFilter)
			w.Post("/select", inboxHandler.Select)
			w.Post("/move", inboxHandler.Move)
			w.Post("/archive", inboxHandler.Archive)
		})

		r.Route("/view", func(r chi.Router) {
			r.Get("/", viewHandler.Get)

			w := r.With(requireWrite)
			w.Post("/open", viewHandler.Open)
			w.Put("/draft", viewHandler.SetDraft)
			w.Post("/send", viewHandler.Send)
			w.Post("/accept", viewHandler.Accept)
			w.Post("/archive", viewHandler.Archive)
			w.Post("/back", viewHandler.Back)
			w.Post("/focus", viewHandler.Focus)
			w.Post("/unfocus", viewHandler.Unfocus)
		})
	})

	return r
}
