package handler

import (
	"net/http"

	natsclient "github.com/capitalize-ai/inbox-triage/internal/nats"
)

// FatalChecker reports a session-ending error.
type FatalChecker interface {
	Fatal() error
}

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	session    FatalChecker
	natsClient *natsclient.Client
	build      BuildInfo
}

// NewHealthHandler creates a new health handler. natsClient is nil when
// activity publishing is disabled.
func NewHealthHandler(session FatalChecker, natsClient *natsclient.Client, build BuildInfo) *HealthHandler {
	if build.Version == "" {
		build.Version = "dev"
	}
	return &HealthHandler{
		session:    session,
		natsClient: natsClient,
		build:      build,
	}
}

// Version handles GET /version
func (h *HealthHandler) Version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.build)
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Fatal(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "upstream credentials rejected",
		})
		return
	}

	if h.natsClient != nil && !h.natsClient.IsConnected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "NATS not connected",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
