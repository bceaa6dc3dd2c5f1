package handler

import (
	"net/http"

	"github.com/capitalize-ai/inbox-triage/internal/inbox"
	"github.com/capitalize-ai/inbox-triage/internal/middleware"
	"github.com/capitalize-ai/inbox-triage/pkg/logger"
)

// ViewHandler exposes the open conversation controller.
type ViewHandler struct {
	session *inbox.Session
	logger  *logger.Logger
}

// NewViewHandler creates a new view handler.
func NewViewHandler(session *inbox.Session, log *logger.Logger) *ViewHandler {
	return &ViewHandler{
		session: session,
		logger:  log.Named("view_handler"),
	}
}

// DraftRequest is the body of PUT /api/v1/view/draft.
type DraftRequest struct {
	Text string `json:"text"`
}

// SendRequest is the optional body of POST /api/v1/view/send. A text
// replaces the draft before sending.
type SendRequest struct {
	Text *string `json:"text,omitempty"`
}

// Get handles GET /api/v1/view
func (h *ViewHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session.View.Snapshot())
}

// Open handles POST /api/v1/view/open
func (h *ViewHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := middleware.ValidateChatID(req.ChatID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.session.Open(r.Context(), req.ChatID); err != nil {
		writeFailure(w, h.logger, "failed to load messages", err)
		return
	}
	writeJSON(w, http.StatusOK, h.session.View.Snapshot())
}

// SetDraft handles PUT /api/v1/view/draft
func (h *ViewHandler) SetDraft(w http.ResponseWriter, r *http.Request) {
	var req DraftRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := middleware.ValidateDraft(req.Text); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.session.View.SetDraft(req.Text)
	writeJSON(w, http.StatusOK, h.session.View.Snapshot())
}

// Send handles POST /api/v1/view/send
func (h *ViewHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	if req.Text != nil {
		if err := middleware.ValidateMessageText(*req.Text); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.session.View.SetDraft(*req.Text)
	}

	if err := h.session.Send(r.Context()); err != nil {
		writeFailure(w, h.logger, "failed to send message", err)
		return
	}
	writeJSON(w, http.StatusOK, h.session.View.Snapshot())
}

// Accept handles POST /api/v1/view/accept
func (h *ViewHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.session.View.AcceptSuggestion()
	writeJSON(w, http.StatusOK, h.session.View.Snapshot())
}

// Archive handles POST /api/v1/view/archive
func (h *ViewHandler) Archive(w http.ResponseWriter, r *http.Request) {
	if err := h.session.ArchiveOpen(r.Context()); err != nil {
		writeFailure(w, h.logger, "failed to archive conversation", err)
		return
	}
	writeJSON(w, http.StatusOK, h.session.View.Snapshot())
}

// Back handles POST /api/v1/view/back
func (h *ViewHandler) Back(w http.ResponseWriter, r *http.Request) {
	h.session.Back()
	writeJSON(w, http.StatusOK, h.session.List.Snapshot())
}

// Focus handles POST /api/v1/view/focus
func (h *ViewHandler) Focus(w http.ResponseWriter, r *http.Request) {
	h.session.View.FocusInput()
	writeJSON(w, http.StatusOK, h.session.View.Snapshot())
}

// Unfocus handles POST /api/v1/view/unfocus
func (h *ViewHandler) Unfocus(w http.ResponseWriter, r *http.Request) {
	h.session.View.Unfocus()
	writeJSON(w, http.StatusOK, h.session.View.Snapshot())
}
