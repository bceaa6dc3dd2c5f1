package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/capitalize-ai/inbox-triage/internal/inbox"
	"github.com/capitalize-ai/inbox-triage/internal/middleware"
	"github.com/capitalize-ai/inbox-triage/internal/model"
	"github.com/capitalize-ai/inbox-triage/pkg/logger"
)

// InboxHandler exposes the conversation list controller.
type InboxHandler struct {
	session *inbox.Session
	logger  *logger.Logger
}

// NewInboxHandler creates a new inbox handler.
func NewInboxHandler(session *inbox.Session, log *logger.Logger) *InboxHandler {
	return &InboxHandler{
		session: session,
		logger:  log.Named("inbox_handler"),
	}
}

// FilterRequest is the body of PUT /api/v1/inbox/filter.
type FilterRequest struct {
	Filter string `json:"filter"`
}

// ChatRequest names a conversation.
type ChatRequest struct {
	ChatID string `json:"chat_id"`
}

// MoveRequest is the body of POST /api/v1/inbox/move.
type MoveRequest struct {
	Direction string `json:"direction"`
}

// KeyRequest is the body of POST /api/v1/keys.
type KeyRequest struct {
	Key string `json:"key"`
}

// KeyResponse reports a dispatched key and the resulting state.
type KeyResponse struct {
	Handled bool            `json:"handled"`
	Scope   string          `json:"scope"`
	Error   string          `json:"error,omitempty"`
	List    inbox.ListState `json:"list"`
	View    inbox.ViewState `json:"view"`
}

// Get handles GET /api/v1/inbox
func (h *InboxHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session.List.Snapshot())
}

// Refresh handles POST /api/v1/inbox/refresh
func (h *InboxHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.session.List.Refresh(r.Context()); err != nil {
		writeFailure(w, h.logger, "failed to refresh conversations", err)
		return
	}
	writeJSON(w, http.StatusOK, h.session.List.Snapshot())
}

// SetFilter handles PUT /api/v1/inbox/filter
func (h *InboxHandler) SetFilter(w http.ResponseWriter, r *http.Request) {
	var req FilterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	f, ok := model.ParseFilter(req.Filter)
	if !ok {
		writeError(w, http.StatusBadRequest, "filter must be one of: unresponded, all")
		return
	}
	if err := h.session.List.SetFilter(f); err != nil {
		writeFailure(w, h.logger, "failed to set filter", err)
		return
	}
	writeJSON(w, http.StatusOK, h.session.List.Snapshot())
}

// Select handles POST /api/v1/inbox/select
func (h *InboxHandler) Select(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := middleware.ValidateChatID(req.ChatID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !h.session.List.Select(req.ChatID) {
		writeError(w, http.StatusNotFound, "conversation not in current view")
		return
	}
	writeJSON(w, http.StatusOK, h.session.List.Snapshot())
}

// Move handles POST /api/v1/inbox/move
func (h *InboxHandler) Move(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	dir, ok := inbox.ParseDirection(req.Direction)
	if !ok {
		writeError(w, http.StatusBadRequest, "direction must be one of: prev, next")
		return
	}
	h.session.List.MoveSelection(dir)
	writeJSON(w, http.StatusOK, h.session.List.Snapshot())
}

// Archive handles POST /api/v1/inbox/archive. Without a chat_id the
// selected conversation is archived.
func (h *InboxHandler) Archive(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	chatID := req.ChatID
	if chatID == "" {
		chatID = h.session.List.Selected()
	}
	if err := middleware.ValidateChatID(chatID); err != nil {
		writeError(w, http.StatusBadRequest, "no conversation selected")
		return
	}

	if err := h.session.List.Archive(r.Context(), chatID); err != nil {
		writeFailure(w, h.logger, "failed to archive conversation", err)
		return
	}
	writeJSON(w, http.StatusOK, h.session.List.Snapshot())
}

// Key handles POST /api/v1/keys
func (h *InboxHandler) Key(w http.ResponseWriter, r *http.Request) {
	var req KeyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := middleware.ValidateKey(req.Key); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	handled, err := h.session.Key(r.Context(), req.Key)
	resp := KeyResponse{
		Handled: handled,
		Scope:   h.session.Keys.Active(),
		List:    h.session.List.Snapshot(),
		View:    h.session.View.Snapshot(),
	}
	if err != nil {
		// The command ran and its failure is already in the snapshots.
		h.logger.Debug("shortcut failed", zap.String("key", req.Key), zap.Error(err))
		resp.Error = err.Error()
		writeJSON(w, statusFor(err), resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
