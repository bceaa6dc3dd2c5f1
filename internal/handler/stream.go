package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/inbox-triage/internal/inbox"
	"github.com/capitalize-ai/inbox-triage/internal/middleware"
	"github.com/capitalize-ai/inbox-triage/pkg/logger"
	"github.com/capitalize-ai/inbox-triage/pkg/metrics"
)

// HeartbeatInterval is how often an idle stream sends a heartbeat.
const HeartbeatInterval = 30 * time.Second

// HeartbeatEvent keeps idle connections open.
type HeartbeatEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

// StreamHandler handles SSE streaming endpoints.
type StreamHandler struct {
	session   *inbox.Session
	logger    *logger.Logger
	heartbeat time.Duration
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(session *inbox.Session, log *logger.Logger) *StreamHandler {
	return &StreamHandler{
		session:   session,
		logger:    log.Named("stream"),
		heartbeat: HeartbeatInterval,
	}
}

// Stream handles GET /api/v1/inbox/stream. It sends the current list and
// view snapshots, then a fresh snapshot after every change. Slow clients
// skip intermediate states and always receive the latest one.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	listCh := make(chan inbox.ListState, 1)
	viewCh := make(chan inbox.ViewState, 1)
	unsubList := h.session.List.Subscribe(func(st inbox.ListState) { offerLatest(listCh, st) })
	defer unsubList()
	unsubView := h.session.View.Subscribe(func(st inbox.ViewState) { offerLatest(viewCh, st) })
	defer unsubView()

	log := h.logger.With(zap.String("correlation_id", middleware.GetCorrelationID(ctx)))
	log.Info("SSE client connected")

	if err := sendSSEEvent(w, flusher, "list", h.session.List.Snapshot()); err != nil {
		return
	}
	if err := sendSSEEvent(w, flusher, "view", h.session.View.Snapshot()); err != nil {
		return
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		var err error
		select {
		case <-ctx.Done():
			log.Info("SSE client disconnected")
			return
		case st := <-listCh:
			err = sendSSEEvent(w, flusher, "list", st)
		case st := <-viewCh:
			err = sendSSEEvent(w, flusher, "view", st)
		case <-heartbeat.C:
			err = sendSSEEvent(w, flusher, "heartbeat", &HeartbeatEvent{Timestamp: time.Now()})
		}
		if err != nil {
			log.Debug("SSE write failed", zap.Error(err))
			return
		}
	}
}

// offerLatest puts v on a one-slot channel, replacing any unread value.
func offerLatest[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return err
	}
	flusher.Flush()

	return nil
}
