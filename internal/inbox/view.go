package inbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/capitalize-ai/inbox-triage/internal/model"
	"github.com/capitalize-ai/inbox-triage/internal/state"
	"github.com/capitalize-ai/inbox-triage/internal/suggest"
	"github.com/capitalize-ai/inbox-triage/pkg/logger"
	"github.com/capitalize-ai/inbox-triage/pkg/metrics"
)

// ViewPhase is the message load state of the open conversation.
type ViewPhase string

const (
	PhaseIdle    ViewPhase = "idle"
	PhaseLoading ViewPhase = "loading"
	PhaseReady   ViewPhase = "ready"
	PhaseFailed  ViewPhase = "failed"
)

// NavKind is a navigation request raised by a controller command.
type NavKind string

const (
	NavNone NavKind = ""
	NavOpen NavKind = "open"
	NavList NavKind = "list"
)

// Navigation tells the session where to go after a command.
type Navigation struct {
	Kind   NavKind `json:"kind,omitempty"`
	ChatID string  `json:"chat_id,omitempty"`
}

// SuggestFunc binds a suggestion loader to a chat.
type SuggestFunc func(chatID string) suggest.Loader

// ViewState is a plain-data snapshot of the open conversation.
type ViewState struct {
	ChatID       string                `json:"chat_id,omitempty"`
	Title        string                `json:"title,omitempty"`
	Phase        ViewPhase             `json:"phase"`
	Messages     []model.Message       `json:"messages"`
	Error        string                `json:"error,omitempty"`
	Draft        string                `json:"draft"`
	InputFocused bool                  `json:"input_focused"`
	Sending      bool                  `json:"sending"`
	Suggestion   model.SuggestionEntry `json:"suggestion"`
}

// ViewController drives one open conversation: its messages, the reply
// draft, sending, and the cached suggestion. It is safe for concurrent use.
type ViewController struct {
	repo     Repository
	list     *ListController
	cache    *suggest.Cache
	suggest  SuggestFunc
	limit    int
	activity ActivitySink
	logger   *logger.Logger
	hub      *state.Hub[ViewState]

	mu sync.Mutex
	st ViewState
	// gen changes on every Open and Back so late results for a
	// conversation that is no longer open are dropped.
	gen uint64
	// sending holds chats with a send in flight. Open and Back leave it
	// alone so a reopened conversation still sees its send.
	sending map[string]struct{}

	// pubMu orders deliveries so subscribers never see an older snapshot
	// after a newer one.
	pubMu sync.Mutex
}

// NewViewController creates a view controller. A nil suggest func disables
// suggestions.
func NewViewController(repo Repository, list *ListController, cache *suggest.Cache, fn SuggestFunc, messageLimit int, activity ActivitySink, log *logger.Logger) *ViewController {
	if activity == nil {
		activity = nopSink{}
	}
	if log == nil {
		log = logger.Global()
	}
	if messageLimit <= 0 {
		messageLimit = 30
	}

	v := &ViewController{
		repo:     repo,
		list:     list,
		cache:    cache,
		suggest:  fn,
		limit:    messageLimit,
		activity: activity,
		logger:   log.Named("inbox_view"),
		hub:      state.NewHub[ViewState](),
		st:       ViewState{Phase: PhaseIdle},
		sending:  make(map[string]struct{}),
	}

	cache.Subscribe(func(e model.SuggestionEntry) {
		if v.isOpen(e.ChatID) {
			v.publish()
		}
	})
	return v
}

// Open loads chatID's messages and, once there is at least one message,
// starts or reuses its suggestion.
func (v *ViewController) Open(ctx context.Context, chatID string) error {
	if strings.TrimSpace(chatID) == "" {
		return fmt.Errorf("chat ID is required: %w", model.ErrBadRequest)
	}

	title := "Unknown Chat"
	if conv, ok := v.list.Conversation(chatID); ok {
		title = conv.DisplayName()
	}

	v.mu.Lock()
	v.gen++
	gen := v.gen
	v.st = ViewState{ChatID: chatID, Title: title, Phase: PhaseLoading}
	v.mu.Unlock()
	v.publish()

	page, err := v.repo.ListMessages(ctx, chatID, v.limit)

	v.mu.Lock()
	if v.gen != gen {
		v.mu.Unlock()
		return nil
	}
	if err != nil {
		v.st.Phase = PhaseFailed
		v.st.Error = "Failed to load messages"
		v.mu.Unlock()

		v.logger.Warn("failed to load messages", zap.String("chat_id", chatID), zap.Error(err))
		v.publish()
		return err
	}
	v.st.Phase = PhaseReady
	v.st.Messages = page.Items
	v.mu.Unlock()

	if len(page.Items) > 0 && v.suggest != nil {
		v.cache.GetOrLoad(chatID, v.suggest(chatID))
	}
	v.publish()
	return nil
}

// FocusInput marks the reply input as focused.
func (v *ViewController) FocusInput() {
	v.setFocus(true)
}

// Unfocus releases the reply input.
func (v *ViewController) Unfocus() {
	v.setFocus(false)
}

func (v *ViewController) setFocus(focused bool) {
	v.mu.Lock()
	if v.st.ChatID == "" {
		v.mu.Unlock()
		return
	}
	v.st.InputFocused = focused
	v.mu.Unlock()
	v.publish()
}

// InputFocused reports whether the reply input has focus.
func (v *ViewController) InputFocused() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.st.InputFocused
}

// SetDraft replaces the reply draft.
func (v *ViewController) SetDraft(text string) {
	v.mu.Lock()
	if v.st.ChatID == "" {
		v.mu.Unlock()
		return
	}
	v.st.Draft = text
	v.mu.Unlock()
	v.publish()
}

// AcceptSuggestion copies a ready suggestion into the draft and focuses
// the input. It reports whether there was one.
func (v *ViewController) AcceptSuggestion() bool {
	v.mu.Lock()
	if v.st.ChatID == "" {
		v.mu.Unlock()
		return false
	}
	entry := v.cache.Get(v.st.ChatID)
	if entry.Status != model.SuggestionReady || entry.Text == "" {
		v.mu.Unlock()
		return false
	}
	v.st.Draft = entry.Text
	v.st.InputFocused = true
	v.mu.Unlock()

	v.publish()
	return true
}

// Send sends the draft. A blank draft or a send already in flight is a
// no-op. On success the draft and the cached suggestion are cleared and
// the caller is sent back to the list; on failure the draft is kept.
func (v *ViewController) Send(ctx context.Context) (Navigation, error) {
	v.mu.Lock()
	chatID, text, gen := v.st.ChatID, v.st.Draft, v.gen
	_, busy := v.sending[chatID]
	if chatID == "" || strings.TrimSpace(text) == "" || busy {
		v.mu.Unlock()
		return Navigation{}, nil
	}
	v.sending[chatID] = struct{}{}
	v.st.Error = ""
	v.mu.Unlock()
	v.publish()

	res, err := v.repo.SendMessage(ctx, chatID, text)

	v.mu.Lock()
	delete(v.sending, chatID)
	current := v.gen == gen
	if current {
		if err != nil {
			v.st.Error = "Failed to send message"
		} else {
			v.st.Draft = ""
			v.st.InputFocused = false
		}
	}
	v.mu.Unlock()

	if err != nil {
		metrics.MessagesSentTotal.WithLabelValues(errorLabel(err)).Inc()
		v.logger.Warn("failed to send message", zap.String("chat_id", chatID), zap.Error(err))
		v.publish()
		return Navigation{}, err
	}

	v.cache.Clear(chatID)
	metrics.MessagesSentTotal.WithLabelValues("success").Inc()
	v.logger.Info("message sent",
		zap.String("chat_id", chatID),
		zap.String("pending_message_id", res.PendingMessageID),
	)
	emit(ctx, v.activity, v.logger, newEvent(chatID, model.ActivityMessageSent, ""))
	v.publish()

	if !current {
		return Navigation{}, nil
	}
	return Navigation{Kind: NavList}, nil
}

// Archive archives the open conversation through the list controller and
// returns to the list on success.
func (v *ViewController) Archive(ctx context.Context) (Navigation, error) {
	v.mu.Lock()
	chatID := v.st.ChatID
	v.mu.Unlock()
	if chatID == "" {
		return Navigation{}, nil
	}

	if err := v.list.Archive(ctx, chatID); err != nil {
		v.mu.Lock()
		if v.st.ChatID == chatID {
			v.st.Error = "Failed to archive conversation"
		}
		v.mu.Unlock()
		v.publish()
		return Navigation{}, err
	}
	return Navigation{Kind: NavList}, nil
}

// Back closes the conversation.
func (v *ViewController) Back() Navigation {
	v.mu.Lock()
	v.gen++
	v.st = ViewState{Phase: PhaseIdle}
	v.mu.Unlock()

	v.publish()
	return Navigation{Kind: NavList}
}

// ChatID returns the open conversation id, or "".
func (v *ViewController) ChatID() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.st.ChatID
}

func (v *ViewController) isOpen(chatID string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return chatID != "" && v.st.ChatID == chatID
}

// Snapshot returns the current view state. The suggestion is read from
// the cache, so it is only ever the open conversation's.
func (v *ViewController) Snapshot() ViewState {
	v.mu.Lock()
	defer v.mu.Unlock()

	st := v.st
	st.Messages = append([]model.Message(nil), v.st.Messages...)
	if st.ChatID != "" {
		_, st.Sending = v.sending[st.ChatID]
		st.Suggestion = v.cache.Get(st.ChatID)
	} else {
		st.Suggestion = model.SuggestionEntry{Status: model.SuggestionIdle}
	}
	return st
}

// Subscribe registers fn for every state change.
func (v *ViewController) Subscribe(fn func(ViewState)) (unsubscribe func()) {
	return v.hub.Subscribe(fn)
}

func (v *ViewController) publish() {
	v.pubMu.Lock()
	defer v.pubMu.Unlock()
	v.hub.Publish(v.Snapshot())
}

// unauthorized reports whether err ends the session.
func unauthorized(err error) bool {
	return errors.Is(err, model.ErrUnauthorized)
}
