// Package inbox holds the interactive triage controllers: the conversation
// list, the open conversation view, keyboard dispatch, and the session that
// ties them together.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/capitalize-ai/inbox-triage/internal/model"
	"github.com/capitalize-ai/inbox-triage/internal/state"
	"github.com/capitalize-ai/inbox-triage/pkg/logger"
	"github.com/capitalize-ai/inbox-triage/pkg/metrics"
)

// Repository is the conversation data the controllers need.
// *connector.Repository implements it.
type Repository interface {
	ListConversations(ctx context.Context, opts model.ListConversationsOptions) (*model.ConversationPage, error)
	ListMessages(ctx context.Context, chatID string, limit int) (*model.MessagePage, error)
	SendMessage(ctx context.Context, chatID, text string) (*model.SendResult, error)
	SetArchived(ctx context.Context, chatID string, archived bool) error
}

// Direction is a selection step.
type Direction string

const (
	DirectionPrev Direction = "prev"
	DirectionNext Direction = "next"
)

// ParseDirection parses a direction name.
func ParseDirection(s string) (Direction, bool) {
	switch Direction(s) {
	case DirectionPrev, DirectionNext:
		return Direction(s), true
	default:
		return "", false
	}
}

// Row is one visible conversation with its derived flags.
type Row struct {
	model.Conversation
	Name        string `json:"name"`
	Unread      bool   `json:"unread"`
	Unresponded bool   `json:"unresponded"`
	Selected    bool   `json:"selected"`
}

// ListState is a plain-data snapshot of the list controller.
type ListState struct {
	Filter    model.Filter `json:"filter"`
	Rows      []Row        `json:"rows"`
	Selected  string       `json:"selected,omitempty"`
	Total     int          `json:"total"`
	HasMore   bool         `json:"has_more"`
	Archiving []string     `json:"archiving,omitempty"`
	Loading   bool         `json:"loading"`
	Error     string       `json:"error,omitempty"`
	Fatal     string       `json:"fatal,omitempty"`
}

// ListController owns the working set of conversations, the active filter
// and the selection. It is safe for concurrent use.
type ListController struct {
	repo     Repository
	opts     model.ListConversationsOptions
	activity ActivitySink
	logger   *logger.Logger
	hub      *state.Hub[ListState]

	mu       sync.Mutex
	filter   model.Filter
	items    []model.Conversation
	hasMore  bool
	selected string
	loading  int
	errMsg   string
	fatal    error

	// pending holds ids whose archive mutation has not settled.
	pending map[string]struct{}
	// settled maps an archived id to the number of refreshes started when
	// its archive succeeded; refreshes started no later are stale for it.
	settled map[string]uint64
	started uint64
	applied uint64

	// pubMu orders deliveries so subscribers never see an older snapshot
	// after a newer one.
	pubMu sync.Mutex
}

// NewListController creates a list controller with the unresponded filter.
func NewListController(repo Repository, opts model.ListConversationsOptions, activity ActivitySink, log *logger.Logger) *ListController {
	if activity == nil {
		activity = nopSink{}
	}
	if log == nil {
		log = logger.Global()
	}

	return &ListController{
		repo:     repo,
		opts:     opts,
		activity: activity,
		logger:   log.Named("inbox_list"),
		hub:      state.NewHub[ListState](),
		filter:   model.FilterUnresponded,
		pending:  make(map[string]struct{}),
		settled:  make(map[string]uint64),
	}
}

// SetFilter changes the filter without refetching. A selection that is no
// longer visible is cleared.
func (c *ListController) SetFilter(f model.Filter) error {
	if _, ok := model.ParseFilter(string(f)); !ok {
		return fmt.Errorf("unknown filter %q: %w", f, model.ErrBadRequest)
	}

	c.mu.Lock()
	c.filter = f
	c.reconcileSelectionLocked()
	c.mu.Unlock()

	c.publish()
	return nil
}

// Refresh refetches the conversation set and replaces the working set.
// Conversations with an archive in flight stay hidden, and a result older
// than the last applied one is dropped. On failure the prior state stays
// visible with an inline error.
func (c *ListController) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.started++
	seq := c.started
	c.loading++
	c.mu.Unlock()
	c.publish()

	page, err := c.repo.ListConversations(ctx, c.opts)

	c.mu.Lock()
	c.loading--
	if err != nil {
		if errors.Is(err, model.ErrUnauthorized) {
			c.fatal = err
		} else {
			c.errMsg = "Failed to load conversations"
		}
		c.mu.Unlock()

		metrics.RefreshesTotal.WithLabelValues(errorLabel(err)).Inc()
		c.logger.Warn("failed to refresh conversations", zap.Error(err))
		c.publish()
		return err
	}

	if seq < c.applied {
		c.mu.Unlock()
		metrics.RefreshesTotal.WithLabelValues("stale").Inc()
		c.publish()
		return nil
	}

	items := make([]model.Conversation, 0, len(page.Items))
	for _, conv := range page.Items {
		if c.suppressedLocked(conv.ID, seq) {
			continue
		}
		items = append(items, conv)
	}
	for id, at := range c.settled {
		if seq > at {
			delete(c.settled, id)
		}
	}

	c.applied = seq
	c.items = items
	c.hasMore = page.HasMore
	c.errMsg = ""
	c.fatal = nil
	c.reconcileSelectionLocked()
	c.mu.Unlock()

	metrics.RefreshesTotal.WithLabelValues("success").Inc()
	c.publish()
	return nil
}

func (c *ListController) suppressedLocked(id string, seq uint64) bool {
	if _, ok := c.pending[id]; ok {
		return true
	}
	at, ok := c.settled[id]
	return ok && seq <= at
}

// Select sets the selection if id is visible. It reports whether it did.
func (c *ListController) Select(id string) bool {
	c.mu.Lock()
	if c.indexLocked(c.visibleLocked(), id) < 0 {
		c.mu.Unlock()
		return false
	}
	c.selected = id
	c.mu.Unlock()

	c.publish()
	return true
}

// MoveSelection steps the selection through the visible list, wrapping at
// both ends. With nothing selected it steps from the first row.
func (c *ListController) MoveSelection(dir Direction) {
	c.mu.Lock()
	visible := c.visibleLocked()
	n := len(visible)
	if n == 0 {
		c.mu.Unlock()
		return
	}

	i := c.indexLocked(visible, c.selected)
	if i < 0 {
		i = 0
	}
	switch dir {
	case DirectionPrev:
		i = (i - 1 + n) % n
	default:
		i = (i + 1) % n
	}
	c.selected = visible[i].ID
	c.mu.Unlock()

	c.publish()
}

// Archive removes id from the working set immediately, moves the selection
// to a neighbour if id was selected, then archives it upstream. A failed
// mutation does not bring the conversation back; the error is returned for
// the caller to surface.
func (c *ListController) Archive(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("chat ID is required: %w", model.ErrBadRequest)
	}

	c.mu.Lock()
	if _, ok := c.pending[id]; ok {
		c.mu.Unlock()
		return nil
	}

	visible := c.visibleLocked()
	if c.selected == id {
		c.selected = neighbour(visible, id)
	}
	for i := range c.items {
		if c.items[i].ID == id {
			c.items = append(c.items[:i:i], c.items[i+1:]...)
			break
		}
	}
	c.pending[id] = struct{}{}
	c.mu.Unlock()

	metrics.ArchivesPending.Inc()
	c.publish()

	err := c.repo.SetArchived(ctx, id, true)

	c.mu.Lock()
	delete(c.pending, id)
	if err == nil {
		c.settled[id] = c.started
	} else if errors.Is(err, model.ErrUnauthorized) {
		c.fatal = err
	} else {
		c.errMsg = "Failed to archive conversation"
	}
	c.mu.Unlock()

	metrics.ArchivesPending.Dec()
	c.publish()

	if err != nil {
		c.logger.Warn("failed to archive conversation", zap.String("chat_id", id), zap.Error(err))
		emit(ctx, c.activity, c.logger, newEvent(id, model.ActivityArchiveFailed, err.Error()))
		return err
	}

	c.logger.Info("conversation archived", zap.String("chat_id", id))
	emit(ctx, c.activity, c.logger, newEvent(id, model.ActivityArchived, ""))
	return nil
}

// neighbour picks the selection that replaces id once it leaves visible:
// the previous row, else the row after it, else none.
func neighbour(visible []model.Conversation, id string) string {
	for i := range visible {
		if visible[i].ID != id {
			continue
		}
		switch {
		case i > 0:
			return visible[i-1].ID
		case len(visible) > 1:
			return visible[1].ID
		default:
			return ""
		}
	}
	return ""
}

// Selected returns the selected conversation id, or "".
func (c *ListController) Selected() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// Conversation returns a conversation from the working set.
func (c *ListController) Conversation(id string) (model.Conversation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.indexLocked(c.items, id); i >= 0 {
		return c.items[i], true
	}
	return model.Conversation{}, false
}

// Fatal returns the session-ending error, if any.
func (c *ListController) Fatal() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fatal
}

func (c *ListController) setFatal(err error) {
	c.mu.Lock()
	c.fatal = err
	c.mu.Unlock()
	c.publish()
}

// Snapshot returns the current list state.
func (c *ListController) Snapshot() ListState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe registers fn for every state change.
func (c *ListController) Subscribe(fn func(ListState)) (unsubscribe func()) {
	return c.hub.Subscribe(fn)
}

func (c *ListController) publish() {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()
	c.hub.Publish(c.Snapshot())
}

func (c *ListController) snapshotLocked() ListState {
	visible := c.visibleLocked()
	rows := make([]Row, len(visible))
	for i := range visible {
		conv := visible[i]
		rows[i] = Row{
			Conversation: conv,
			Name:         conv.DisplayName(),
			Unread:       conv.IsUnread(),
			Unresponded:  conv.IsUnresponded(),
			Selected:     conv.ID == c.selected,
		}
	}

	archiving := make([]string, 0, len(c.pending))
	for id := range c.pending {
		archiving = append(archiving, id)
	}

	st := ListState{
		Filter:    c.filter,
		Rows:      rows,
		Selected:  c.selected,
		Total:     len(c.items),
		HasMore:   c.hasMore,
		Archiving: archiving,
		Loading:   c.loading > 0,
		Error:     c.errMsg,
	}
	if c.fatal != nil {
		st.Fatal = "Beeper access token is missing or invalid. Set BEEPER_ACCESS_TOKEN and restart."
	}
	return st
}

// visibleLocked returns the filtered subsequence of the working set.
func (c *ListController) visibleLocked() []model.Conversation {
	out := make([]model.Conversation, 0, len(c.items))
	for i := range c.items {
		if c.filter.Match(&c.items[i]) {
			out = append(out, c.items[i])
		}
	}
	return out
}

func (c *ListController) indexLocked(convs []model.Conversation, id string) int {
	if id == "" {
		return -1
	}
	for i := range convs {
		if convs[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *ListController) reconcileSelectionLocked() {
	if c.indexLocked(c.visibleLocked(), c.selected) < 0 {
		c.selected = ""
	}
}

func errorLabel(err error) string {
	switch {
	case errors.Is(err, model.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, model.ErrNotFound):
		return "not_found"
	case errors.Is(err, model.ErrBadRequest):
		return "bad_request"
	default:
		return "error"
	}
}
