package suggest

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/capitalize-ai/inbox-triage/internal/model"
	"github.com/capitalize-ai/inbox-triage/internal/state"
	"github.com/capitalize-ai/inbox-triage/pkg/logger"
	"github.com/capitalize-ai/inbox-triage/pkg/metrics"
)

// Loader produces the suggestion text for one chat.
type Loader func(ctx context.Context) (string, error)

type cacheEntry struct {
	entry model.SuggestionEntry
	done  chan struct{} // closed when the current load settles
	clear bool          // reset to idle once the current load settles
}

// Cache holds one suggestion entry per chat for the life of a session.
// At most one loader runs per chat at any time.
type Cache struct {
	ctx     context.Context
	mu      sync.Mutex
	entries map[string]*cacheEntry
	hub     *state.Hub[model.SuggestionEntry]
	logger  *logger.Logger
}

// NewCache creates a cache whose loads run under ctx (the session context).
// Navigating away never cancels a load; ending the session does.
func NewCache(ctx context.Context, log *logger.Logger) *Cache {
	if log == nil {
		log = logger.Global()
	}
	return &Cache{
		ctx:     ctx,
		entries: make(map[string]*cacheEntry),
		hub:     state.NewHub[model.SuggestionEntry](),
		logger:  log.Named("suggest_cache"),
	}
}

// Get returns the entry for chatID without loading.
func (c *Cache) Get(chatID string) model.SuggestionEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[chatID]; ok {
		return e.entry
	}
	return model.SuggestionEntry{ChatID: chatID, Status: model.SuggestionIdle}
}

// GetOrLoad returns the current entry for chatID. When the chat has never
// been loaded (no entry, or an idle one) it moves to loading and starts
// load in the background; concurrent callers get the loading entry and
// load is not invoked again.
func (c *Cache) GetOrLoad(chatID string, load Loader) model.SuggestionEntry {
	c.mu.Lock()
	e, ok := c.entries[chatID]
	if ok && e.entry.Status != model.SuggestionIdle {
		entry := e.entry
		c.mu.Unlock()
		return entry
	}

	e = &cacheEntry{
		entry: model.SuggestionEntry{ChatID: chatID, Status: model.SuggestionLoading},
		done:  make(chan struct{}),
	}
	c.entries[chatID] = e
	entry := e.entry
	c.mu.Unlock()

	c.hub.Publish(entry)
	go c.run(chatID, e, load)

	return entry
}

func (c *Cache) run(chatID string, e *cacheEntry, load Loader) {
	text, err := c.invoke(load)

	c.mu.Lock()
	switch {
	case e.clear:
		e.entry = model.SuggestionEntry{ChatID: chatID, Status: model.SuggestionIdle}
	case err != nil:
		e.entry = model.SuggestionEntry{ChatID: chatID, Status: model.SuggestionFailed}
	default:
		e.entry = model.SuggestionEntry{ChatID: chatID, Status: model.SuggestionReady, Text: text}
	}
	entry := e.entry
	close(e.done)
	c.mu.Unlock()

	if err != nil {
		c.logger.Debug("suggestion unavailable", zap.String("chat_id", chatID), zap.Error(err))
	}
	metrics.SuggestionsTotal.WithLabelValues(string(entry.Status)).Inc()
	c.hub.Publish(entry)
}

func (c *Cache) invoke(load Loader) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("suggestion loader panicked: %v", r)
		}
	}()
	return load(c.ctx)
}

// Wait blocks until the entry for chatID is not loading, or ctx ends.
func (c *Cache) Wait(ctx context.Context, chatID string) (model.SuggestionEntry, error) {
	c.mu.Lock()
	e, ok := c.entries[chatID]
	if !ok {
		c.mu.Unlock()
		return model.SuggestionEntry{ChatID: chatID, Status: model.SuggestionIdle}, nil
	}
	done := e.done
	c.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return c.Get(chatID), ctx.Err()
	}
	return c.Get(chatID), nil
}

// Clear resets chatID to idle with no text, so the next GetOrLoad fetches
// a fresh suggestion. A load in flight finishes first and its result is
// discarded.
func (c *Cache) Clear(chatID string) {
	c.mu.Lock()
	e, ok := c.entries[chatID]
	if !ok {
		c.mu.Unlock()
		return
	}
	if e.entry.Status == model.SuggestionLoading {
		e.clear = true
		c.mu.Unlock()
		return
	}
	e.entry = model.SuggestionEntry{ChatID: chatID, Status: model.SuggestionIdle}
	entry := e.entry
	c.mu.Unlock()

	c.hub.Publish(entry)
}

// Subscribe registers fn for entry changes of any chat.
func (c *Cache) Subscribe(fn func(model.SuggestionEntry)) (unsubscribe func()) {
	return c.hub.Subscribe(fn)
}
