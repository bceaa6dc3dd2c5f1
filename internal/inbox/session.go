package inbox

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/inbox-triage/internal/model"
	"github.com/capitalize-ai/inbox-triage/internal/suggest"
	"github.com/capitalize-ai/inbox-triage/pkg/logger"
)

// DefaultRefreshInterval is the list polling period.
const DefaultRefreshInterval = 30 * time.Second

// SessionOptions configures a Session.
type SessionOptions struct {
	Repository      Repository
	Suggest         SuggestFunc // nil disables suggestions
	Activity        ActivitySink
	ListOptions     model.ListConversationsOptions
	MessageLimit    int
	RefreshInterval time.Duration
	Logger          *logger.Logger
}

// Session owns one list, one view, one suggestion cache and one key
// dispatcher for the life of a user session.
type Session struct {
	List  *ListController
	View  *ViewController
	Cache *suggest.Cache
	Keys  *Dispatcher

	interval time.Duration
	activity ActivitySink
	logger   *logger.Logger

	mu          sync.Mutex
	releaseView func()
}

// NewSession wires a session. Suggestion loads run under ctx and end with it.
func NewSession(ctx context.Context, opts SessionOptions) *Session {
	log := opts.Logger
	if log == nil {
		log = logger.Global()
	}
	activity := opts.Activity
	if activity == nil {
		activity = nopSink{}
	}
	interval := opts.RefreshInterval
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}

	cache := suggest.NewCache(ctx, log)
	list := NewListController(opts.Repository, opts.ListOptions, activity, log)
	view := NewViewController(opts.Repository, list, cache, opts.Suggest, opts.MessageLimit, activity, log)

	s := &Session{
		List:     list,
		View:     view,
		Cache:    cache,
		Keys:     NewDispatcher(log),
		interval: interval,
		activity: activity,
		logger:   log.Named("session"),
	}

	cache.Subscribe(func(e model.SuggestionEntry) {
		switch e.Status {
		case model.SuggestionReady:
			emit(ctx, s.activity, s.logger, newEvent(e.ChatID, model.ActivitySuggestionReady, ""))
		case model.SuggestionFailed:
			emit(ctx, s.activity, s.logger, newEvent(e.ChatID, model.ActivitySuggestionFailed, ""))
		}
	})

	s.Keys.Register(s.listScope())
	return s
}

// Run refreshes the list now and then every interval until ctx ends. Errors
// are left for the next tick, except an unauthorized one, which ends the
// loop and is returned.
func (s *Session) Run(ctx context.Context) error {
	if err := s.refresh(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.refresh(ctx); err != nil {
				return err
			}
		}
	}
}

func (s *Session) refresh(ctx context.Context) error {
	if err := s.List.Refresh(ctx); unauthorized(err) {
		s.logger.Error("upstream rejected credentials, stopping refresh", zap.Error(err))
		return err
	}
	return nil
}

// Fatal returns the session-ending error, if any.
func (s *Session) Fatal() error {
	return s.List.Fatal()
}

// Open selects chatID in the list, switches keys to the view and loads it.
func (s *Session) Open(ctx context.Context, chatID string) error {
	s.List.Select(chatID)

	s.mu.Lock()
	if s.releaseView == nil {
		s.releaseView = s.Keys.Register(s.viewScope())
	}
	s.mu.Unlock()

	err := s.View.Open(ctx, chatID)
	if unauthorized(err) {
		s.List.setFatal(err)
	}
	return err
}

// Back closes the open conversation and returns keys to the list.
func (s *Session) Back() {
	s.View.Back()

	s.mu.Lock()
	release := s.releaseView
	s.releaseView = nil
	s.mu.Unlock()

	if release != nil {
		release()
	}
}

// Navigate applies a navigation signal.
func (s *Session) Navigate(ctx context.Context, nav Navigation) error {
	switch nav.Kind {
	case NavList:
		s.Back()
	case NavOpen:
		return s.Open(ctx, nav.ChatID)
	}
	return nil
}

// Send sends the open draft and returns to the list on success.
func (s *Session) Send(ctx context.Context) error {
	nav, err := s.View.Send(ctx)
	if err != nil {
		if unauthorized(err) {
			s.List.setFatal(err)
		}
		return err
	}
	return s.Navigate(ctx, nav)
}

// ArchiveOpen archives the open conversation and returns to the list on
// success.
func (s *Session) ArchiveOpen(ctx context.Context) error {
	nav, err := s.View.Archive(ctx)
	if err != nil {
		return err
	}
	return s.Navigate(ctx, nav)
}

func (s *Session) archive(ctx context.Context, chatID string) error {
	if s.View.ChatID() == chatID {
		return s.ArchiveOpen(ctx)
	}
	return s.List.Archive(ctx, chatID)
}

// Key dispatches a key press to the active scope.
func (s *Session) Key(ctx context.Context, key string) (bool, error) {
	return s.Keys.Dispatch(ctx, key)
}
