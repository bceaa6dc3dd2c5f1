package inbox

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/capitalize-ai/inbox-triage/internal/model"
)

// fakeRepo is an in-memory Repository. Hooks, when set, replace the
// default behaviour of a call.
type fakeRepo struct {
	mu       sync.Mutex
	convs    []model.Conversation
	messages map[string][]model.Message
	sent     []string
	archived []string

	listErr    error
	messageErr error
	sendErr    error
	archiveErr error

	onList    func(ctx context.Context) (*model.ConversationPage, error)
	onArchive func(ctx context.Context, id string) error
	onSend    func(ctx context.Context, chatID, text string)

	sendCalls atomic.Int32
}

func newFakeRepo(convs ...model.Conversation) *fakeRepo {
	return &fakeRepo{convs: convs, messages: make(map[string][]model.Message)}
}

func (f *fakeRepo) ListConversations(ctx context.Context, opts model.ListConversationsOptions) (*model.ConversationPage, error) {
	if f.onList != nil {
		return f.onList(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return &model.ConversationPage{Items: append([]model.Conversation(nil), f.convs...)}, nil
}

func (f *fakeRepo) ListMessages(ctx context.Context, chatID string, limit int) (*model.MessagePage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.messageErr != nil {
		return nil, f.messageErr
	}
	return &model.MessagePage{Items: append([]model.Message(nil), f.messages[chatID]...)}, nil
}

func (f *fakeRepo) SendMessage(ctx context.Context, chatID, text string) (*model.SendResult, error) {
	f.sendCalls.Add(1)
	if f.onSend != nil {
		f.onSend(ctx, chatID, text)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, chatID+":"+text)
	return &model.SendResult{PendingMessageID: "pending-1"}, nil
}

func (f *fakeRepo) SetArchived(ctx context.Context, chatID string, archived bool) error {
	if f.onArchive != nil {
		return f.onArchive(ctx, chatID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.archiveErr != nil {
		return f.archiveErr
	}
	f.archived = append(f.archived, chatID)
	return nil
}

func (f *fakeRepo) setConversations(convs ...model.Conversation) {
	f.mu.Lock()
	f.convs = convs
	f.mu.Unlock()
}

type recordingSink struct {
	mu     sync.Mutex
	events []model.ActivityEvent
}

func (r *recordingSink) Publish(ctx context.Context, e model.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingSink) kinds() []model.ActivityKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.ActivityKind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

// conv builds a conversation. unread sets one unread message; responded
// makes the user the last sender.
func conv(id string, unread, responded bool) model.Conversation {
	c := model.Conversation{
		ID:          id,
		Title:       "Chat " + id,
		LastMessage: &model.Message{ID: id + "-m", ChatID: id, Text: "hi", IsSender: responded, Timestamp: time.Now()},
	}
	if unread {
		c.UnreadCount = 1
	}
	return c
}

func ids(rows []Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
