package connector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/capitalize-ai/inbox-triage/internal/model"
	"github.com/capitalize-ai/inbox-triage/pkg/logger"
	"github.com/capitalize-ai/inbox-triage/pkg/metrics"
)

// DefaultEnrichConcurrency bounds the per-chat last-message lookups.
const DefaultEnrichConcurrency = 10

// Upstream is the raw connector API. *Client implements it.
type Upstream interface {
	SearchChats(ctx context.Context, search ChatSearch) (*model.ConversationPage, error)
	SearchMessages(ctx context.Context, chatIDs []string, limit int) (*model.MessagePage, error)
	SendMessage(ctx context.Context, chatID, text string) (*model.SendResult, error)
	ArchiveChat(ctx context.Context, chatID string, archived bool) (bool, error)
}

// Repository is the Conversation Repository Client. It holds no state of its own.
type Repository struct {
	upstream    Upstream
	concurrency int
	logger      *logger.Logger
	tracer      trace.Tracer
}

// NewRepository creates a repository over the upstream connector.
func NewRepository(upstream Upstream, concurrency int, log *logger.Logger) *Repository {
	if concurrency <= 0 {
		concurrency = DefaultEnrichConcurrency
	}
	if log == nil {
		log = logger.Global()
	}

	return &Repository{
		upstream:    upstream,
		concurrency: concurrency,
		logger:      log.Named("connector"),
		tracer:      otel.Tracer("github.com/capitalize-ai/inbox-triage/internal/connector"),
	}
}

// ListConversations fetches the primary inbox and attaches each chat's most
// recent message. A failed lookup for one chat leaves its LastMessage nil
// rather than failing the whole listing.
func (r *Repository) ListConversations(ctx context.Context, opts model.ListConversationsOptions) (page *model.ConversationPage, err error) {
	ctx, done := r.observe(ctx, "list_conversations")
	defer func() { done(err) }()

	page, err = r.upstream.SearchChats(ctx, ChatSearch{
		IncludeMuted: opts.IncludeMuted,
		Limit:        opts.Limit,
		Inbox:        "primary",
		Type:         "single",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i := range page.Items {
		conv := &page.Items[i]
		g.Go(func() error {
			last, err := r.upstream.SearchMessages(gctx, []string{conv.ID}, 1)
			if err != nil {
				if errors.Is(err, model.ErrUnauthorized) {
					return err
				}
				r.logger.Warn("failed to fetch last message",
					zap.String("chat_id", conv.ID),
					zap.Error(err),
				)
				return nil
			}
			if len(last.Items) > 0 {
				msg := last.Items[0]
				conv.LastMessage = &msg
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to enrich conversations: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("failed to enrich conversations: %v: %w", err, model.ErrUpstream)
	}

	return page, nil
}

// ListMessages fetches the most recent limit messages of a chat, ordered
// oldest first for display.
func (r *Repository) ListMessages(ctx context.Context, chatID string, limit int) (page *model.MessagePage, err error) {
	ctx, done := r.observe(ctx, "list_messages", attribute.String("chat_id", chatID))
	defer func() { done(err) }()

	if strings.TrimSpace(chatID) == "" {
		return nil, fmt.Errorf("chat ID is required: %w", model.ErrBadRequest)
	}

	page, err = r.upstream.SearchMessages(ctx, []string{chatID}, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	sort.SliceStable(page.Items, func(i, j int) bool {
		return page.Items[i].Timestamp.Before(page.Items[j].Timestamp)
	})
	return page, nil
}

// SendMessage sends text to a chat. Blank text is rejected without
// contacting the upstream.
func (r *Repository) SendMessage(ctx context.Context, chatID, text string) (res *model.SendResult, err error) {
	ctx, done := r.observe(ctx, "send_message", attribute.String("chat_id", chatID))
	defer func() { done(err) }()

	if strings.TrimSpace(chatID) == "" {
		return nil, fmt.Errorf("chat ID is required: %w", model.ErrBadRequest)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("message text is required: %w", model.ErrBadRequest)
	}

	res, err = r.upstream.SendMessage(ctx, chatID, text)
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	return res, nil
}

// SetArchived archives or unarchives a chat. An upstream "success: false"
// is reported as ErrUpstream.
func (r *Repository) SetArchived(ctx context.Context, chatID string, archived bool) (err error) {
	ctx, done := r.observe(ctx, "set_archived",
		attribute.String("chat_id", chatID),
		attribute.Bool("archived", archived),
	)
	defer func() { done(err) }()

	if strings.TrimSpace(chatID) == "" {
		return fmt.Errorf("chat ID is required: %w", model.ErrBadRequest)
	}

	ok, err := r.upstream.ArchiveChat(ctx, chatID, archived)
	if err != nil {
		return fmt.Errorf("failed to archive conversation: %w", err)
	}
	if !ok {
		return fmt.Errorf("archive was not applied: %w", model.ErrUpstream)
	}
	return nil
}

// observe starts a span and returns a func that records the outcome.
func (r *Repository) observe(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "connector."+op, trace.WithAttributes(attrs...))

	return ctx, func(err error) {
		status := "success"
		if err != nil {
			status = errorStatus(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		metrics.RecordUpstream(op, status, time.Since(start).Seconds())
	}
}

func errorStatus(err error) string {
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
