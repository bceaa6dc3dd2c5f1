package inbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/inbox-triage/internal/model"
	"github.com/capitalize-ai/inbox-triage/pkg/logger"
)

// ActivitySink receives inbox activity. Publishing is fire-and-forget.
type ActivitySink interface {
	Publish(ctx context.Context, event model.ActivityEvent) error
}

type nopSink struct{}

func (nopSink) Publish(context.Context, model.ActivityEvent) error { return nil }

// newEvent stamps an event with a time-ordered id.
func newEvent(chatID string, kind model.ActivityKind, reason string) model.ActivityEvent {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return model.ActivityEvent{
		ID:        id.String(),
		ChatID:    chatID,
		Kind:      kind,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}
}

func emit(ctx context.Context, sink ActivitySink, log *logger.Logger, event model.ActivityEvent) {
	if err := sink.Publish(context.WithoutCancel(ctx), event); err != nil {
		log.Warn("failed to publish activity",
			zap.String("chat_id", event.ChatID),
			zap.String("kind", string(event.Kind)),
			zap.Error(err),
		)
	}
}
