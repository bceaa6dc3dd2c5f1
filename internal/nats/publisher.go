package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/capitalize-ai/inbox-triage/internal/model"
	"github.com/capitalize-ai/inbox-triage/pkg/metrics"
)

// DefaultSubjectPrefix is the root of all activity subjects.
const DefaultSubjectPrefix = "inbox"

// msgPublisher is the part of *nats.Conn the publisher needs.
type msgPublisher interface {
	PublishMsg(msg *nats.Msg) error
}

// Publisher sends activity events as JSON on "<prefix>.activity.<kind>".
type Publisher struct {
	conn   msgPublisher
	prefix string
}

// NewPublisher creates a publisher over an open client.
func NewPublisher(client *Client, prefix string) *Publisher {
	return newPublisher(client.Conn(), prefix)
}

func newPublisher(conn msgPublisher, prefix string) *Publisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &Publisher{conn: conn, prefix: prefix}
}

// ActivitySubject returns the subject for an activity kind.
func ActivitySubject(prefix string, kind model.ActivityKind) string {
	return fmt.Sprintf("%s.activity.%s", prefix, kind)
}

// Publish publishes one activity event. The event id is sent as the
// Nats-Msg-Id header so a stream on the subject can deduplicate.
func (p *Publisher) Publish(ctx context.Context, event model.ActivityEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := nats.NewMsg(ActivitySubject(p.prefix, event.Kind))
	msg.Header.Set(nats.MsgIdHdr, event.ID)
	msg.Data = data

	if err := p.conn.PublishMsg(msg); err != nil {
		metrics.ActivityPublishedTotal.WithLabelValues(string(event.Kind), "error").Inc()
		return fmt.Errorf("failed to publish event: %w", err)
	}
	metrics.ActivityPublishedTotal.WithLabelValues(string(event.Kind), "success").Inc()
	return nil
}
