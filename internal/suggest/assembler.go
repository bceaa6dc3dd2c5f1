// Package suggest builds AI reply suggestions and caches them per conversation.
package suggest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/inbox-triage/internal/model"
	"github.com/capitalize-ai/inbox-triage/pkg/logger"
)

// DefaultWindow is how many recent messages feed a suggestion.
const DefaultWindow = 30

// ErrNoGenerator is returned when no language model is configured.
var ErrNoGenerator = errors.New("no reply generator configured")

// MessageSource fetches recent messages for a chat.
type MessageSource interface {
	ListMessages(ctx context.Context, chatID string, limit int) (*model.MessagePage, error)
}

// Generator produces a reply from a prompt.
type Generator interface {
	GenerateReply(ctx context.Context, prompt string) (string, error)
}

// Assembler turns recent conversation history into one model call.
type Assembler struct {
	source    MessageSource
	generator Generator
	window    int
	now       func() time.Time
	logger    *logger.Logger
}

// NewAssembler creates an assembler. A nil generator makes every
// suggestion fail with ErrNoGenerator.
func NewAssembler(source MessageSource, generator Generator, window int, log *logger.Logger) *Assembler {
	if window <= 0 {
		window = DefaultWindow
	}
	if log == nil {
		log = logger.Global()
	}

	return &Assembler{
		source:    source,
		generator: generator,
		window:    window,
		now:       time.Now,
		logger:    log.Named("suggest"),
	}
}

// Suggest returns a suggested reply for chatID. On any failure the text is
// empty and the error says why; callers treat it as "no suggestion".
func (a *Assembler) Suggest(ctx context.Context, chatID string) (string, error) {
	if a.generator == nil {
		return "", ErrNoGenerator
	}

	page, err := a.source.ListMessages(ctx, chatID, a.window)
	if err != nil {
		a.logger.Warn("failed to load suggestion context", zap.String("chat_id", chatID), zap.Error(err))
		return "", fmt.Errorf("failed to load messages: %w", err)
	}

	prompt := BuildPrompt(Transcript(page.Items, a.now()))

	text, err := a.generator.GenerateReply(ctx, prompt)
	if err != nil {
		a.logger.Warn("failed to generate suggestion", zap.String("chat_id", chatID), zap.Error(err))
		return "", fmt.Errorf("failed to generate reply: %w", err)
	}

	return CleanReply(text), nil
}

// Loader binds Suggest to a chat for use with Cache.GetOrLoad.
func (a *Assembler) Loader(chatID string) Loader {
	return func(ctx context.Context) (string, error) {
		return a.Suggest(ctx, chatID)
	}
}

// FormatElapsed buckets an elapsed duration. Values are truncated, never
// rounded; negative durations count as "just now".
func FormatElapsed(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	default:
		return fmt.Sprintf("%dd ago", int(d/(24*time.Hour)))
	}
}

// Transcript renders messages oldest to newest, one per line, as
// "[{elapsed}] {sender}: {text}". Duplicate message ids are dropped.
func Transcript(messages []model.Message, now time.Time) string {
	seen := make(map[string]struct{}, len(messages))
	unique := make([]model.Message, 0, len(messages))
	for _, msg := range messages {
		if msg.ID != "" {
			if _, dup := seen[msg.ID]; dup {
				continue
			}
			seen[msg.ID] = struct{}{}
		}
		unique = append(unique, msg)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].Timestamp.Before(unique[j].Timestamp)
	})

	lines := make([]string, 0, len(unique))
	for _, msg := range unique {
		text := msg.Text
		if text == "" {
			text = "[no text]"
		}
		lines = append(lines, fmt.Sprintf("[%s] %s: %s", FormatElapsed(now.Sub(msg.Timestamp)), senderLabel(msg), text))
	}
	return strings.Join(lines, "\n")
}

func senderLabel(msg model.Message) string {
	if msg.IsSender {
		return "You"
	}
	if msg.SenderName != "" {
		return msg.SenderName
	}
	return "Other"
}

const promptTemplate = `Based on this conversation history with timestamps, suggest a natural and appropriate response. Pay special attention to the timing of messages - more recent messages should heavily influence your response. Consider the conversation flow and respond appropriately to the most recent context.

The conversation shows when each message was sent relative to now. Recent messages (within hours) are much more relevant than older ones.

Conversation history (most recent at bottom):
%s

---END OF CONVERSATION HISTORY---

Provide a suggested response that:
1. Responds to the most recent message context
2. Matches the conversation tone and style
3. Is natural and conversational. Do not use em dashes (—)
4. Only provide the message text, nothing else

Suggested response:`

// BuildPrompt embeds a transcript in the reply instruction.
func BuildPrompt(transcript string) string {
	return fmt.Sprintf(promptTemplate, transcript)
}

// CleanReply trims the model output and replaces em dashes with " - ".
func CleanReply(text string) string {
	return strings.ReplaceAll(strings.TrimSpace(text), "—", " - ")
}
