package llm

import (
	"context"
	"errors"
	"time"
)

// ReplyGenerator adapts a Client to single-prompt reply generation.
type ReplyGenerator struct {
	client    Client
	model     string
	maxTokens int
	timeout   time.Duration
}

// NewReplyGenerator creates a generator. An empty model uses the client's default.
func NewReplyGenerator(client Client, model string, maxTokens int, timeout time.Duration) *ReplyGenerator {
	return &ReplyGenerator{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
		timeout:   timeout,
	}
}

// GenerateReply sends prompt as one user message and returns the raw text.
func (g *ReplyGenerator) GenerateReply(ctx context.Context, prompt string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	resp, err := g.client.Complete(ctx, &CompletionRequest{
		Model:       g.model,
		Messages:    []ChatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   g.maxTokens,
		Temperature: 0.7,
	})
	if err != nil {
		return "", err
	}
	if resp.Content == "" {
		return "", errors.New("model returned an empty reply")
	}
	return resp.Content, nil
}
