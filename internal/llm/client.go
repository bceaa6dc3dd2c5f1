// Package llm provides LLM client interfaces and implementations.
package llm

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/capitalize-ai/inbox-triage/pkg/metrics"
)

// CompletionRequest represents a completion request.
type CompletionRequest struct {
	Model       string
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float64
}

// defaultMaxTokens applies when a request leaves MaxTokens at zero.
const defaultMaxTokens = 1024

// limits returns the model and token cap to use, falling back to the
// provider default model.
func (r *CompletionRequest) limits(defaultModel string) (string, int) {
	model := r.Model
	if model == "" {
		model = defaultModel
	}
	maxTokens := r.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return model, maxTokens
}

// ChatMessage represents a chat message for LLM.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionResponse represents a completion response.
type CompletionResponse struct {
	Content    string
	Model      string
	TokensIn   int
	TokensOut  int
	StopReason string
	LatencyMs  int64
}

// Client is the interface for LLM providers.
type Client interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name.
	Name() string

	// Models returns available models. The first is the default.
	Models() []string
}

// Provider is the type of LLM provider.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// NewClient creates a new LLM client based on provider.
func NewClient(provider Provider, apiKey string) (Client, error) {
	switch provider {
	case ProviderAnthropic:
		return NewAnthropicClient(apiKey)
	case ProviderOpenAI:
		return NewOpenAIClient(apiKey)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", provider)
	}
}

var tracer = otel.Tracer("github.com/capitalize-ai/inbox-triage/internal/llm")

// observe wraps one provider call with a span and the LLM metrics.
func observe(ctx context.Context, provider, model string) (context.Context, func(*CompletionResponse, error)) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "llm.complete", trace.WithAttributes(
		attribute.String("llm.provider", provider),
		attribute.String("llm.model", model),
	))

	return ctx, func(resp *CompletionResponse, err error) {
		defer span.End()
		elapsed := time.Since(start).Seconds()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			metrics.RecordLLM(model, "error", elapsed, 0, 0)
			return
		}
		span.SetAttributes(
			attribute.Int("llm.tokens_in", resp.TokensIn),
			attribute.Int("llm.tokens_out", resp.TokensOut),
		)
		metrics.RecordLLM(model, "success", elapsed, resp.TokensIn, resp.TokensOut)
	}
}
