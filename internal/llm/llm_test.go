package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
)

type stubClient struct {
	resp *CompletionResponse
	err  error
	req  *CompletionRequest
	ctx  context.Context
}

func (s *stubClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	s.req = req
	s.ctx = ctx
	return s.resp, s.err
}

func (s *stubClient) Name() string     { return "stub" }
func (s *stubClient) Models() []string { return []string{"stub-1"} }

func TestNewClient(t *testing.T) {
	tests := []struct {
		name     string
		provider Provider
		key      string
		wantName string
		wantErr  bool
	}{
		{"anthropic", ProviderAnthropic, "sk-ant", "anthropic", false},
		{"openai", ProviderOpenAI, "sk-oai", "openai", false},
		{"missing key", ProviderOpenAI, "", "", true},
		{"unknown provider", Provider("cohere"), "k", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClient(tt.provider, tt.key)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewClient: %v", err)
			}
			if c.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", c.Name(), tt.wantName)
			}
			if len(c.Models()) == 0 {
				t.Error("Models() is empty")
			}
		})
	}
}

func TestReplyGeneratorSendsSinglePrompt(t *testing.T) {
	stub := &stubClient{resp: &CompletionResponse{Content: "on my way"}}
	g := NewReplyGenerator(stub, "m-1", 256, time.Second)

	text, err := g.GenerateReply(context.Background(), "prompt body")
	if err != nil {
		t.Fatalf("GenerateReply: %v", err)
	}
	if text != "on my way" {
		t.Errorf("text = %q", text)
	}
	if stub.req.Model != "m-1" || stub.req.MaxTokens != 256 {
		t.Errorf("request = %+v", stub.req)
	}
	if len(stub.req.Messages) != 1 || stub.req.Messages[0].Role != "user" || stub.req.Messages[0].Content != "prompt body" {
		t.Errorf("messages = %+v", stub.req.Messages)
	}
	if _, ok := stub.ctx.Deadline(); !ok {
		t.Error("expected a deadline on the completion context")
	}
}

func TestReplyGeneratorErrors(t *testing.T) {
	tests := []struct {
		name string
		stub *stubClient
	}{
		{"client error", &stubClient{err: errors.New("429")}},
		{"empty reply", &stubClient{resp: &CompletionResponse{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewReplyGenerator(tt.stub, "", 0, 0)
			if _, err := g.GenerateReply(context.Background(), "p"); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestOpenAIComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Model != defaultOpenAIModel {
			t.Errorf("model = %q", req.Model)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Model: req.Model,
			Choices: []openai.ChatCompletionChoice{{
				Message:      openai.ChatCompletionMessage{Role: "assistant", Content: "sure"},
				FinishReason: openai.FinishReasonStop,
			}},
			Usage: openai.Usage{PromptTokens: 12, CompletionTokens: 1},
		})
	}))
	defer srv.Close()

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	c := NewOpenAIClientWithConfig(cfg)

	resp, err := c.Complete(context.Background(), &CompletionRequest{
		Messages: []ChatMessage{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "sure" || resp.TokensIn != 12 || resp.TokensOut != 1 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestRequestLimits(t *testing.T) {
	tests := []struct {
		name      string
		req       CompletionRequest
		wantModel string
		wantMax   int
	}{
		{"defaults", CompletionRequest{}, "fallback", defaultMaxTokens},
		{"explicit", CompletionRequest{Model: "m", MaxTokens: 64}, "m", 64},
		{"negative tokens", CompletionRequest{MaxTokens: -1}, "fallback", defaultMaxTokens},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model, maxTokens := tt.req.limits("fallback")
			if model != tt.wantModel || maxTokens != tt.wantMax {
				t.Errorf("limits() = (%q, %d), want (%q, %d)", model, maxTokens, tt.wantModel, tt.wantMax)
			}
		})
	}
}
