package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/capitalize-ai/inbox-triage/internal/inbox"
	"github.com/capitalize-ai/inbox-triage/internal/middleware"
	"github.com/capitalize-ai/inbox-triage/internal/model"
	"github.com/capitalize-ai/inbox-triage/pkg/logger"
)

type stubRepo struct {
	mu      sync.Mutex
	convs   []model.Conversation
	listErr error
	sendErr error
	sent    []string
}

func (s *stubRepo) ListConversations(ctx context.Context, opts model.ListConversationsOptions) (*model.ConversationPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return &model.ConversationPage{Items: append([]model.Conversation(nil), s.convs...)}, nil
}

func (s *stubRepo) ListMessages(ctx context.Context, chatID string, limit int) (*model.MessagePage, error) {
	return &model.MessagePage{Items: []model.Message{{ID: chatID + "-1", ChatID: chatID, Text: "hey", Timestamp: time.Now()}}}, nil
}

func (s *stubRepo) SendMessage(ctx context.Context, chatID, text string) (*model.SendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return nil, s.sendErr
	}
	s.sent = append(s.sent, chatID+":"+text)
	return &model.SendResult{PendingMessageID: "p1"}, nil
}

func (s *stubRepo) SetArchived(ctx context.Context, chatID string, archived bool) error {
	return nil
}

func newTestServer(t *testing.T, repo *stubRepo) (http.Handler, *inbox.Session) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	session := inbox.NewSession(ctx, inbox.SessionOptions{
		Repository: repo,
		Logger:     logger.Nop(),
	})
	_ = session.List.Refresh(context.Background())

	router := NewRouter(RouterConfig{Session: session, Logger: logger.Nop()})
	return router, session
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func twoChats() *stubRepo {
	return &stubRepo{convs: []model.Conversation{
		{ID: "A", Title: "Alice", UnreadCount: 1},
		{ID: "B", Title: "Bob", LastMessage: &model.Message{ID: "b", IsSender: true}},
	}}
}

func TestInboxEndpoints(t *testing.T) {
	h, _ := newTestServer(t, twoChats())

	rec := do(t, h, http.MethodGet, "/api/v1/inbox", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET inbox = %d", rec.Code)
	}
	if st := decode[inbox.ListState](t, rec); len(st.Rows) != 1 || st.Rows[0].ID != "A" || st.Rows[0].Name != "Alice" {
		t.Errorf("rows = %+v", st.Rows)
	}

	rec = do(t, h, http.MethodPut, "/api/v1/inbox/filter", `{"filter":"all"}`)
	if st := decode[inbox.ListState](t, rec); rec.Code != http.StatusOK || len(st.Rows) != 2 {
		t.Errorf("filter all = %d %+v", rec.Code, st)
	}

	rec = do(t, h, http.MethodPost, "/api/v1/inbox/move", `{"direction":"next"}`)
	if st := decode[inbox.ListState](t, rec); st.Selected != "B" {
		t.Errorf("selected = %q, want B", st.Selected)
	}

	rec = do(t, h, http.MethodPost, "/api/v1/inbox/archive", `{}`)
	if st := decode[inbox.ListState](t, rec); rec.Code != http.StatusOK || len(st.Rows) != 1 || st.Selected != "A" {
		t.Errorf("archive = %d %+v", rec.Code, st)
	}
}

func TestBadRequests(t *testing.T) {
	h, _ := newTestServer(t, twoChats())

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"unknown filter", http.MethodPut, "/api/v1/inbox/filter", `{"filter":"starred"}`, http.StatusBadRequest},
		{"bad direction", http.MethodPost, "/api/v1/inbox/move", `{"direction":"up"}`, http.StatusBadRequest},
		{"malformed json", http.MethodPost, "/api/v1/inbox/select", `{`, http.StatusBadRequest},
		{"select hidden", http.MethodPost, "/api/v1/inbox/select", `{"chat_id":"B"}`, http.StatusNotFound},
		{"open blank", http.MethodPost, "/api/v1/view/open", `{"chat_id":""}`, http.StatusBadRequest},
		{"empty key", http.MethodPost, "/api/v1/keys", `{"key":""}`, http.StatusBadRequest},
		{"archive nothing selected", http.MethodPost, "/api/v1/inbox/archive", `{}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(t, h, tt.method, tt.path, tt.body); rec.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestViewSendFlow(t *testing.T) {
	repo := twoChats()
	h, session := newTestServer(t, repo)

	rec := do(t, h, http.MethodPost, "/api/v1/view/open", `{"chat_id":"A"}`)
	if st := decode[inbox.ViewState](t, rec); rec.Code != http.StatusOK || st.Phase != inbox.PhaseReady || len(st.Messages) != 1 {
		t.Fatalf("open = %d %+v", rec.Code, st)
	}

	do(t, h, http.MethodPut, "/api/v1/view/draft", `{"text":"on it"}`)
	rec = do(t, h, http.MethodPost, "/api/v1/view/send", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("send = %d %s", rec.Code, rec.Body.String())
	}
	if st := decode[inbox.ViewState](t, rec); st.ChatID != "" {
		t.Errorf("view should be closed after send, got %+v", st)
	}
	if len(repo.sent) != 1 || repo.sent[0] != "A:on it" {
		t.Errorf("sent = %v", repo.sent)
	}
	if session.Keys.Active() != "list" {
		t.Errorf("active scope = %q", session.Keys.Active())
	}
}

func TestSendErrorsMapToStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unauthorized", fmt.Errorf("x: %w", model.ErrUnauthorized), http.StatusUnauthorized},
		{"upstream", fmt.Errorf("x: %w", model.ErrUpstream), http.StatusBadGateway},
		{"not found", fmt.Errorf("x: %w", model.ErrNotFound), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := twoChats()
			repo.sendErr = tt.err
			h, _ := newTestServer(t, repo)

			do(t, h, http.MethodPost, "/api/v1/view/open", `{"chat_id":"A"}`)
			do(t, h, http.MethodPut, "/api/v1/view/draft", `{"text":"hello"}`)
			if rec := do(t, h, http.MethodPost, "/api/v1/view/send", ""); rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestKeysEndpoint(t *testing.T) {
	h, _ := newTestServer(t, twoChats())

	rec := do(t, h, http.MethodPost, "/api/v1/keys", `{"key":"j"}`)
	resp := decode[KeyResponse](t, rec)
	if !resp.Handled || resp.List.Selected != "A" || resp.Scope != "list" {
		t.Errorf("j = %+v", resp)
	}

	rec = do(t, h, http.MethodPost, "/api/v1/keys", `{"key":"Enter"}`)
	resp = decode[KeyResponse](t, rec)
	if !resp.Handled || resp.Scope != "view" || resp.View.ChatID != "A" {
		t.Errorf("enter = %+v", resp)
	}

	rec = do(t, h, http.MethodPost, "/api/v1/keys", `{"key":"ctrl+h"}`)
	if resp = decode[KeyResponse](t, rec); resp.Handled {
		t.Error("modified key was handled")
	}
}

func TestHealthAndReady(t *testing.T) {
	repo := &stubRepo{listErr: fmt.Errorf("bad token: %w", model.ErrUnauthorized)}
	h, _ := newTestServer(t, repo)

	if rec := do(t, h, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Errorf("health = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/version", ""); rec.Code != http.StatusOK || decode[BuildInfo](t, rec).Version != "dev" {
		t.Errorf("version = %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, h, http.MethodGet, "/ready", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("ready = %d, want 503 after unauthorized", rec.Code)
	}

	rec := do(t, h, http.MethodGet, "/api/v1/inbox", "")
	if st := decode[inbox.ListState](t, rec); st.Fatal == "" {
		t.Error("list snapshot should carry the fatal message")
	}
}

func TestStreamSendsSnapshots(t *testing.T) {
	h, session := newTestServer(t, twoChats())
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/inbox/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	next := func() string {
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if strings.HasPrefix(line, "event: ") {
				return strings.TrimSpace(strings.TrimPrefix(line, "event: "))
			}
		}
	}

	if ev := next(); ev != "list" {
		t.Fatalf("first event = %q", ev)
	}
	if ev := next(); ev != "view" {
		t.Fatalf("second event = %q", ev)
	}

	session.List.MoveSelection(inbox.DirectionNext)
	if ev := next(); ev != "list" {
		t.Errorf("event after change = %q", ev)
	}
}

func TestOfferLatestKeepsNewest(t *testing.T) {
	ch := make(chan int, 1)
	offerLatest(ch, 1)
	offerLatest(ch, 2)
	offerLatest(ch, 3)
	if v := <-ch; v != 3 {
		t.Errorf("got %d, want 3", v)
	}
}

func TestSendWithExplicitText(t *testing.T) {
	repo := twoChats()
	h, _ := newTestServer(t, repo)

	do(t, h, http.MethodPost, "/api/v1/view/open", `{"chat_id":"A"}`)

	if rec := do(t, h, http.MethodPost, "/api/v1/view/send", `{"text":"   "}`); rec.Code != http.StatusBadRequest {
		t.Errorf("blank text status = %d, want 400", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/v1/view/send", `{"text":"direct reply"}`); rec.Code != http.StatusOK {
		t.Fatalf("send = %d %s", rec.Code, rec.Body.String())
	}
	if len(repo.sent) != 1 || repo.sent[0] != "A:direct reply" {
		t.Errorf("sent = %v", repo.sent)
	}
}

func token(t *testing.T, secret string, scopes ...string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Scopes: scopes,
	})
	s, err := tok.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestAuthScopes(t *testing.T) {
	const secret = "test-secret"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	session := inbox.NewSession(ctx, inbox.SessionOptions{Repository: twoChats(), Logger: logger.Nop()})
	h := NewRouter(RouterConfig{Session: session, JWTSecret: secret, Logger: logger.Nop()})

	reader := token(t, secret)
	writer := token(t, secret, middleware.ScopeWrite)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		token  string
		want   int
	}{
		{"health is open", http.MethodGet, "/health", "", "", http.StatusOK},
		{"no token", http.MethodGet, "/api/v1/inbox", "", "", http.StatusUnauthorized},
		{"bad token", http.MethodGet, "/api/v1/inbox", "", "garbage", http.StatusUnauthorized},
		{"read with any token", http.MethodGet, "/api/v1/inbox", "", reader, http.StatusOK},
		{"write without scope", http.MethodPost, "/api/v1/inbox/move", `{"direction":"next"}`, reader, http.StatusForbidden},
		{"key without scope", http.MethodPost, "/api/v1/keys", `{"key":"j"}`, reader, http.StatusForbidden},
		{"write with scope", http.MethodPost, "/api/v1/inbox/move", `{"direction":"next"}`, writer, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
