// Package connector talks to the upstream chat-platform connector
// (Beeper Desktop API) and exposes the Repository Client used by the inbox.
package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/capitalize-ai/inbox-triage/internal/model"
)

// DefaultBaseURL is where Beeper Desktop serves its local API.
const DefaultBaseURL = "http://localhost:23373"

// Client is a minimal Beeper Desktop API client.
type Client struct {
	BaseURL     string
	AccessToken string
	HTTPClient  *http.Client
}

// NewClient creates a new connector client. The timeout bounds every request.
func NewClient(baseURL, accessToken string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		AccessToken: accessToken,
		HTTPClient:  &http.Client{Timeout: timeout},
	}
}

// ChatSearch filters a chat search.
type ChatSearch struct {
	IncludeMuted bool
	Limit        int
	Inbox        string
	Type         string
}

type participantDTO struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	ImgURL   string `json:"imgURL"`
	IsSelf   bool   `json:"isSelf"`
}

type chatDTO struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Participants struct {
		Items []participantDTO `json:"items"`
	} `json:"participants"`
	LastActivity string `json:"lastActivity"`
	UnreadCount  int    `json:"unreadCount"`
	IsArchived   bool   `json:"isArchived"`
}

type messageDTO struct {
	ID         string `json:"id"`
	ChatID     string `json:"chatID"`
	Text       string `json:"text"`
	Timestamp  string `json:"timestamp"`
	IsSender   bool   `json:"isSender"`
	SenderName string `json:"senderName"`
}

type chatPageDTO struct {
	Items   []chatDTO `json:"items"`
	HasMore bool      `json:"hasMore"`
}

type messagePageDTO struct {
	Items   []messageDTO `json:"items"`
	HasMore bool         `json:"hasMore"`
}

// SearchChats lists chats. The returned conversations carry no last message.
func (c *Client) SearchChats(ctx context.Context, search ChatSearch) (*model.ConversationPage, error) {
	q := url.Values{}
	q.Set("includeMuted", strconv.FormatBool(search.IncludeMuted))
	if search.Limit > 0 {
		q.Set("limit", strconv.Itoa(search.Limit))
	}
	if search.Inbox != "" {
		q.Set("inbox", search.Inbox)
	}
	if search.Type != "" {
		q.Set("type", search.Type)
	}

	var page chatPageDTO
	if err := c.do(ctx, http.MethodGet, "/v0/search-chats", q, nil, &page); err != nil {
		return nil, err
	}

	out := &model.ConversationPage{
		Items:   make([]model.Conversation, 0, len(page.Items)),
		HasMore: page.HasMore,
	}
	for _, chat := range page.Items {
		out.Items = append(out.Items, chat.toModel())
	}
	return out, nil
}

// SearchMessages lists messages for the given chats, newest first.
//
// The upstream endpoint takes chatIDs as an array parameter and has been
// seen to mis-read a single-element array. Encoding the parameter as a
// repeated query key keeps it an array on the wire, so ids are sent once.
func (c *Client) SearchMessages(ctx context.Context, chatIDs []string, limit int) (*model.MessagePage, error) {
	q := url.Values{}
	for _, id := range chatIDs {
		q.Add("chatIDs", id)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var page messagePageDTO
	if err := c.do(ctx, http.MethodGet, "/v0/search-messages", q, nil, &page); err != nil {
		return nil, err
	}

	out := &model.MessagePage{
		Items:   make([]model.Message, 0, len(page.Items)),
		HasMore: page.HasMore,
	}
	for _, msg := range page.Items {
		out.Items = append(out.Items, msg.toModel())
	}
	return out, nil
}

// SendMessage sends a text message to a chat.
func (c *Client) SendMessage(ctx context.Context, chatID, text string) (*model.SendResult, error) {
	body := map[string]string{
		"chatID": chatID,
		"text":   text,
	}

	var resp struct {
		PendingMessageID string `json:"pendingMessageID"`
	}
	if err := c.do(ctx, http.MethodPost, "/v0/send-message", nil, body, &resp); err != nil {
		return nil, err
	}

	return &model.SendResult{PendingMessageID: resp.PendingMessageID}, nil
}

// ArchiveChat archives or unarchives a chat and reports upstream success.
func (c *Client) ArchiveChat(ctx context.Context, chatID string, archived bool) (bool, error) {
	body := map[string]any{
		"chatID":   chatID,
		"archived": archived,
	}

	var resp struct {
		Success bool `json:"success"`
	}
	if err := c.do(ctx, http.MethodPost, "/v0/archive-chat", nil, body, &resp); err != nil {
		return false, err
	}

	return resp.Success, nil
}

// do performs an authenticated JSON request and decodes the response into out.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	if c.AccessToken == "" {
		return fmt.Errorf("connector access token is not configured: %w", model.ErrUnauthorized)
	}

	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.AccessToken)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %v: %w", method, path, err, model.ErrUpstream)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %v: %w", err, model.ErrUpstream)
	}

	if resp.StatusCode >= 400 {
		return statusError(resp.StatusCode, respBody)
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %v: %w", err, model.ErrUpstream)
	}
	return nil
}

// statusError maps an upstream HTTP status onto the error taxonomy.
func statusError(status int, body []byte) error {
	var errResp struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &errResp)

	msg := errResp.Message
	if msg == "" {
		msg = errResp.Error
	}
	if msg == "" {
		msg = http.StatusText(status)
	}

	var kind error
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = model.ErrUnauthorized
	case status == http.StatusNotFound:
		kind = model.ErrNotFound
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		kind = model.ErrBadRequest
	default:
		kind = model.ErrUpstream
	}

	return fmt.Errorf("connector error %d: %s: %w", status, msg, kind)
}

func (d chatDTO) toModel() model.Conversation {
	conv := model.Conversation{
		ID:           d.ID,
		Title:        d.Title,
		LastActivity: parseTime(d.LastActivity),
		UnreadCount:  d.UnreadCount,
		Archived:     d.IsArchived,
		Participants: make([]model.Participant, 0, len(d.Participants.Items)),
	}
	if conv.UnreadCount < 0 {
		conv.UnreadCount = 0
	}
	for _, p := range d.Participants.Items {
		conv.Participants = append(conv.Participants, model.Participant{
			ID:        p.ID,
			FullName:  p.FullName,
			IsSelf:    p.IsSelf,
			AvatarURL: p.ImgURL,
		})
	}
	return conv
}

func (d messageDTO) toModel() model.Message {
	return model.Message{
		ID:         d.ID,
		ChatID:     d.ChatID,
		Text:       d.Text,
		Timestamp:  parseTime(d.Timestamp),
		IsSender:   d.IsSender,
		SenderName: d.SenderName,
	}
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
