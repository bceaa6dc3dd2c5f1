package model

import (
	"time"
)

// Message represents a single chat message. Messages are immutable once received.
type Message struct {
	ID         string    `json:"id"`
	ChatID     string    `json:"chat_id"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
	IsSender   bool      `json:"is_sender"`
	SenderName string    `json:"sender_name,omitempty"`
}

// MessagePage is one page of messages from the repository.
type MessagePage struct {
	Items   []Message `json:"items"`
	HasMore bool      `json:"has_more"`
}

// SendResult is the upstream acknowledgement of a sent message.
type SendResult struct {
	PendingMessageID string `json:"pending_message_id"`
}

// SuggestionStatus is the load state of a reply suggestion.
type SuggestionStatus string

const (
	SuggestionIdle    SuggestionStatus = "idle"
	SuggestionLoading SuggestionStatus = "loading"
	SuggestionReady   SuggestionStatus = "ready"
	SuggestionFailed  SuggestionStatus = "failed"
)

// SuggestionEntry is the session-scoped suggestion state for one conversation.
type SuggestionEntry struct {
	ChatID string           `json:"chat_id"`
	Status SuggestionStatus `json:"status"`
	Text   string           `json:"text"`
}

// Settled reports whether the entry is no longer loading.
func (e SuggestionEntry) Settled() bool {
	return e.Status == SuggestionReady || e.Status == SuggestionFailed
}
