package model

import (
	"time"
)

// ActivityKind is the type of inbox activity.
type ActivityKind string

const (
	ActivityArchived         ActivityKind = "archived"
	ActivityArchiveFailed    ActivityKind = "archive_failed"
	ActivityMessageSent      ActivityKind = "message_sent"
	ActivitySuggestionReady  ActivityKind = "suggestion_ready"
	ActivitySuggestionFailed ActivityKind = "suggestion_failed"
)

// ActivityEvent records something the user did to a conversation.
type ActivityEvent struct {
	ID        string       `json:"id"`
	ChatID    string       `json:"chat_id"`
	Kind      ActivityKind `json:"kind"`
	Reason    string       `json:"reason,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}
