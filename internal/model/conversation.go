// Package model defines data structures for the inbox.
package model

import (
	"time"
)

// Participant is a member of a conversation.
type Participant struct {
	ID        string `json:"id"`
	FullName  string `json:"full_name,omitempty"`
	IsSelf    bool   `json:"is_self"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Conversation represents a chat thread surfaced by the upstream connector.
type Conversation struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Participants []Participant `json:"participants"`
	LastMessage  *Message      `json:"last_message"`
	LastActivity time.Time     `json:"last_activity"`
	UnreadCount  int           `json:"unread_count"`
	Archived     bool          `json:"archived"`
}

// IsUnread reports whether the conversation has unread messages.
func (c *Conversation) IsUnread() bool {
	return c.UnreadCount > 0
}

// IsUnresponded reports whether the most recent message was not sent by the user.
// A conversation without messages counts as unresponded.
func (c *Conversation) IsUnresponded() bool {
	return c.LastMessage == nil || !c.LastMessage.IsSender
}

// DisplayName returns the title, or a placeholder for untitled chats.
func (c *Conversation) DisplayName() string {
	if c.Title == "" {
		return "Unknown Chat"
	}
	return c.Title
}

// DisplayTimestamp prefers the last message timestamp over last activity.
func (c *Conversation) DisplayTimestamp() time.Time {
	if c.LastMessage != nil && !c.LastMessage.Timestamp.IsZero() {
		return c.LastMessage.Timestamp
	}
	return c.LastActivity
}

// OtherParticipant returns the first participant that is not the user.
func (c *Conversation) OtherParticipant() *Participant {
	for i := range c.Participants {
		if !c.Participants[i].IsSelf {
			return &c.Participants[i]
		}
	}
	return nil
}

// ConversationPage is one page of conversations from the repository.
type ConversationPage struct {
	Items   []Conversation `json:"items"`
	HasMore bool           `json:"has_more"`
}

// ListConversationsOptions filters a conversation listing.
type ListConversationsOptions struct {
	IncludeMuted bool
	Limit        int
}

// Filter is a view predicate over conversations.
type Filter string

const (
	FilterUnresponded Filter = "unresponded"
	FilterAll         Filter = "all"
)

// ParseFilter parses a filter name.
func ParseFilter(s string) (Filter, bool) {
	switch Filter(s) {
	case FilterUnresponded, FilterAll:
		return Filter(s), true
	default:
		return "", false
	}
}

// Match reports whether the conversation is visible under the filter.
// The unresponded view also keeps unread conversations.
func (f Filter) Match(c *Conversation) bool {
	if f == FilterUnresponded {
		return c.IsUnresponded() || c.IsUnread()
	}
	return true
}
