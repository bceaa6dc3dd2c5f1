package middleware

import (
	"errors"
	"strings"
	"unicode/utf8"
)

const (
	maxChatIDLength  = 512
	maxMessageLength = 100000
)

// ValidateChatID validates an upstream chat id. Ids are opaque, so only
// presence, length and encoding are checked.
func ValidateChatID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("chat ID cannot be empty")
	}
	if len(id) > maxChatIDLength {
		return errors.New("chat ID exceeds maximum length")
	}
	if !utf8.ValidString(id) {
		return errors.New("chat ID must be valid UTF-8")
	}
	return nil
}

// ValidateMessageText validates reply text.
func ValidateMessageText(text string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("message text cannot be empty")
	}
	return ValidateDraft(text)
}

// ValidateDraft validates draft text, which may be empty.
func ValidateDraft(text string) error {
	if len(text) > maxMessageLength {
		return errors.New("message text exceeds maximum length")
	}
	if !utf8.ValidString(text) {
		return errors.New("message text must be valid UTF-8")
	}
	return nil
}

// ValidateKey validates a key press name.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("key cannot be empty")
	}
	if len(key) > 32 {
		return errors.New("key exceeds maximum length")
	}
	return nil
}
