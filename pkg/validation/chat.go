package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	maxMessageRunes = 16000
	maxTitleRunes   = 200
)

var identifierRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,31}$`)

// ChatRequestValidator validates chat-related requests
type ChatRequestValidator struct{}

// NewChatRequestValidator creates a new ChatRequestValidator
func NewChatRequestValidator() *ChatRequestValidator {
	return &ChatRequestValidator{}
}

// ValidateMessage validates a chat message
func (v *ChatRequestValidator) ValidateMessage(message string) error {
	if strings.TrimSpace(message) == "" {
		return errors.New("message cannot be empty")
	}
	if n := utf8.RuneCountInString(message); n > maxMessageRunes {
		return fmt.Errorf("message must be at most %d characters long, got %d", maxMessageRunes, n)
	}
	return nil
}

// ValidateIdentifier checks the shape of an optional model or persona identifier.
// Whether the identifier exists and is allowed is decided by the quota engine.
func (v *ChatRequestValidator) ValidateIdentifier(field, id string) error {
	if id == "" {
		return nil
	}
	if !identifierRegex.MatchString(id) {
		return fmt.Errorf("%s must be a lowercase identifier, got %q", field, id)
	}
	return nil
}

// ValidateConversationID validates an optional conversation id
func (v *ChatRequestValidator) ValidateConversationID(id int64) error {
	if id < 0 {
		return fmt.Errorf("conversation_id must not be negative, got %d", id)
	}
	return nil
}

// ValidateTitle validates a conversation title supplied by the user
func (v *ChatRequestValidator) ValidateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return errors.New("title cannot be empty")
	}
	if n := utf8.RuneCountInString(title); n > maxTitleRunes {
		return fmt.Errorf("title must be at most %d characters long, got %d", maxTitleRunes, n)
	}
	return nil
}

// ValidateChatRequest validates a complete chat request
func (v *ChatRequestValidator) ValidateChatRequest(message string, conversationID int64, model, persona string) error {
	if err := v.ValidateMessage(message); err != nil {
		return err
	}

	if err := v.ValidateConversationID(conversationID); err != nil {
		return err
	}

	if err := v.ValidateIdentifier("model", model); err != nil {
		return err
	}

	if err := v.ValidateIdentifier("persona", persona); err != nil {
		return err
	}

	return nil
}
