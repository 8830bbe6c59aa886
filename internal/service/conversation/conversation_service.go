package conversation

import (
	"context"
	"errors"
	"fmt"

	"rodeoai/internal/config"
	"rodeoai/internal/logger"
	"rodeoai/internal/repository/db"
	"rodeoai/internal/service/llm"

	"github.com/sirupsen/logrus"
)

// ErrUnauthorized is returned when a user accesses a conversation they do not own
var ErrUnauthorized = errors.New("unauthorized: user does not own this conversation")

const (
	titleMaxRunes    = 50
	titleEllipsis    = "..."
	defaultListLimit = 50
)

// ConversationService creates conversations, appends turns and assembles prompt history
type ConversationService struct {
	db      db.Database
	catalog *config.Catalog
	locks   *KeyedLock
}

// NewConversationService creates a new ConversationService
func NewConversationService(database db.Database, catalog *config.Catalog) *ConversationService {
	return &ConversationService{
		db:      database,
		catalog: catalog,
		locks:   NewKeyedLock(),
	}
}

// CreateConversation starts a new untitled conversation and returns its id
func (s *ConversationService) CreateConversation(ctx context.Context, userID int64, model, persona string) (int64, error) {
	conv, err := s.db.CreateConversation(ctx, userID, model, persona)
	if err != nil {
		return 0, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv.ID, nil
}

// AddMessage appends a complete message and returns its id
func (s *ConversationService) AddMessage(ctx context.Context, conversationID int64, role, content string, tokensUsed int64, model *string) (int64, error) {
	return s.addMessage(ctx, db.NewMessage{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		TokensUsed:     tokensUsed,
		Model:          model,
	})
}

// AddPartialMessage appends an assistant reply that was cut short
func (s *ConversationService) AddPartialMessage(ctx context.Context, conversationID int64, content string, tokensUsed int64, model *string) (int64, error) {
	return s.addMessage(ctx, db.NewMessage{
		ConversationID: conversationID,
		Role:           db.RoleAssistant,
		Content:        content,
		TokensUsed:     tokensUsed,
		Model:          model,
		Partial:        true,
	})
}

// addMessage offers a title with every user turn; the store applies it only
// to seq 1, which a single message can hold, so the title is set exactly once.
func (s *ConversationService) addMessage(ctx context.Context, msg db.NewMessage) (int64, error) {
	if msg.Role == db.RoleUser {
		title := DeriveTitle(msg.Content)
		msg.Title = &title
	}

	saved, err := s.db.AddMessage(ctx, msg)
	if err != nil {
		return 0, fmt.Errorf("failed to add message: %w", err)
	}

	return saved.ID, nil
}

// DeriveTitle truncates content to the title length, marking truncation with an ellipsis
func DeriveTitle(content string) string {
	runes := []rune(content)
	if len(runes) <= titleMaxRunes {
		return content
	}
	return string(runes[:titleMaxRunes]) + titleEllipsis
}

// GetConversationMessages returns all messages in insertion order
func (s *ConversationService) GetConversationMessages(ctx context.Context, conversationID int64) ([]db.Message, error) {
	messages, err := s.db.GetConversationMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve messages: %w", err)
	}
	return messages, nil
}

// UpdateConversationTitle renames a conversation
func (s *ConversationService) UpdateConversationTitle(ctx context.Context, conversationID int64, title string) error {
	if err := s.db.UpdateConversationTitle(ctx, conversationID, title); err != nil {
		return fmt.Errorf("failed to update title: %w", err)
	}
	return nil
}

// GetUserConversations lists a user's conversations, most recently updated first
func (s *ConversationService) GetUserConversations(ctx context.Context, userID int64, limit int) ([]db.Conversation, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	conversations, err := s.db.GetConversationsByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve conversations: %w", err)
	}
	return conversations, nil
}

// GetOwnedConversation loads a conversation and verifies the user owns it
func (s *ConversationService) GetOwnedConversation(ctx context.Context, conversationID, userID int64) (*db.Conversation, error) {
	conv, err := s.db.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("conversation not found: %w", err)
	}

	// Verify user owns this conversation
	if conv.UserID != userID {
		return nil, ErrUnauthorized
	}
	return conv, nil
}

// BuildPrompt assembles what is sent upstream: the persona's system prompt, every
// stored message in seq order, then the new user turn.
func (s *ConversationService) BuildPrompt(ctx context.Context, conv *db.Conversation, newUserTurn string) ([]llm.Message, error) {
	history, err := s.GetConversationMessages(ctx, conv.ID)
	if err != nil {
		return nil, err
	}

	persona, ok := s.catalog.Persona(conv.Persona)
	if !ok {
		persona, _ = s.catalog.Persona(string(config.DefaultPersona))
	}

	prompt := make([]llm.Message, 0, len(history)+2)
	prompt = append(prompt, llm.Message{Role: db.RoleSystem, Content: persona.SystemPrompt})
	for _, m := range history {
		prompt = append(prompt, llm.Message{Role: m.Role, Content: m.Content})
	}
	prompt = append(prompt, llm.Message{Role: db.RoleUser, Content: newUserTurn})

	logger.Log.WithFields(logrus.Fields{
		"conversation_id": conv.ID,
		"persona":         persona.ID,
		"history":         len(history),
	}).Debug("Built prompt")

	return prompt, nil
}

// Lock serializes whole chat turns on one conversation. The returned release
// function must be called exactly once; extra calls are ignored.
func (s *ConversationService) Lock(ctx context.Context, conversationID int64) (func(), error) {
	return s.locks.Lock(ctx, conversationID)
}
