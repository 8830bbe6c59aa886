package db

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a user or conversation does not exist
	ErrNotFound = errors.New("record not found")

	// ErrEmailTaken is returned when registering an email that already exists
	ErrEmailTaken = errors.New("email already registered")
)

// Database defines the interface for all database operations
// This allows for easier testing through mocking and decouples the services from the specific database implementation
type Database interface {
	// Users
	CreateUser(ctx context.Context, email, passwordHash, tier string) (*User, error)
	GetUserByID(ctx context.Context, id int64) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetDailyUsage(ctx context.Context, userID int64) (int64, error)
	// ResetDailyUsage zeroes daily_usage if last_reset is before boundary and reports whether it did.
	ResetDailyUsage(ctx context.Context, userID int64, boundary time.Time) (bool, error)
	// ResetAllDailyUsage zeroes daily_usage for every user last reset before boundary.
	ResetAllDailyUsage(ctx context.Context, boundary time.Time) (int64, error)

	// Conversations
	CreateConversation(ctx context.Context, userID int64, model, persona string) (*Conversation, error)
	GetConversation(ctx context.Context, id int64) (*Conversation, error)
	GetConversationsByUser(ctx context.Context, userID int64, limit int) ([]Conversation, error)
	UpdateConversationTitle(ctx context.Context, id int64, title string) error

	// Messages
	// AddMessage appends a message, assigning the next seq and bumping the conversation's updated_at.
	AddMessage(ctx context.Context, msg NewMessage) (*Message, error)
	GetConversationMessages(ctx context.Context, conversationID int64) ([]Message, error)

	// Usage ledger
	// LogUsage inserts a ledger row and increments the user's counters in one transaction.
	LogUsage(ctx context.Context, entry UsageLogEntry) (*UsageLogEntry, error)
	GetUsageLogs(ctx context.Context, userID int64, limit int) ([]UsageLogEntry, error)

	Ping(ctx context.Context) error
	Close() error
}
