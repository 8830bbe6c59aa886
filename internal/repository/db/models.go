package db

import "time"

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// User represents a user in the database
type User struct {
	ID           int64     `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Tier         string    `db:"tier" json:"tier"`
	DailyUsage   int64     `db:"daily_usage" json:"daily_usage"`
	TotalUsage   int64     `db:"total_usage" json:"total_usage"`
	LastReset    time.Time `db:"last_reset" json:"last_reset"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Conversation represents a conversation in the database
type Conversation struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Title     *string   `db:"title" json:"title"`
	Model     string    `db:"model" json:"model"`
	Persona   string    `db:"persona" json:"persona"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Message represents a message in a conversation. Seq is the per-conversation
// insertion sequence and defines ordering.
type Message struct {
	ID             int64     `db:"id" json:"id"`
	ConversationID int64     `db:"conversation_id" json:"conversation_id"`
	Seq            int64     `db:"seq" json:"seq"`
	Role           string    `db:"role" json:"role"`
	Content        string    `db:"content" json:"content"`
	TokensUsed     int64     `db:"tokens_used" json:"tokens_used"`
	Model          *string   `db:"model" json:"model"`
	Partial        bool      `db:"partial" json:"partial"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// NewMessage holds the fields supplied when appending a message
type NewMessage struct {
	ConversationID int64
	Role           string
	Content        string
	TokensUsed     int64
	Model          *string
	Partial        bool
	// Title is applied to the conversation in the same transaction when this
	// message lands at seq 1 and the conversation is still untitled
	Title *string
}

// UsageLogEntry is one row of the usage ledger
type UsageLogEntry struct {
	ID               int64     `db:"id" json:"id"`
	UserID           int64     `db:"user_id" json:"user_id"`
	ConversationID   *int64    `db:"conversation_id" json:"conversation_id"`
	Model            string    `db:"model" json:"model"`
	PromptTokens     int64     `db:"prompt_tokens" json:"prompt_tokens"`
	CompletionTokens int64     `db:"completion_tokens" json:"completion_tokens"`
	TotalTokens      int64     `db:"total_tokens" json:"total_tokens"`
	Cost             float64   `db:"cost" json:"cost"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}
