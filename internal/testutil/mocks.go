package testutil

import (
	"context"
	"errors"
	"time"

	"rodeoai/internal/repository/db"
	"rodeoai/internal/service/llm"
)

// MockDatabase is a mock implementation of db.Database for testing
type MockDatabase struct {
	// User mocks
	CreateUserFunc         func(ctx context.Context, email, passwordHash, tier string) (*db.User, error)
	GetUserByIDFunc        func(ctx context.Context, id int64) (*db.User, error)
	GetUserByEmailFunc     func(ctx context.Context, email string) (*db.User, error)
	GetDailyUsageFunc      func(ctx context.Context, userID int64) (int64, error)
	ResetDailyUsageFunc    func(ctx context.Context, userID int64, boundary time.Time) (bool, error)
	ResetAllDailyUsageFunc func(ctx context.Context, boundary time.Time) (int64, error)

	// Conversation mocks
	CreateConversationFunc      func(ctx context.Context, userID int64, model, persona string) (*db.Conversation, error)
	GetConversationFunc         func(ctx context.Context, id int64) (*db.Conversation, error)
	GetConversationsByUserFunc  func(ctx context.Context, userID int64, limit int) ([]db.Conversation, error)
	UpdateConversationTitleFunc func(ctx context.Context, id int64, title string) error

	// Message mocks
	AddMessageFunc              func(ctx context.Context, msg db.NewMessage) (*db.Message, error)
	GetConversationMessagesFunc func(ctx context.Context, conversationID int64) ([]db.Message, error)

	// Usage mocks
	LogUsageFunc     func(ctx context.Context, entry db.UsageLogEntry) (*db.UsageLogEntry, error)
	GetUsageLogsFunc func(ctx context.Context, userID int64, limit int) ([]db.UsageLogEntry, error)

	PingFunc func(ctx context.Context) error
}

var errNotImplemented = errors.New("not implemented")

// User methods
func (m *MockDatabase) CreateUser(ctx context.Context, email, passwordHash, tier string) (*db.User, error) {
	if m.CreateUserFunc != nil {
		return m.CreateUserFunc(ctx, email, passwordHash, tier)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) GetUserByID(ctx context.Context, id int64) (*db.User, error) {
	if m.GetUserByIDFunc != nil {
		return m.GetUserByIDFunc(ctx, id)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) GetUserByEmail(ctx context.Context, email string) (*db.User, error) {
	if m.GetUserByEmailFunc != nil {
		return m.GetUserByEmailFunc(ctx, email)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) GetDailyUsage(ctx context.Context, userID int64) (int64, error) {
	if m.GetDailyUsageFunc != nil {
		return m.GetDailyUsageFunc(ctx, userID)
	}
	return 0, errNotImplemented
}

func (m *MockDatabase) ResetDailyUsage(ctx context.Context, userID int64, boundary time.Time) (bool, error) {
	if m.ResetDailyUsageFunc != nil {
		return m.ResetDailyUsageFunc(ctx, userID, boundary)
	}
	return false, errNotImplemented
}

func (m *MockDatabase) ResetAllDailyUsage(ctx context.Context, boundary time.Time) (int64, error) {
	if m.ResetAllDailyUsageFunc != nil {
		return m.ResetAllDailyUsageFunc(ctx, boundary)
	}
	return 0, errNotImplemented
}

// Conversation methods
func (m *MockDatabase) CreateConversation(ctx context.Context, userID int64, model, persona string) (*db.Conversation, error) {
	if m.CreateConversationFunc != nil {
		return m.CreateConversationFunc(ctx, userID, model, persona)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) GetConversation(ctx context.Context, id int64) (*db.Conversation, error) {
	if m.GetConversationFunc != nil {
		return m.GetConversationFunc(ctx, id)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) GetConversationsByUser(ctx context.Context, userID int64, limit int) ([]db.Conversation, error) {
	if m.GetConversationsByUserFunc != nil {
		return m.GetConversationsByUserFunc(ctx, userID, limit)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) UpdateConversationTitle(ctx context.Context, id int64, title string) error {
	if m.UpdateConversationTitleFunc != nil {
		return m.UpdateConversationTitleFunc(ctx, id, title)
	}
	return errNotImplemented
}

// Message methods
func (m *MockDatabase) AddMessage(ctx context.Context, msg db.NewMessage) (*db.Message, error) {
	if m.AddMessageFunc != nil {
		return m.AddMessageFunc(ctx, msg)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) GetConversationMessages(ctx context.Context, conversationID int64) ([]db.Message, error) {
	if m.GetConversationMessagesFunc != nil {
		return m.GetConversationMessagesFunc(ctx, conversationID)
	}
	return nil, errNotImplemented
}

// Usage methods
func (m *MockDatabase) LogUsage(ctx context.Context, entry db.UsageLogEntry) (*db.UsageLogEntry, error) {
	if m.LogUsageFunc != nil {
		return m.LogUsageFunc(ctx, entry)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) GetUsageLogs(ctx context.Context, userID int64, limit int) ([]db.UsageLogEntry, error) {
	if m.GetUsageLogsFunc != nil {
		return m.GetUsageLogsFunc(ctx, userID, limit)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

func (m *MockDatabase) Close() error {
	return nil
}

// MockRelay is a mock implementation of llm.Relay for testing
type MockRelay struct {
	CompleteFunc func(ctx context.Context, req llm.CompletionRequest) (*llm.Completion, error)
	StreamFunc   func(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamChunk, error)
}

func (m *MockRelay) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.Completion, error) {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return nil, errNotImplemented
}

func (m *MockRelay) Stream(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamChunk, error) {
	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, req)
	}
	return nil, errNotImplemented
}

// StreamOf returns a closed, buffered channel holding chunks, for use in StreamFunc
func StreamOf(chunks ...llm.StreamChunk) <-chan llm.StreamChunk {
	ch := make(chan llm.StreamChunk, len(chunks))
	for _, c := range chunks {
		ch <- c
	}
	close(ch)
	return ch
}
