package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"rodeoai/internal/repository/db"
)

var _ db.Database = (*MemoryDatabase)(nil)

// MemoryDatabase is an in-memory db.Database with the same ordering, sequencing and
// atomicity guarantees as the PostgreSQL store. Timestamps come from Now, which tests
// may pin to force identical created_at values.
type MemoryDatabase struct {
	mu            sync.Mutex
	Now           func() time.Time
	users         map[int64]*db.User
	conversations map[int64]*db.Conversation
	messages      map[int64][]db.Message
	usage         []db.UsageLogEntry
	nextUser      int64
	nextConv      int64
	nextMessage   int64
	nextUsage     int64

	// FailLogUsage, when set, makes LogUsage fail without writing anything
	FailLogUsage error
}

// NewMemoryDatabase creates an empty store
func NewMemoryDatabase() *MemoryDatabase {
	return &MemoryDatabase{
		Now:           time.Now,
		users:         make(map[int64]*db.User),
		conversations: make(map[int64]*db.Conversation),
		messages:      make(map[int64][]db.Message),
	}
}

// SeedUser inserts a user directly and returns a copy
func (m *MemoryDatabase) SeedUser(email, tier string, dailyUsage int64) *db.User {
	u, _ := m.CreateUser(context.Background(), email, "hash", tier)
	m.mu.Lock()
	m.users[u.ID].DailyUsage = dailyUsage
	out := *m.users[u.ID]
	m.mu.Unlock()
	return &out
}

// UsageEntries returns a copy of every ledger row
func (m *MemoryDatabase) UsageEntries() []db.UsageLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]db.UsageLogEntry(nil), m.usage...)
}

func (m *MemoryDatabase) CreateUser(_ context.Context, email, passwordHash, tier string) (*db.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Email == email {
			return nil, db.ErrEmailTaken
		}
	}
	m.nextUser++
	now := m.Now()
	u := &db.User{ID: m.nextUser, Email: email, PasswordHash: passwordHash, Tier: tier, LastReset: now, CreatedAt: now}
	m.users[u.ID] = u
	out := *u
	return &out, nil
}

func (m *MemoryDatabase) GetUserByID(_ context.Context, id int64) (*db.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	out := *u
	return &out, nil
}

func (m *MemoryDatabase) GetUserByEmail(_ context.Context, email string) (*db.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Email == email {
			out := *u
			return &out, nil
		}
	}
	return nil, db.ErrNotFound
}

func (m *MemoryDatabase) GetDailyUsage(_ context.Context, userID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return 0, db.ErrNotFound
	}
	return u.DailyUsage, nil
}

func (m *MemoryDatabase) ResetDailyUsage(_ context.Context, userID int64, boundary time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok || !u.LastReset.Before(boundary) {
		return false, nil
	}
	u.DailyUsage = 0
	u.LastReset = m.Now()
	return true, nil
}

func (m *MemoryDatabase) ResetAllDailyUsage(_ context.Context, boundary time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, u := range m.users {
		if u.LastReset.Before(boundary) {
			u.DailyUsage = 0
			u.LastReset = m.Now()
			n++
		}
	}
	return n, nil
}

func (m *MemoryDatabase) CreateConversation(_ context.Context, userID int64, model, persona string) (*db.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[userID]; !ok {
		return nil, db.ErrNotFound
	}
	m.nextConv++
	now := m.Now()
	c := &db.Conversation{ID: m.nextConv, UserID: userID, Model: model, Persona: persona, CreatedAt: now, UpdatedAt: now}
	m.conversations[c.ID] = c
	out := *c
	return &out, nil
}

func (m *MemoryDatabase) GetConversation(_ context.Context, id int64) (*db.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.conversations[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	out := *c
	return &out, nil
}

func (m *MemoryDatabase) GetConversationsByUser(_ context.Context, userID int64, limit int) ([]db.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []db.Conversation{}
	for _, c := range m.conversations {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryDatabase) UpdateConversationTitle(_ context.Context, id int64, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.conversations[id]
	if !ok {
		return db.ErrNotFound
	}
	c.Title = &title
	return nil
}

func (m *MemoryDatabase) AddMessage(_ context.Context, msg db.NewMessage) (*db.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.conversations[msg.ConversationID]
	if !ok {
		return nil, db.ErrNotFound
	}
	m.nextMessage++
	now := m.Now()
	out := db.Message{
		ID:             m.nextMessage,
		ConversationID: msg.ConversationID,
		Seq:            int64(len(m.messages[msg.ConversationID]) + 1),
		Role:           msg.Role,
		Content:        msg.Content,
		TokensUsed:     msg.TokensUsed,
		Model:          msg.Model,
		Partial:        msg.Partial,
		CreatedAt:      now,
	}
	m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], out)
	c.UpdatedAt = now
	if out.Seq == 1 && msg.Title != nil && c.Title == nil {
		title := *msg.Title
		c.Title = &title
	}
	return &out, nil
}

func (m *MemoryDatabase) GetConversationMessages(_ context.Context, conversationID int64) ([]db.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]db.Message{}, m.messages[conversationID]...), nil
}

func (m *MemoryDatabase) LogUsage(_ context.Context, entry db.UsageLogEntry) (*db.UsageLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailLogUsage != nil {
		return nil, m.FailLogUsage
	}
	u, ok := m.users[entry.UserID]
	if !ok {
		return nil, db.ErrNotFound
	}
	m.nextUsage++
	entry.ID = m.nextUsage
	entry.TotalTokens = entry.PromptTokens + entry.CompletionTokens
	entry.CreatedAt = m.Now()
	m.usage = append(m.usage, entry)
	u.DailyUsage += entry.TotalTokens
	u.TotalUsage += entry.TotalTokens
	return &entry, nil
}

func (m *MemoryDatabase) GetUsageLogs(_ context.Context, userID int64, limit int) ([]db.UsageLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []db.UsageLogEntry{}
	for i := len(m.usage) - 1; i >= 0; i-- {
		if m.usage[i].UserID == userID {
			out = append(out, m.usage[i])
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryDatabase) Ping(context.Context) error { return nil }

func (m *MemoryDatabase) Close() error { return nil }
