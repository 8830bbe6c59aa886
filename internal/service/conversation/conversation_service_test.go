package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"rodeoai/internal/config"
	"rodeoai/internal/repository/db"
	"rodeoai/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (*ConversationService, *testutil.MemoryDatabase, *db.User) {
	t.Helper()
	store := testutil.NewMemoryDatabase()
	user := store.SeedUser("rider@example.com", "pro", 0)
	return NewConversationService(store, config.DefaultCatalog()), store, user
}

func strPtr(s string) *string { return &s }

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"short", "Barrel racing tips", "Barrel racing tips"},
		{"exactly fifty", strings.Repeat("a", 50), strings.Repeat("a", 50)},
		{"fifty one", strings.Repeat("a", 51), strings.Repeat("a", 50) + "..."},
		{"multibyte counted as runes", strings.Repeat("🤠", 60), strings.Repeat("🤠", 50) + "..."},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveTitle(tt.content))
		})
	}
}

func TestAddMessage_FirstUserTurnSetsTitleOnce(t *testing.T) {
	ctx := context.Background()
	svc, store, user := newService(t)

	convID, err := svc.CreateConversation(ctx, user.ID, "scamper", "general")
	require.NoError(t, err)

	first := strings.Repeat("How do I fix my heel loop? ", 3) // 81 chars
	require.Len(t, first, 81)
	_, err = svc.AddMessage(ctx, convID, db.RoleUser, first, 0, nil)
	require.NoError(t, err)

	conv, err := store.GetConversation(ctx, convID)
	require.NoError(t, err)
	require.NotNil(t, conv.Title)
	assert.Equal(t, first[:50]+"...", *conv.Title)

	_, err = svc.AddMessage(ctx, convID, db.RoleAssistant, "Keep your swing flat.", 12, strPtr("scamper"))
	require.NoError(t, err)
	_, err = svc.AddMessage(ctx, convID, db.RoleUser, "Something else entirely", 0, nil)
	require.NoError(t, err)

	conv, err = store.GetConversation(ctx, convID)
	require.NoError(t, err)
	assert.Equal(t, first[:50]+"...", *conv.Title, "later messages must not change the title")
}

func TestAddMessage_OffersTitleWithUserTurnsOnly(t *testing.T) {
	var offered []*string
	mockDB := &testutil.MockDatabase{
		AddMessageFunc: func(ctx context.Context, msg db.NewMessage) (*db.Message, error) {
			offered = append(offered, msg.Title)
			return &db.Message{ID: int64(len(offered)), ConversationID: msg.ConversationID, Seq: int64(len(offered)), Role: msg.Role}, nil
		},
		UpdateConversationTitleFunc: func(ctx context.Context, id int64, title string) error {
			t.Fatal("the title is written by the append itself")
			return nil
		},
	}
	svc := NewConversationService(mockDB, config.DefaultCatalog())

	_, err := svc.AddMessage(context.Background(), 1, db.RoleAssistant, "hello", 1, nil)
	require.NoError(t, err)
	_, err = svc.AddPartialMessage(context.Background(), 1, "cut", 1, nil)
	require.NoError(t, err)
	_, err = svc.AddMessage(context.Background(), 1, db.RoleUser, "Roping practice", 0, nil)
	require.NoError(t, err)

	require.Len(t, offered, 3)
	assert.Nil(t, offered[0])
	assert.Nil(t, offered[1])
	require.NotNil(t, offered[2])
	assert.Equal(t, "Roping practice", *offered[2])
}

func TestAddMessage_FirstAssistantTurnLeavesConversationUntitled(t *testing.T) {
	ctx := context.Background()
	svc, store, user := newService(t)

	convID, err := svc.CreateConversation(ctx, user.ID, "scamper", "general")
	require.NoError(t, err)

	_, err = svc.AddMessage(ctx, convID, db.RoleAssistant, "Howdy, partner.", 3, strPtr("scamper"))
	require.NoError(t, err)
	_, err = svc.AddMessage(ctx, convID, db.RoleUser, "Second position user turn", 0, nil)
	require.NoError(t, err)

	conv, err := store.GetConversation(ctx, convID)
	require.NoError(t, err)
	assert.Nil(t, conv.Title, "only the message at seq 1 can title a conversation")
}

func TestAddMessage_StoreFailureIsReturned(t *testing.T) {
	mockDB := &testutil.MockDatabase{
		AddMessageFunc: func(ctx context.Context, msg db.NewMessage) (*db.Message, error) {
			return nil, errors.New("deadlock detected")
		},
	}
	svc := NewConversationService(mockDB, config.DefaultCatalog())

	_, err := svc.AddMessage(context.Background(), 1, db.RoleUser, "hello", 0, nil)
	assert.ErrorContains(t, err, "deadlock detected")
}

func TestAddMessage_BumpsUpdatedAt(t *testing.T) {
	ctx := context.Background()
	svc, store, user := newService(t)

	clock := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	store.Now = func() time.Time { return clock }

	older, err := svc.CreateConversation(ctx, user.ID, "scamper", "general")
	require.NoError(t, err)
	clock = clock.Add(time.Minute)
	newer, err := svc.CreateConversation(ctx, user.ID, "scamper", "general")
	require.NoError(t, err)

	convs, err := svc.GetUserConversations(ctx, user.ID, 0)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, newer, convs[0].ID)

	clock = clock.Add(time.Minute)
	_, err = svc.AddMessage(ctx, older, db.RoleUser, "bump", 0, nil)
	require.NoError(t, err)

	convs, err = svc.GetUserConversations(ctx, user.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, older, convs[0].ID, "appending a message moves the conversation to the top")
}

func TestAddPartialMessage(t *testing.T) {
	ctx := context.Background()
	svc, store, user := newService(t)

	convID, err := svc.CreateConversation(ctx, user.ID, "scamper", "general")
	require.NoError(t, err)
	_, err = svc.AddPartialMessage(ctx, convID, "Keep your", 2, strPtr("scamper"))
	require.NoError(t, err)

	msgs, err := store.GetConversationMessages(ctx, convID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].Partial)
	assert.Equal(t, db.RoleAssistant, msgs[0].Role)
}

func TestGetConversationMessages_RoundTripWithIdenticalTimestamps(t *testing.T) {
	ctx := context.Background()
	svc, store, user := newService(t)

	frozen := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	store.Now = func() time.Time { return frozen }

	convID, err := svc.CreateConversation(ctx, user.ID, "scamper", "general")
	require.NoError(t, err)

	want := []struct{ role, content string }{
		{db.RoleUser, "one"},
		{db.RoleAssistant, "two"},
		{db.RoleUser, "three"},
		{db.RoleAssistant, "four"},
		{db.RoleUser, "five"},
	}
	for _, m := range want {
		_, err := svc.AddMessage(ctx, convID, m.role, m.content, 0, nil)
		require.NoError(t, err)
	}

	got, err := svc.GetConversationMessages(ctx, convID)
	require.NoError(t, err)
	require.Len(t, got, len(want))
	for i, m := range want {
		assert.Equal(t, m.role, got[i].Role)
		assert.Equal(t, m.content, got[i].Content)
		assert.Equal(t, int64(i+1), got[i].Seq)
		assert.True(t, got[i].CreatedAt.Equal(frozen))
	}
}

func TestGetUserConversations_DefaultLimit(t *testing.T) {
	var gotLimit int
	mockDB := &testutil.MockDatabase{
		GetConversationsByUserFunc: func(ctx context.Context, userID int64, limit int) ([]db.Conversation, error) {
			gotLimit = limit
			return []db.Conversation{}, nil
		},
	}
	svc := NewConversationService(mockDB, config.DefaultCatalog())

	_, err := svc.GetUserConversations(context.Background(), 1, -3)
	require.NoError(t, err)
	assert.Equal(t, 50, gotLimit)

	_, err = svc.GetUserConversations(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, gotLimit)
}

func TestGetOwnedConversation(t *testing.T) {
	ctx := context.Background()
	svc, store, user := newService(t)
	other := store.SeedUser("other@example.com", "free", 0)

	convID, err := svc.CreateConversation(ctx, user.ID, "scamper", "general")
	require.NoError(t, err)

	conv, err := svc.GetOwnedConversation(ctx, convID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, convID, conv.ID)

	_, err = svc.GetOwnedConversation(ctx, convID, other.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = svc.GetOwnedConversation(ctx, 999, user.ID)
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestBuildPrompt(t *testing.T) {
	ctx := context.Background()
	svc, _, user := newService(t)
	catalog := config.DefaultCatalog()

	convID, err := svc.CreateConversation(ctx, user.ID, "gold-buckle", "dale")
	require.NoError(t, err)
	_, err = svc.AddMessage(ctx, convID, db.RoleUser, "How do I stay on?", 0, nil)
	require.NoError(t, err)
	_, err = svc.AddMessage(ctx, convID, db.RoleAssistant, "Chin down, free arm up.", 9, strPtr("gold-buckle"))
	require.NoError(t, err)

	conv, err := svc.GetOwnedConversation(ctx, convID, user.ID)
	require.NoError(t, err)

	prompt, err := svc.BuildPrompt(ctx, conv, "What about my spurs?")
	require.NoError(t, err)
	require.Len(t, prompt, 4)

	dale, _ := catalog.Persona("dale")
	assert.Equal(t, db.RoleSystem, prompt[0].Role)
	assert.Equal(t, dale.SystemPrompt, prompt[0].Content)
	assert.Equal(t, "How do I stay on?", prompt[1].Content)
	assert.Equal(t, db.RoleAssistant, prompt[2].Role)
	assert.Equal(t, db.RoleUser, prompt[3].Role)
	assert.Equal(t, "What about my spurs?", prompt[3].Content)
}

func TestBuildPrompt_UnknownPersonaUsesDefault(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)
	catalog := config.DefaultCatalog()

	prompt, err := svc.BuildPrompt(ctx, &db.Conversation{ID: 123, Persona: "retired"}, "hi")
	require.NoError(t, err)

	general, _ := catalog.Persona(string(config.DefaultPersona))
	assert.Equal(t, general.SystemPrompt, prompt[0].Content)
	assert.Len(t, prompt, 2)
}

func (l *KeyedLock) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func TestKeyedLock_SerializesSameKey(t *testing.T) {
	locks := NewKeyedLock()
	ctx := context.Background()

	var mu sync.Mutex
	active, maxActive := 0, 0
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locks.Lock(ctx, 1)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxActive)
	assert.Equal(t, 0, locks.held(), "entries are dropped when unused")
}

func TestKeyedLock_DifferentKeysDoNotBlock(t *testing.T) {
	locks := NewKeyedLock()
	ctx := context.Background()

	release1, err := locks.Lock(ctx, 1)
	require.NoError(t, err)
	defer release1()

	ctx2, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	release2, err := locks.Lock(ctx2, 2)
	require.NoError(t, err)
	release2()
}

func TestKeyedLock_ContextCancel(t *testing.T) {
	locks := NewKeyedLock()

	release, err := locks.Lock(context.Background(), 1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = locks.Lock(ctx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release() // second call is a no-op
	assert.Equal(t, 0, locks.held())
}
