package usage

import (
	"context"
	"errors"
	"testing"

	"rodeoai/internal/config"
	"rodeoai/internal/repository/db"
	"rodeoai/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogUsage_IncrementsCounters(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemoryDatabase()
	user := store.SeedUser("rider@example.com", "pro", 0)
	conv, err := store.CreateConversation(ctx, user.ID, "gold-buckle", "general")
	require.NoError(t, err)

	ledger := NewLedger(store, config.DefaultCatalog())

	entry, err := ledger.LogUsage(ctx, user.ID, &conv.ID, "gold-buckle", 100, 50, 0.00075)
	require.NoError(t, err)
	assert.Equal(t, int64(150), entry.TotalTokens)

	got, err := store.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(150), got.DailyUsage)
	assert.Equal(t, int64(150), got.TotalUsage)
	assert.Len(t, store.UsageEntries(), 1)

	// not idempotent: a repeat call is a second event
	_, err = ledger.LogUsage(ctx, user.ID, &conv.ID, "gold-buckle", 100, 50, 0.00075)
	require.NoError(t, err)

	got, err = store.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(300), got.DailyUsage)
	assert.Equal(t, int64(300), got.TotalUsage)
	assert.Len(t, store.UsageEntries(), 2)

	today, err := ledger.GetUserUsageToday(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(300), today)
}

func TestLogUsage_NilConversation(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemoryDatabase()
	user := store.SeedUser("rider@example.com", "free", 0)

	ledger := NewLedger(store, config.DefaultCatalog())
	entry, err := ledger.LogUsage(ctx, user.ID, nil, "scamper", 10, 0, 0.0000015)
	require.NoError(t, err)
	assert.Nil(t, entry.ConversationID)
}

func TestLogUsage_RejectsNegativeTokens(t *testing.T) {
	mockDB := &testutil.MockDatabase{
		LogUsageFunc: func(ctx context.Context, entry db.UsageLogEntry) (*db.UsageLogEntry, error) {
			t.Fatal("store must not be called")
			return nil, nil
		},
	}
	ledger := NewLedger(mockDB, config.DefaultCatalog())

	_, err := ledger.LogUsage(context.Background(), 1, nil, "scamper", -1, 5, 0)
	assert.ErrorIs(t, err, ErrNegativeTokens)

	_, err = ledger.LogUsage(context.Background(), 1, nil, "scamper", 5, -1, 0)
	assert.ErrorIs(t, err, ErrNegativeTokens)
}

func TestLogUsage_StoreFailureLeavesCountersUntouched(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemoryDatabase()
	user := store.SeedUser("rider@example.com", "free", 40)
	store.FailLogUsage = errors.New("connection refused")

	ledger := NewLedger(store, config.DefaultCatalog())
	_, err := ledger.LogUsage(ctx, user.ID, nil, "scamper", 10, 10, 0)
	require.Error(t, err)

	today, err := ledger.GetUserUsageToday(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(40), today)
	assert.Empty(t, store.UsageEntries())
}

func TestGetUsageSummary(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name          string
		tier          string
		daily         int64
		wantTier      config.Tier
		wantRemaining int64
	}{
		{"free with budget left", "free", 2500, config.TierFree, 7500},
		{"free over budget", "free", 12000, config.TierFree, 0},
		{"unknown tier reported as free", "gold", 0, config.TierFree, 10000},
		{"pro", "pro", 100, config.TierPro, 499900},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testutil.NewMemoryDatabase()
			user := store.SeedUser("rider@example.com", tt.tier, tt.daily)
			ledger := NewLedger(store, config.DefaultCatalog())

			summary, err := ledger.GetUsageSummary(ctx, user)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTier, summary.Tier)
			assert.Equal(t, tt.daily, summary.DailyUsage)
			assert.Equal(t, tt.wantRemaining, summary.Remaining)
			assert.False(t, summary.Unlimited)
		})
	}
}

func TestRecentEntries_DefaultLimit(t *testing.T) {
	var gotLimit int
	mockDB := &testutil.MockDatabase{
		GetUsageLogsFunc: func(ctx context.Context, userID int64, limit int) ([]db.UsageLogEntry, error) {
			gotLimit = limit
			return []db.UsageLogEntry{{ID: 1}}, nil
		},
	}
	ledger := NewLedger(mockDB, config.DefaultCatalog())

	entries, err := ledger.RecentEntries(context.Background(), 1, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, defaultRecentLimit, gotLimit)
}
