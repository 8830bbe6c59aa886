package quota

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"rodeoai/internal/config"
	"rodeoai/internal/repository/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type usageFunc func(ctx context.Context, userID int64) (int64, error)

func (f usageFunc) GetUserUsageToday(ctx context.Context, userID int64) (int64, error) {
	return f(ctx, userID)
}

func fixedUsage(n int64) UsageReader {
	return usageFunc(func(context.Context, int64) (int64, error) { return n, nil })
}

func TestCheckQuota_ModelGating(t *testing.T) {
	catalog := config.DefaultCatalog()
	engine := NewEngine(catalog, fixedUsage(0), nil)

	tiers := []string{"free", "pro", "champion", "team"}
	models := []string{"scamper", "gold-buckle", "bodacious", "gpt-4"}

	for _, tier := range tiers {
		for _, model := range models {
			t.Run(tier+"/"+model, func(t *testing.T) {
				err := engine.CheckQuota(context.Background(), &db.User{ID: 1, Tier: tier}, model)
				if catalog.ModelAllowed(tier, model) {
					assert.NoError(t, err)
					return
				}
				assert.ErrorIs(t, err, ErrModelNotAllowed)
				var admission *AdmissionError
				require.True(t, errors.As(err, &admission))
				assert.Equal(t, http.StatusForbidden, admission.StatusCode())
			})
		}
	}
}

func TestCheckQuota_DailyLimit(t *testing.T) {
	tests := []struct {
		name    string
		tier    string
		used    int64
		wantErr error
	}{
		{"free below limit", "free", 9999, nil},
		{"free at limit", "free", 10000, ErrQuotaExceeded},
		{"free above limit", "free", 12000, ErrQuotaExceeded},
		{"unknown tier uses free limit", "platinum", 10000, ErrQuotaExceeded},
		{"empty tier uses free limit", "", 500, nil},
		{"pro below limit", "pro", 499999, nil},
		{"pro at limit", "pro", 500000, ErrQuotaExceeded},
		{"team at limit", "team", 10000000, ErrQuotaExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewEngine(config.DefaultCatalog(), fixedUsage(tt.used), nil)
			err := engine.CheckQuota(context.Background(), &db.User{ID: 1, Tier: tt.tier}, "scamper")
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			var admission *AdmissionError
			require.True(t, errors.As(err, &admission))
			assert.Equal(t, http.StatusTooManyRequests, admission.StatusCode())
			assert.Equal(t, "Daily quota exceeded. Upgrade for more queries.", admission.Message)
		})
	}
}

func TestCheckQuota_UnlimitedTierSkipsUsageRead(t *testing.T) {
	catalog, err := config.NewCatalog(
		[]config.Model{{ID: config.ModelScamper, InputPrice: 0.1, OutputPrice: 0.1}},
		[]config.Persona{{ID: config.PersonaGeneral}},
		[]config.TierLimit{{Tier: config.TierFree, DailyTokenLimit: config.UnlimitedTokens, AllowedModels: []config.ModelID{config.ModelScamper}}},
	)
	require.NoError(t, err)

	called := false
	engine := NewEngine(catalog, usageFunc(func(context.Context, int64) (int64, error) {
		called = true
		return 1 << 40, nil
	}), nil)

	assert.NoError(t, engine.CheckQuota(context.Background(), &db.User{ID: 1, Tier: "free"}, "scamper"))
	assert.False(t, called, "unlimited tiers never read usage")
}

func TestCheckQuota_UsageReadError(t *testing.T) {
	engine := NewEngine(config.DefaultCatalog(), usageFunc(func(context.Context, int64) (int64, error) {
		return 0, errors.New("database unavailable")
	}), nil)

	err := engine.CheckQuota(context.Background(), &db.User{ID: 1, Tier: "free"}, "scamper")
	require.Error(t, err)
	var admission *AdmissionError
	assert.False(t, errors.As(err, &admission), "store failures are not admission errors")
}

func TestCheckPersonaAccess(t *testing.T) {
	engine := NewEngine(config.DefaultCatalog(), fixedUsage(0), nil)

	tests := []struct {
		tier    string
		persona string
		allowed bool
	}{
		{"free", "general", true},
		{"free", "westdesperado", true},
		{"free", "wesley", false},
		{"free", "dale", false},
		{"pro", "carlye", true},
		{"champion", "ezekiel", true},
		{"team", "unknown", false},
		{"bogus", "wesley", false},
	}

	for _, tt := range tests {
		t.Run(tt.tier+"/"+tt.persona, func(t *testing.T) {
			err := engine.CheckPersonaAccess(&db.User{Tier: tt.tier}, tt.persona)
			if tt.allowed {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrPersonaNotAllowed)
			assert.Contains(t, err.Error(), "requires Pro tier or higher")
		})
	}
}

func TestCalculateCost(t *testing.T) {
	engine := NewEngine(config.DefaultCatalog(), fixedUsage(0), nil)

	tests := []struct {
		model            string
		prompt, complete int64
		want             float64
	}{
		{"scamper", 1000, 500, 0.00045},
		{"gold-buckle", 100, 50, 0.00075},
		{"bodacious", 1000, 1000, 0.018},
		{"scamper", 0, 0, 0},
		{"scamper", 1, 1, 0.000001},
		// unknown models are priced as scamper
		{"gpt-4", 1000, 500, 0.00045},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, engine.CalculateCost(tt.model, tt.prompt, tt.complete))
		})
	}
}

type resetterFunc func(ctx context.Context, userID int64, boundary time.Time) (bool, error)

func (f resetterFunc) ResetDailyUsage(ctx context.Context, userID int64, boundary time.Time) (bool, error) {
	return f(ctx, userID, boundary)
}

func TestLazyDailyReset(t *testing.T) {
	denver, err := time.LoadLocation("America/Denver")
	require.NoError(t, err)
	now := time.Date(2024, 6, 2, 9, 30, 0, 0, denver)
	boundary := time.Date(2024, 6, 2, 0, 0, 0, 0, denver)

	t.Run("resets after boundary", func(t *testing.T) {
		var gotBoundary time.Time
		policy := NewLazyDailyReset(resetterFunc(func(_ context.Context, _ int64, b time.Time) (bool, error) {
			gotBoundary = b
			return true, nil
		}), denver)
		policy.now = func() time.Time { return now }

		user := &db.User{ID: 1, DailyUsage: 9000, LastReset: boundary.Add(-time.Hour)}
		require.NoError(t, policy.Apply(context.Background(), user))
		assert.True(t, gotBoundary.Equal(boundary))
		assert.Equal(t, int64(0), user.DailyUsage)
	})

	t.Run("skips store when already reset today", func(t *testing.T) {
		policy := NewLazyDailyReset(resetterFunc(func(context.Context, int64, time.Time) (bool, error) {
			t.Fatal("store should not be called")
			return false, nil
		}), denver)
		policy.now = func() time.Time { return now }

		user := &db.User{ID: 1, DailyUsage: 9000, LastReset: boundary.Add(time.Minute)}
		require.NoError(t, policy.Apply(context.Background(), user))
		assert.Equal(t, int64(9000), user.DailyUsage)
	})

	t.Run("lost race keeps counter", func(t *testing.T) {
		policy := NewLazyDailyReset(resetterFunc(func(context.Context, int64, time.Time) (bool, error) {
			return false, nil
		}), denver)
		policy.now = func() time.Time { return now }

		user := &db.User{ID: 1, DailyUsage: 40, LastReset: boundary.Add(-time.Hour)}
		require.NoError(t, policy.Apply(context.Background(), user))
		assert.Equal(t, int64(40), user.DailyUsage)
	})
}

func TestCheckQuota_AppliesResetBeforeReading(t *testing.T) {
	var order []string
	reset := resetFunc(func(context.Context, *db.User) error {
		order = append(order, "reset")
		return nil
	})
	usage := usageFunc(func(context.Context, int64) (int64, error) {
		order = append(order, "read")
		return 0, nil
	})

	engine := NewEngine(config.DefaultCatalog(), usage, reset)
	require.NoError(t, engine.CheckQuota(context.Background(), &db.User{ID: 1, Tier: "free"}, "scamper"))
	assert.Equal(t, []string{"reset", "read"}, order)
}

func TestRefreshUsage(t *testing.T) {
	t.Run("applies policy to unlimited tiers too", func(t *testing.T) {
		calls := 0
		reset := resetFunc(func(_ context.Context, user *db.User) error {
			calls++
			user.DailyUsage = 0
			return nil
		})
		engine := NewEngine(config.DefaultCatalog(), fixedUsage(0), reset)

		user := &db.User{ID: 1, Tier: "team", DailyUsage: 500}
		require.NoError(t, engine.RefreshUsage(context.Background(), user))
		assert.Equal(t, 1, calls)
		assert.Zero(t, user.DailyUsage)
	})

	t.Run("wraps policy errors", func(t *testing.T) {
		reset := resetFunc(func(context.Context, *db.User) error { return errors.New("conn refused") })
		engine := NewEngine(config.DefaultCatalog(), fixedUsage(0), reset)

		err := engine.RefreshUsage(context.Background(), &db.User{ID: 1})
		assert.ErrorContains(t, err, "failed to apply usage reset")
	})
}

type resetFunc func(ctx context.Context, user *db.User) error

func (f resetFunc) Apply(ctx context.Context, user *db.User) error { return f(ctx, user) }

func TestDayBoundary(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	// 20:00 UTC on June 1 is already June 2 in Tokyo
	got := DayBoundary(time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC), tokyo)
	assert.True(t, got.Equal(time.Date(2024, 6, 2, 0, 0, 0, 0, tokyo)))
}
