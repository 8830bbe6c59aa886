package usage

import (
	"context"
	"errors"
	"fmt"

	"rodeoai/internal/config"
	"rodeoai/internal/repository/db"
)

// ErrNegativeTokens is returned when a token count below zero is logged
var ErrNegativeTokens = errors.New("token counts must not be negative")

const defaultRecentLimit = 20

// Summary is a user's usage position against their tier
type Summary struct {
	Tier       config.Tier `json:"tier"`
	DailyUsage int64       `json:"daily_usage"`
	TotalUsage int64       `json:"total_usage"`
	DailyLimit int64       `json:"daily_limit"`
	Remaining  int64       `json:"remaining"`
	Unlimited  bool        `json:"unlimited"`
}

// Ledger records completion usage and exposes the running counters
type Ledger struct {
	db      db.Database
	catalog *config.Catalog
}

// NewLedger creates a new Ledger
func NewLedger(database db.Database, catalog *config.Catalog) *Ledger {
	return &Ledger{
		db:      database,
		catalog: catalog,
	}
}

// LogUsage appends one ledger entry and bumps the user's daily and total counters
// by promptTokens+completionTokens. Every call is a distinct event.
func (l *Ledger) LogUsage(ctx context.Context, userID int64, conversationID *int64, model string, promptTokens, completionTokens int64, cost float64) (*db.UsageLogEntry, error) {
	if promptTokens < 0 || completionTokens < 0 {
		return nil, ErrNegativeTokens
	}

	entry, err := l.db.LogUsage(ctx, db.UsageLogEntry{
		UserID:           userID,
		ConversationID:   conversationID,
		Model:            model,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
		Cost:             cost,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to log usage: %w", err)
	}
	return entry, nil
}

// GetUserUsageToday returns the daily_usage counter as stored
func (l *Ledger) GetUserUsageToday(ctx context.Context, userID int64) (int64, error) {
	return l.db.GetDailyUsage(ctx, userID)
}

// GetUsageSummary reports the user's counters against their tier limit
func (l *Ledger) GetUsageSummary(ctx context.Context, user *db.User) (*Summary, error) {
	current, err := l.db.GetUserByID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	limits := l.catalog.Limits(current.Tier)
	summary := &Summary{
		Tier:       l.catalog.ResolveTier(current.Tier),
		DailyUsage: current.DailyUsage,
		TotalUsage: current.TotalUsage,
		DailyLimit: limits.DailyTokenLimit,
		Unlimited:  limits.Unlimited(),
	}
	if !summary.Unlimited {
		summary.Remaining = max(limits.DailyTokenLimit-current.DailyUsage, 0)
	}
	return summary, nil
}

// RecentEntries returns the user's latest ledger entries, newest first
func (l *Ledger) RecentEntries(ctx context.Context, userID int64, limit int) ([]db.UsageLogEntry, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	entries, err := l.db.GetUsageLogs(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve usage logs: %w", err)
	}
	return entries, nil
}
