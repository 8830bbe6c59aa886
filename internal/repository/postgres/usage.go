package postgres

import (
	"context"
	"fmt"

	"rodeoai/internal/logger"
	"rodeoai/internal/repository/db"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

const usageColumns = `id, user_id, conversation_id, model, prompt_tokens, completion_tokens, total_tokens, cost, created_at`

// LogUsage appends a ledger row and increments the user's counters atomically.
// TotalTokens is recomputed from the prompt and completion counts.
func (p *PostgresDB) LogUsage(ctx context.Context, entry db.UsageLogEntry) (*db.UsageLogEntry, error) {
	entry.TotalTokens = entry.PromptTokens + entry.CompletionTokens

	var out db.UsageLogEntry
	err := p.withTx(ctx, func(tx *sqlx.Tx) error {
		insert := `
		INSERT INTO usage_logs (user_id, conversation_id, model, prompt_tokens, completion_tokens, total_tokens, cost)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + usageColumns
		err := tx.GetContext(ctx, &out, insert,
			entry.UserID, entry.ConversationID, entry.Model,
			entry.PromptTokens, entry.CompletionTokens, entry.TotalTokens, entry.Cost)
		if err != nil {
			return fmt.Errorf("error inserting usage log: %w", err)
		}

		update := `
		UPDATE users
		SET daily_usage = daily_usage + $1, total_usage = total_usage + $1
		WHERE id = $2
		`
		res, err := tx.ExecContext(ctx, update, entry.TotalTokens, entry.UserID)
		if err != nil {
			return fmt.Errorf("error updating usage counters: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("error updating usage counters: %w", err)
		}
		if n == 0 {
			return db.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Log.WithFields(logrus.Fields{
		"user_id":           out.UserID,
		"model":             out.Model,
		"prompt_tokens":     out.PromptTokens,
		"completion_tokens": out.CompletionTokens,
		"cost":              fmt.Sprintf("$%.6f", out.Cost),
	}).Debug("Logged usage")

	return &out, nil
}

// GetUsageLogs returns the user's most recent ledger rows
func (p *PostgresDB) GetUsageLogs(ctx context.Context, userID int64, limit int) ([]db.UsageLogEntry, error) {
	query := `
	SELECT ` + usageColumns + `
	FROM usage_logs
	WHERE user_id = $1
	ORDER BY created_at DESC, id DESC
	LIMIT $2
	`

	entries := []db.UsageLogEntry{}
	if err := p.conn.SelectContext(ctx, &entries, query, userID, limit); err != nil {
		return nil, fmt.Errorf("error querying usage logs: %w", err)
	}
	return entries, nil
}
