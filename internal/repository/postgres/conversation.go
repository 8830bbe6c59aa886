package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"rodeoai/internal/logger"
	"rodeoai/internal/repository/db"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

const conversationColumns = `id, user_id, title, model, persona, created_at, updated_at`

const messageColumns = `id, conversation_id, seq, role, content, tokens_used, model, partial, created_at`

// CreateConversation creates a new untitled conversation for a user
func (p *PostgresDB) CreateConversation(ctx context.Context, userID int64, model, persona string) (*db.Conversation, error) {
	query := `
	INSERT INTO conversations (user_id, model, persona)
	VALUES ($1, $2, $3)
	RETURNING ` + conversationColumns

	var conv db.Conversation
	if err := p.conn.GetContext(ctx, &conv, query, userID, model, persona); err != nil {
		return nil, fmt.Errorf("error creating conversation: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{"conversation_id": conv.ID, "user_id": userID, "model": model, "persona": persona}).Info("Created new conversation")

	return &conv, nil
}

// GetConversation retrieves a specific conversation
func (p *PostgresDB) GetConversation(ctx context.Context, id int64) (*db.Conversation, error) {
	var conv db.Conversation
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1`

	if err := p.conn.GetContext(ctx, &conv, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("error retrieving conversation: %w", err)
	}

	return &conv, nil
}

// GetConversationsByUser retrieves a user's conversations, most recently updated first
func (p *PostgresDB) GetConversationsByUser(ctx context.Context, userID int64, limit int) ([]db.Conversation, error) {
	query := `
	SELECT ` + conversationColumns + `
	FROM conversations
	WHERE user_id = $1
	ORDER BY updated_at DESC, id DESC
	LIMIT $2
	`

	conversations := []db.Conversation{}
	if err := p.conn.SelectContext(ctx, &conversations, query, userID, limit); err != nil {
		return nil, fmt.Errorf("error querying conversations: %w", err)
	}

	return conversations, nil
}

// UpdateConversationTitle sets the conversation title
func (p *PostgresDB) UpdateConversationTitle(ctx context.Context, id int64, title string) error {
	res, err := p.conn.ExecContext(ctx, `UPDATE conversations SET title = $1 WHERE id = $2`, title, id)
	if err != nil {
		return fmt.Errorf("error updating conversation title: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error updating conversation title: %w", err)
	}
	if n == 0 {
		return db.ErrNotFound
	}
	return nil
}

// AddMessage appends a message. The conversation row is locked for the duration of the
// transaction so concurrent appends get distinct, gapless sequence numbers. The first
// message also sets msg.Title when the conversation has none.
func (p *PostgresDB) AddMessage(ctx context.Context, msg db.NewMessage) (*db.Message, error) {
	var out db.Message

	err := p.withTx(ctx, func(tx *sqlx.Tx) error {
		var convID int64
		err := tx.GetContext(ctx, &convID, `SELECT id FROM conversations WHERE id = $1 FOR UPDATE`, msg.ConversationID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return db.ErrNotFound
			}
			return fmt.Errorf("error locking conversation: %w", err)
		}

		var seq int64
		err = tx.GetContext(ctx, &seq, `SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE conversation_id = $1`, msg.ConversationID)
		if err != nil {
			return fmt.Errorf("error allocating message sequence: %w", err)
		}

		insert := `
		INSERT INTO messages (conversation_id, seq, role, content, tokens_used, model, partial)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + messageColumns
		err = tx.GetContext(ctx, &out, insert, msg.ConversationID, seq, msg.Role, msg.Content, msg.TokensUsed, msg.Model, msg.Partial)
		if err != nil {
			return fmt.Errorf("error adding message: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `UPDATE conversations SET updated_at = CURRENT_TIMESTAMP WHERE id = $1`, msg.ConversationID); err != nil {
			return fmt.Errorf("error updating conversation timestamp: %w", err)
		}

		if seq == 1 && msg.Title != nil {
			_, err := tx.ExecContext(ctx, `UPDATE conversations SET title = $1 WHERE id = $2 AND title IS NULL`, *msg.Title, msg.ConversationID)
			if err != nil {
				return fmt.Errorf("error setting conversation title: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Log.WithFields(logrus.Fields{
		"conversation_id": out.ConversationID,
		"seq":             out.Seq,
		"role":            out.Role,
		"tokens":          out.TokensUsed,
		"partial":         out.Partial,
	}).Debug("Added message to conversation")

	return &out, nil
}

// GetConversationMessages retrieves all messages of a conversation in insertion order
func (p *PostgresDB) GetConversationMessages(ctx context.Context, conversationID int64) ([]db.Message, error) {
	query := `
	SELECT ` + messageColumns + `
	FROM messages
	WHERE conversation_id = $1
	ORDER BY seq ASC
	`

	messages := []db.Message{}
	if err := p.conn.SelectContext(ctx, &messages, query, conversationID); err != nil {
		return nil, fmt.Errorf("error querying messages: %w", err)
	}

	return messages, nil
}
