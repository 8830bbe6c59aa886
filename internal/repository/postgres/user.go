package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rodeoai/internal/logger"
	"rodeoai/internal/repository/db"

	"github.com/sirupsen/logrus"
)

const userColumns = `id, email, password_hash, tier, daily_usage, total_usage, last_reset, created_at`

// CreateUser inserts a user with an already hashed password
func (p *PostgresDB) CreateUser(ctx context.Context, email, passwordHash, tier string) (*db.User, error) {
	query := `
	INSERT INTO users (email, password_hash, tier)
	VALUES ($1, $2, $3)
	RETURNING ` + userColumns

	var user db.User
	err := p.conn.GetContext(ctx, &user, query, email, passwordHash, tier)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, db.ErrEmailTaken
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{"user_id": user.ID, "tier": user.Tier}).Info("Created new user")

	return &user, nil
}

// GetUserByID retrieves a user by id
func (p *PostgresDB) GetUserByID(ctx context.Context, id int64) (*db.User, error) {
	var user db.User
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	if err := p.conn.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("error retrieving user: %w", err)
	}

	return &user, nil
}

// GetUserByEmail retrieves a user by email
func (p *PostgresDB) GetUserByEmail(ctx context.Context, email string) (*db.User, error) {
	var user db.User
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	if err := p.conn.GetContext(ctx, &user, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("error retrieving user: %w", err)
	}

	return &user, nil
}

// GetDailyUsage reads the user's daily_usage counter
func (p *PostgresDB) GetDailyUsage(ctx context.Context, userID int64) (int64, error) {
	var usage int64
	if err := p.conn.GetContext(ctx, &usage, `SELECT daily_usage FROM users WHERE id = $1`, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, db.ErrNotFound
		}
		return 0, fmt.Errorf("error reading daily usage: %w", err)
	}
	return usage, nil
}

// ResetDailyUsage zeroes the counter only when the last reset predates boundary,
// so concurrent callers reset at most once per boundary.
func (p *PostgresDB) ResetDailyUsage(ctx context.Context, userID int64, boundary time.Time) (bool, error) {
	query := `
	UPDATE users
	SET daily_usage = 0, last_reset = CURRENT_TIMESTAMP
	WHERE id = $1 AND last_reset < $2
	`

	res, err := p.conn.ExecContext(ctx, query, userID, boundary)
	if err != nil {
		return false, fmt.Errorf("error resetting daily usage: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error resetting daily usage: %w", err)
	}

	if n > 0 {
		logger.Log.WithFields(logrus.Fields{"user_id": userID, "boundary": boundary}).Info("Reset daily usage")
	}
	return n > 0, nil
}

// ResetAllDailyUsage zeroes the counter for every user not yet reset since boundary
func (p *PostgresDB) ResetAllDailyUsage(ctx context.Context, boundary time.Time) (int64, error) {
	query := `
	UPDATE users
	SET daily_usage = 0, last_reset = CURRENT_TIMESTAMP
	WHERE last_reset < $1
	`

	res, err := p.conn.ExecContext(ctx, query, boundary)
	if err != nil {
		return 0, fmt.Errorf("error resetting daily usage: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error resetting daily usage: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{"users": n, "boundary": boundary}).Info("Reset daily usage for all users")
	return n, nil
}
