package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrRateLimited is returned when a caller exceeds the request rate
var ErrRateLimited = errors.New("too many requests, slow down")

// Limiter is used to enforce per-key request rates.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	// Usage reports the key's position in the current window, or nil when unlimited
	Usage(ctx context.Context, key string) (*WindowUsage, error)
}

// WindowUsage is the number of requests a key has spent in the current window
type WindowUsage struct {
	Limit         int   `json:"limit"`
	Used          int64 `json:"used"`
	WindowSeconds int64 `json:"window_seconds"`
}

// UserKey is the limiter key for a user's chat requests
func UserKey(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}

// NoopLimiter allows all requests.
type NoopLimiter struct{}

func NewNoopLimiter() *NoopLimiter {
	return &NoopLimiter{}
}

func (l *NoopLimiter) Allow(ctx context.Context, key string) (bool, error) {
	return true, nil
}

func (l *NoopLimiter) Usage(ctx context.Context, key string) (*WindowUsage, error) {
	return nil, nil
}

// RateLimiter implements a sliding-window limit shared through Redis
type RateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRateLimiter creates a limiter allowing limit requests per window. A limit <= 0 disables it.
func NewRateLimiter(client *redis.Client, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{client: client, limit: limit, window: window, now: time.Now}
}

func redisKey(key string) string {
	return "rodeoai:ratelimit:" + key
}

// Allow records a request for key and reports whether it fits in the window.
// Rejected requests are not counted against the window.
func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if rl.limit <= 0 {
		return true, nil
	}

	k := redisKey(key)
	now := rl.now()
	windowStart := now.Add(-rl.window)
	member := uuid.NewString()

	pipe := rl.client.TxPipeline()

	// Remove old entries outside the window
	pipe.ZRemRangeByScore(ctx, k, "0", strconv.FormatInt(windowStart.UnixMilli(), 10))

	// Count requests in the window before this one
	countCmd := pipe.ZCard(ctx, k)

	pipe.ZAdd(ctx, k, redis.Z{Score: float64(now.UnixMilli()), Member: member})

	// Set expiry on the key (cleanup idle keys)
	pipe.Expire(ctx, k, 2*rl.window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}

	if int(countCmd.Val())+1 <= rl.limit {
		return true, nil
	}

	if err := rl.client.ZRem(ctx, k, member).Err(); err != nil {
		return false, fmt.Errorf("rate limit rollback failed: %w", err)
	}
	return false, nil
}

// Usage counts the requests admitted for key in the current window
func (rl *RateLimiter) Usage(ctx context.Context, key string) (*WindowUsage, error) {
	if rl.limit <= 0 {
		return nil, nil
	}

	k := redisKey(key)
	windowStart := rl.now().Add(-rl.window)

	count, err := rl.client.ZCount(ctx, k, "("+strconv.FormatInt(windowStart.UnixMilli(), 10), "+inf").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get current usage: %w", err)
	}
	return &WindowUsage{
		Limit:         rl.limit,
		Used:          count,
		WindowSeconds: int64(rl.window / time.Second),
	}, nil
}
