package quota

import (
	"context"
	"time"

	"rodeoai/internal/repository/db"
)

// ResetPolicy runs before the daily counter is read. Implementations may zero
// the counter and must update user.DailyUsage to match.
type ResetPolicy interface {
	Apply(ctx context.Context, user *db.User) error
}

// NoopResetPolicy never resets. Counters are expected to be reset externally, if at all.
type NoopResetPolicy struct{}

func (NoopResetPolicy) Apply(context.Context, *db.User) error { return nil }

// Resetter is the store operation LazyDailyReset needs
type Resetter interface {
	ResetDailyUsage(ctx context.Context, userID int64, boundary time.Time) (bool, error)
}

// LazyDailyReset zeroes a user's counter on their first request after midnight in loc.
// The store applies the reset conditionally, so it happens once per boundary.
type LazyDailyReset struct {
	store Resetter
	loc   *time.Location
	now   func() time.Time
}

// NewLazyDailyReset creates a reset policy for day boundaries in loc
func NewLazyDailyReset(store Resetter, loc *time.Location) *LazyDailyReset {
	if loc == nil {
		loc = time.UTC
	}
	return &LazyDailyReset{store: store, loc: loc, now: time.Now}
}

// Apply resets the user's counter if it was last reset before today's boundary
func (r *LazyDailyReset) Apply(ctx context.Context, user *db.User) error {
	boundary := DayBoundary(r.now(), r.loc)
	if !user.LastReset.IsZero() && !user.LastReset.Before(boundary) {
		return nil
	}

	reset, err := r.store.ResetDailyUsage(ctx, user.ID, boundary)
	if err != nil {
		return err
	}
	if reset {
		user.DailyUsage = 0
		user.LastReset = r.now()
	}
	return nil
}

// DayBoundary returns the most recent midnight in loc at or before t
func DayBoundary(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
