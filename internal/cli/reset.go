package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"rodeoai/internal/config"
	"rodeoai/internal/logger"
	"rodeoai/internal/repository/postgres"
	"rodeoai/internal/service/quota"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type dailyResetter interface {
	ResetAllDailyUsage(ctx context.Context, boundary time.Time) (int64, error)
}

func newResetUsageCmd() *cobra.Command {
	var timezone string

	cmd := &cobra.Command{
		Use:   "reset-usage",
		Short: "Zero daily usage counters not yet reset today",
		Long:  "Reset daily_usage for every user whose last reset is before today's midnight. Safe to run repeatedly, e.g. from cron.",
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := time.LoadLocation(timezone)
			if err != nil {
				return fmt.Errorf("invalid timezone: %w", err)
			}

			database, err := postgres.Open(cmd.Context(), config.LoadDatabaseConfig())
			if err != nil {
				return err
			}
			defer database.Close()

			_, err = resetDailyUsage(cmd.Context(), database, loc, time.Now())
			return err
		},
	}

	defaultTZ := os.Getenv("QUOTA_TIMEZONE")
	if defaultTZ == "" {
		defaultTZ = "UTC"
	}
	cmd.Flags().StringVar(&timezone, "timezone", defaultTZ, "IANA timezone whose midnight starts the day")
	return cmd
}

func resetDailyUsage(ctx context.Context, store dailyResetter, loc *time.Location, now time.Time) (int64, error) {
	boundary := quota.DayBoundary(now, loc)

	n, err := store.ResetAllDailyUsage(ctx, boundary)
	if err != nil {
		return 0, fmt.Errorf("failed to reset daily usage: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{
		"boundary": boundary.Format(time.RFC3339),
		"users":    n,
	}).Info("Daily usage reset")
	return n, nil
}
