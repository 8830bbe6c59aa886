package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rodeoai/internal/analytics"
	"rodeoai/internal/api"
	"rodeoai/internal/app"
	"rodeoai/internal/config"
	"rodeoai/internal/logger"
	"rodeoai/internal/ratelimit"
	"rodeoai/internal/repository/postgres"
	"rodeoai/internal/service/llm"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long:  "Apply pending migrations, connect the upstream model API and serve the chat endpoints until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	appConfig, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger.Log.Info("Initializing database...")
	database, err := postgres.NewPostgresDB(ctx, appConfig.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	limiter, closeLimiter, err := newLimiter(ctx, appConfig.RateLimit)
	if err != nil {
		return err
	}
	defer closeLimiter()

	sink, err := analytics.NewFileSink(appConfig.Analytics.LogPath)
	if err != nil {
		return err
	}
	defer sink.Close()

	cfg := app.NewConfig(
		database,
		appConfig,
		llm.NewOpenAIRelay(appConfig.LLM),
		llm.NewTokenCounter(appConfig.LLM.TokenEncoding),
		limiter,
		sink,
	)

	server := &http.Server{
		Addr:              ":" + appConfig.Server.Port,
		Handler:           api.NewRouter(cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Log.Info("Shutting down server")
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Log.WithError(err).Error("Graceful shutdown failed")
		}
	}()

	logger.Log.WithFields(logrus.Fields{
		"port":         appConfig.Server.Port,
		"reset_policy": appConfig.Quota.ResetPolicy,
		"rate_limit":   appConfig.RateLimit.Enabled(),
	}).Info("Server starting")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// newLimiter connects the Redis request guard when configured
func newLimiter(ctx context.Context, cfg config.RateLimitConfig) (ratelimit.Limiter, func(), error) {
	if !cfg.Enabled() {
		return ratelimit.NewNoopLimiter(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{
		"addr":                cfg.RedisAddr,
		"requests_per_minute": cfg.RequestsPerMinute,
	}).Info("Rate limiting enabled")

	return ratelimit.NewRateLimiter(client, cfg.RequestsPerMinute, time.Minute), func() { client.Close() }, nil
}
