package app

import (
	"rodeoai/internal/analytics"
	"rodeoai/internal/config"
	"rodeoai/internal/ratelimit"
	"rodeoai/internal/repository/db"
	"rodeoai/internal/service/llm"
)

// Config holds all application dependencies and configuration
type Config struct {
	// Database interface for data persistence
	DB db.Database
	// Centralized application configuration
	AppConfig *config.AppConfig
	// Upstream completion API
	Relay llm.Relay
	// Token estimator for upstreams that report no usage
	Counter llm.TokenCounter
	// Per-user request guard
	Limiter ratelimit.Limiter
	// Append-only analytics log
	Analytics *analytics.Sink
}

// NewConfig creates a new application configuration. Optional collaborators left
// nil get their disabled variants.
func NewConfig(database db.Database, appConfig *config.AppConfig, relay llm.Relay, counter llm.TokenCounter, limiter ratelimit.Limiter, sink *analytics.Sink) *Config {
	if counter == nil {
		counter = llm.EstimateCounter{}
	}
	if limiter == nil {
		limiter = ratelimit.NewNoopLimiter()
	}
	return &Config{
		DB:        database,
		AppConfig: appConfig,
		Relay:     relay,
		Counter:   counter,
		Limiter:   limiter,
		Analytics: sink,
	}
}

// Catalog returns the model, persona and tier table in effect
func (c *Config) Catalog() *config.Catalog {
	if c.AppConfig.Catalog == nil {
		return config.DefaultCatalog()
	}
	return c.AppConfig.Catalog
}
