package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"rodeoai/internal/logger"

	"github.com/sirupsen/logrus"
)

// AppConfig holds all application configuration
type AppConfig struct {
	Server    ServerConfig
	Database  DatabaseConfig
	LLM       LLMConfig
	Auth      AuthConfig
	Quota     QuotaConfig
	RateLimit RateLimitConfig
	Analytics AnalyticsConfig
	Catalog   *Catalog
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port string
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// LLMConfig holds upstream completion API configuration
type LLMConfig struct {
	OpenAIAPIKey    string
	BaseURL         string
	FragmentTimeout time.Duration
	TokenEncoding   string
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret       []byte
	TokenExpiration time.Duration
}

// Reset policies for the daily usage counter.
const (
	ResetPolicyNone = "none"
	ResetPolicyLazy = "lazy"
)

// QuotaConfig selects how daily counters are reset and where tier overrides live.
type QuotaConfig struct {
	ResetPolicy string
	Timezone    *time.Location
	CatalogPath string
}

// RateLimitConfig configures the optional per-user request guard. An empty RedisAddr disables it.
type RateLimitConfig struct {
	RedisAddr         string
	RedisPassword     string
	RequestsPerMinute int
}

// Enabled reports whether a Redis address was configured.
func (c RateLimitConfig) Enabled() bool {
	return c.RedisAddr != "" && c.RequestsPerMinute > 0
}

// AnalyticsConfig holds the analytics log location
type AnalyticsConfig struct {
	LogPath string
}

// LoadConfig loads and validates application configuration from environment
func LoadConfig() (*AppConfig, error) {
	config := &AppConfig{}

	// Load Server config
	config.Server = ServerConfig{
		Port: getEnvOrDefault("SERVER_PORT", "8000"),
	}

	// Load Database config
	config.Database = LoadDatabaseConfig()

	// Load LLM config
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		logger.Log.Warn("OPENAI_API_KEY environment variable not set")
	}

	config.LLM = LLMConfig{
		OpenAIAPIKey:    apiKey,
		BaseURL:         os.Getenv("OPENAI_BASE_URL"),
		FragmentTimeout: getEnvAsDuration("LLM_FRAGMENT_TIMEOUT", 60*time.Second),
		TokenEncoding:   getEnvOrDefault("LLM_TOKEN_ENCODING", "cl100k_base"),
	}
	if config.LLM.FragmentTimeout <= 0 {
		return nil, fmt.Errorf("LLM_FRAGMENT_TIMEOUT must be positive")
	}

	// Load Auth config
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable must be set")
	}
	if len(jwtSecret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters (current length: %d)", len(jwtSecret))
	}

	config.Auth = AuthConfig{
		JWTSecret:       []byte(jwtSecret),
		TokenExpiration: getEnvAsDuration("JWT_TOKEN_EXPIRATION", 7*24*time.Hour),
	}

	// Load Quota config
	policy := getEnvOrDefault("QUOTA_RESET_POLICY", ResetPolicyNone)
	if policy != ResetPolicyNone && policy != ResetPolicyLazy {
		return nil, fmt.Errorf("QUOTA_RESET_POLICY must be %q or %q, got %q", ResetPolicyNone, ResetPolicyLazy, policy)
	}
	tz, err := time.LoadLocation(getEnvOrDefault("QUOTA_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid QUOTA_TIMEZONE: %w", err)
	}
	config.Quota = QuotaConfig{
		ResetPolicy: policy,
		Timezone:    tz,
		CatalogPath: os.Getenv("CATALOG_PATH"),
	}

	catalog, err := LoadCatalog(config.Quota.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	config.Catalog = catalog

	// Load rate limit config
	config.RateLimit = RateLimitConfig{
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RequestsPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	config.Analytics = AnalyticsConfig{
		LogPath: getEnvOrDefault("ANALYTICS_LOG", "analytics.log"),
	}

	return config, nil
}

// LoadDatabaseConfig reads the database settings alone, for commands that only need the store
func LoadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Host:            getEnvOrDefault("DB_HOST", "postgres"),
		Port:            getEnvOrDefault("DB_PORT", "5432"),
		User:            getEnvOrDefault("DB_USER", "postgres"),
		Password:        getEnvOrDefault("DB_PASSWORD", "postgres"),
		Name:            getEnvOrDefault("DB_NAME", "rodeoai"),
		SSLMode:         getEnvOrDefault("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Helper functions for environment variable parsing

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"key": key, "default": defaultValue}).Warn("Invalid integer value, using default")
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"key": key, "default": defaultValue}).Warn("Invalid duration value, using default")
		return defaultValue
	}
	return value
}
