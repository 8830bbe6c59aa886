package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rodeoai/internal/config"
	"rodeoai/internal/logger"
	"rodeoai/internal/repository/db"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials is returned for an unknown email or a wrong password
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken is returned when a bearer token cannot be trusted
	ErrInvalidToken = errors.New("invalid token")
)

// Claims are the JWT claims issued at login
type Claims struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// TokenService issues and validates HS256 tokens
type TokenService struct {
	secret     []byte
	expiration time.Duration
	now        func() time.Time
}

// NewTokenService creates a TokenService from the auth configuration
func NewTokenService(cfg config.AuthConfig) *TokenService {
	return &TokenService{
		secret:     cfg.JWTSecret,
		expiration: cfg.TokenExpiration,
		now:        time.Now,
	}
}

// GenerateToken signs a token for the user
func (s *TokenService) GenerateToken(user *db.User) (string, error) {
	now := s.now()
	claims := Claims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", user.ID),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken parses a token and checks its signature and expiry
func (s *TokenService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid && claims.UserID > 0 {
		return claims, nil
	}

	return nil, ErrInvalidToken
}

// HashPassword hashes a password with bcrypt
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword compares a password against a bcrypt hash
func VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// AuthService registers and authenticates users
type AuthService struct {
	db     db.Database
	tokens *TokenService
}

// NewAuthService creates a new AuthService
func NewAuthService(database db.Database, tokens *TokenService) *AuthService {
	return &AuthService{
		db:     database,
		tokens: tokens,
	}
}

// NormalizeEmail lowercases and trims an email so lookups are case-insensitive
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a free-tier account and returns it with a fresh token
func (s *AuthService) Register(ctx context.Context, email, password string) (*db.User, string, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, "", err
	}

	user, err := s.db.CreateUser(ctx, NormalizeEmail(email), hash, string(config.FallbackTier))
	if err != nil {
		return nil, "", fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.tokens.GenerateToken(user)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	logger.Log.WithField("user_id", user.ID).Info("User registered")
	return user, token, nil
}

// Login verifies credentials and returns the user with a fresh token
func (s *AuthService) Login(ctx context.Context, email, password string) (*db.User, string, error) {
	user, err := s.db.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("failed to load user: %w", err)
	}

	if !VerifyPassword(user.PasswordHash, password) {
		logger.Log.WithField("user_id", user.ID).Info("Login failed: invalid password")
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.tokens.GenerateToken(user)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	logger.Log.WithField("user_id", user.ID).Info("User logged in")
	return user, token, nil
}

// Authenticate resolves a bearer token to the current user record
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (*db.User, error) {
	claims, err := s.tokens.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}

	user, err := s.db.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return user, nil
}
