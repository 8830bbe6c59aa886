package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"rodeoai/internal/logger"
	"rodeoai/internal/repository/db"
)

type contextKey string

const userContextKey contextKey = "user"

// ErrorResponse is the JSON error body shared by every endpoint
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// sendError sends a standardized JSON error response
func sendError(w http.ResponseWriter, status int, message string, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	errResp := ErrorResponse{
		Code:    status,
		Message: message,
	}
	if err != nil {
		errResp.Error = err.Error()
	}
	json.NewEncoder(w).Encode(errResp)
}

// WithUser stores the authenticated user in ctx
func WithUser(ctx context.Context, user *db.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext returns the user stored by Middleware
func UserFromContext(ctx context.Context) (*db.User, bool) {
	user, ok := ctx.Value(userContextKey).(*db.User)
	return user, ok && user != nil
}

// Middleware rejects requests without a valid bearer token and loads the caller
func (s *AuthService) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			sendError(w, http.StatusUnauthorized, "Missing authorization header", nil)
			return
		}

		bearerToken := strings.Split(authHeader, " ")
		if len(bearerToken) != 2 || bearerToken[0] != "Bearer" {
			sendError(w, http.StatusUnauthorized, "Invalid authorization header format", nil)
			return
		}

		user, err := s.Authenticate(r.Context(), bearerToken[1])
		if err != nil {
			if errors.Is(err, ErrInvalidToken) {
				sendError(w, http.StatusUnauthorized, "Invalid token", err)
				return
			}
			logger.Log.WithError(err).Error("Error authenticating request")
			sendError(w, http.StatusInternalServerError, "Error authenticating request", nil)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	}
}
