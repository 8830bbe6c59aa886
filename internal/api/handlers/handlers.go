package handlers

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	"rodeoai/internal/analytics"
	"rodeoai/internal/app"
	"rodeoai/internal/auth"
	"rodeoai/internal/config"
	"rodeoai/internal/logger"
	"rodeoai/internal/ratelimit"
	"rodeoai/internal/repository/db"
	chatService "rodeoai/internal/service/chat"
	conversationService "rodeoai/internal/service/conversation"
	"rodeoai/internal/service/quota"
	"rodeoai/internal/service/usage"
	"rodeoai/pkg/validation"
)

// ErrorResponse is the JSON error body
type ErrorResponse = auth.ErrorResponse

// ChatHandlers serves the chat, conversation, usage and catalog endpoints
type ChatHandlers struct {
	config              *app.Config
	validator           *validation.ChatRequestValidator
	catalog             *config.Catalog
	chatService         *chatService.ChatService
	conversationService *conversationService.ConversationService
	quota               *quota.Engine
	ledger              *usage.Ledger
	limiter             ratelimit.Limiter
	analytics           *analytics.Sink
}

// NewChatHandlers creates a new ChatHandlers with service layer
func NewChatHandlers(cfg *app.Config, services *app.Services) *ChatHandlers {
	return &ChatHandlers{
		config:              cfg,
		validator:           validation.NewChatRequestValidator(),
		catalog:             cfg.Catalog(),
		chatService:         services.Chat,
		conversationService: services.Conversations,
		quota:               services.Quota,
		ledger:              services.Ledger,
		limiter:             cfg.Limiter,
		analytics:           cfg.Analytics,
	}
}

// sendError sends a standardized JSON error response
func (ch *ChatHandlers) sendError(w http.ResponseWriter, status int, message string, err error) {
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

// sendServiceError maps a service error onto a status code and error body
func (ch *ChatHandlers) sendServiceError(w http.ResponseWriter, err error, fallback string) {
	var admission *quota.AdmissionError
	switch {
	case errors.As(err, &admission):
		ch.sendError(w, admission.StatusCode(), admission.Message, admission.Kind)
	case errors.Is(err, ratelimit.ErrRateLimited):
		ch.sendError(w, http.StatusTooManyRequests, "Too many requests", err)
	case errors.Is(err, conversationService.ErrUnauthorized):
		ch.sendError(w, http.StatusForbidden, "Unauthorized", err)
	case errors.Is(err, db.ErrNotFound):
		ch.sendError(w, http.StatusNotFound, "Conversation not found", err)
	case errors.Is(err, chatService.ErrEmptyMessage):
		ch.sendError(w, http.StatusBadRequest, "Validation failed", err)
	case errors.Is(err, chatService.ErrUpstream):
		logger.Log.WithError(err).Warn("Upstream completion failed")
		ch.sendError(w, http.StatusBadGateway, "Upstream model error", err)
	default:
		logger.Log.WithError(err).Error("Error from service")
		ch.sendError(w, http.StatusInternalServerError, fallback, err)
	}
}

// currentUser returns the user loaded by the auth middleware
func (ch *ChatHandlers) currentUser(w http.ResponseWriter, r *http.Request) (*db.User, bool) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		ch.sendError(w, http.StatusUnauthorized, "Not authenticated", nil)
	}
	return user, ok
}

// pathID parses the {id} path parameter
func (ch *ChatHandlers) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		ch.sendError(w, http.StatusBadRequest, "Invalid conversation id", nil)
		return 0, false
	}
	return id, true
}

// queryLimit reads ?limit=, returning 0 (service default) when absent or invalid
func queryLimit(r *http.Request, max int) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return 0
	}
	return min(limit, max)
}

// clientIP prefers the first X-Forwarded-For hop over the socket address
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
