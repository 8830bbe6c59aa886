package api

import (
	"net/http"

	"rodeoai/internal/api/handlers"
	"rodeoai/internal/app"
	"rodeoai/internal/auth"
)

// NewRouter wires every endpoint. Chat, conversation, usage and model routes
// require a bearer token; auth, analytics and health routes are public.
func NewRouter(cfg *app.Config) http.Handler {
	authService := auth.NewAuthService(cfg.DB, auth.NewTokenService(cfg.AppConfig.Auth))
	authHandlers := auth.NewHandlers(authService)
	chatHandler := handlers.NewChatHandlers(cfg, cfg.NewServices())
	protected := authService.Middleware

	// Go 1.22+ routing: method patterns and {id} path parameters
	mux := http.NewServeMux()

	// Public routes
	mux.HandleFunc("POST /api/auth/register", authHandlers.RegisterHandler)
	mux.HandleFunc("POST /api/auth/login", authHandlers.LoginHandler)
	mux.HandleFunc("POST /api/analytics/log", chatHandler.AnalyticsLogHandler)
	mux.HandleFunc("GET /api/health", chatHandler.HealthHandler)

	// Protected routes
	mux.HandleFunc("GET /api/auth/me", protected(authHandlers.MeHandler))
	mux.HandleFunc("POST /api/chat", protected(chatHandler.ChatHandler))
	mux.HandleFunc("POST /api/chat/stream", protected(chatHandler.ChatStreamHandler))
	mux.HandleFunc("GET /api/conversations", protected(chatHandler.GetConversationsHandler))
	mux.HandleFunc("GET /api/conversations/{id}/messages", protected(chatHandler.GetConversationMessagesHandler))
	mux.HandleFunc("PATCH /api/conversations/{id}", protected(chatHandler.RenameConversationHandler))
	mux.HandleFunc("GET /api/usage", protected(chatHandler.GetUsageHandler))
	mux.HandleFunc("GET /api/models", protected(chatHandler.GetModelsHandler))

	return requestLogger(enableCORS(mux))
}
