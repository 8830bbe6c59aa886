package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"rodeoai/internal/logger"
	"rodeoai/internal/repository/db"
	"rodeoai/pkg/validation"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string   `json:"token"`
	User  *db.User `json:"user"`
}

// Handlers serves the account endpoints
type Handlers struct {
	service   *AuthService
	validator *validation.AuthRequestValidator
}

// NewHandlers creates the account endpoints
func NewHandlers(service *AuthService) *Handlers {
	return &Handlers{
		service:   service,
		validator: validation.NewAuthRequestValidator(),
	}
}

// LoginHandler authenticates user and returns JWT token
func (h *Handlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.validator.ValidateLoginRequest(req.Email, req.Password); err != nil {
		sendError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	user, token, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			sendError(w, http.StatusUnauthorized, "Invalid credentials", nil)
			return
		}
		logger.Log.WithError(err).Error("Error logging in")
		sendError(w, http.StatusInternalServerError, "Error logging in", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(AuthResponse{Token: token, User: user})
}

// RegisterHandler creates a new user account
func (h *Handlers) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.validator.ValidateRegisterRequest(NormalizeEmail(req.Email), req.Password); err != nil {
		sendError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	user, token, err := h.service.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, db.ErrEmailTaken) {
			sendError(w, http.StatusConflict, "Email already registered", nil)
			return
		}
		logger.Log.WithError(err).Error("Error registering user")
		sendError(w, http.StatusInternalServerError, "Error creating user", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(AuthResponse{Token: token, User: user})
}

// MeHandler returns the authenticated user
func (h *Handlers) MeHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		sendError(w, http.StatusUnauthorized, "Not authenticated", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}
