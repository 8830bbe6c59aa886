package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"rodeoai/internal/analytics"
	"rodeoai/internal/config"
	"rodeoai/internal/logger"
	"rodeoai/internal/ratelimit"
	"rodeoai/internal/repository/db"
	"rodeoai/internal/service/usage"
)

const maxUsageEntries = 100

type UsageResponse struct {
	Summary   *usage.Summary         `json:"summary"`
	Recent    []db.UsageLogEntry     `json:"recent"`
	RateLimit *ratelimit.WindowUsage `json:"rate_limit,omitempty"`
}

type ModelsResponse struct {
	Tier     config.Tier      `json:"tier"`
	Models   []config.Model   `json:"models"`
	Personas []config.Persona `json:"personas"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

// GetUsageHandler returns the caller's counters against their tier and recent ledger entries
func (ch *ChatHandlers) GetUsageHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := ch.currentUser(w, r)
	if !ok {
		return
	}

	if err := ch.quota.RefreshUsage(r.Context(), user); err != nil {
		ch.sendServiceError(w, err, "Error retrieving usage")
		return
	}

	summary, err := ch.ledger.GetUsageSummary(r.Context(), user)
	if err != nil {
		ch.sendServiceError(w, err, "Error retrieving usage")
		return
	}

	recent, err := ch.ledger.RecentEntries(r.Context(), user.ID, queryLimit(r, maxUsageEntries))
	if err != nil {
		ch.sendServiceError(w, err, "Error retrieving usage")
		return
	}
	if recent == nil {
		recent = []db.UsageLogEntry{}
	}

	// The rate window is advisory here; a Redis outage only hides it
	window, err := ch.limiter.Usage(r.Context(), ratelimit.UserKey(user.ID))
	if err != nil {
		logger.Log.WithError(err).WithField("user_id", user.ID).Warn("Error reading rate limit window")
		window = nil
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(UsageResponse{Summary: summary, Recent: recent, RateLimit: window})
}

// GetModelsHandler returns the models and personas the caller's tier may use
func (ch *ChatHandlers) GetModelsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := ch.currentUser(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ModelsResponse{
		Tier:     ch.catalog.ResolveTier(user.Tier),
		Models:   ch.catalog.ModelsForTier(user.Tier),
		Personas: ch.catalog.PersonasForTier(user.Tier),
	})
}

// AnalyticsLogHandler appends a frontend analytics event to the analytics log
func (ch *ChatHandlers) AnalyticsLogHandler(w http.ResponseWriter, r *http.Request) {
	if ch.analytics == nil {
		ch.sendError(w, http.StatusServiceUnavailable, "Analytics disabled", nil)
		return
	}

	var ev analytics.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		ch.sendError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := ch.analytics.Record(ev, clientIP(r)); err != nil {
		if errors.Is(err, analytics.ErrMissingChatID) {
			ch.sendError(w, http.StatusBadRequest, "Validation failed", err)
			return
		}
		logger.Log.WithError(err).Error("Error writing analytics event")
		ch.sendError(w, http.StatusInternalServerError, "Error writing analytics event", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(StatusResponse{Status: "ok"})
}

// HealthHandler reports whether the database is reachable
func (ch *ChatHandlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if err := ch.config.DB.Ping(r.Context()); err != nil {
		logger.Log.WithError(err).Warn("Health check failed")
		ch.sendError(w, http.StatusServiceUnavailable, "Database unavailable", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(StatusResponse{Status: "ok"})
}
