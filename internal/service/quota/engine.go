package quota

import (
	"context"
	"fmt"

	"rodeoai/internal/config"
	"rodeoai/internal/logger"
	"rodeoai/internal/repository/db"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// costPlaces is the number of decimal places costs are rounded to
const costPlaces = 6

// UsageReader reads the counter the ledger maintains
type UsageReader interface {
	GetUserUsageToday(ctx context.Context, userID int64) (int64, error)
}

// Engine performs admission checks against the tier table and prices completions
type Engine struct {
	catalog *config.Catalog
	usage   UsageReader
	reset   ResetPolicy
}

// NewEngine creates a new Engine. A nil reset policy means counters are never reset here.
func NewEngine(catalog *config.Catalog, usage UsageReader, reset ResetPolicy) *Engine {
	if reset == nil {
		reset = NoopResetPolicy{}
	}
	return &Engine{
		catalog: catalog,
		usage:   usage,
		reset:   reset,
	}
}

// Catalog returns the tier table the engine checks against
func (e *Engine) Catalog() *config.Catalog {
	return e.catalog
}

// CheckQuota rejects the request if the model is outside the user's tier or the
// user's daily usage has reached the tier limit.
func (e *Engine) CheckQuota(ctx context.Context, user *db.User, model string) error {
	tier := e.catalog.ResolveTier(user.Tier)

	if !e.catalog.ModelAllowed(string(tier), model) {
		return &AdmissionError{
			Kind:    ErrModelNotAllowed,
			Tier:    tier,
			Subject: model,
			Message: fmt.Sprintf("Model '%s' not available on %s tier. Upgrade to access.", model, tier),
		}
	}

	limits := e.catalog.Limits(string(tier))
	if limits.Unlimited() {
		return nil
	}

	if err := e.reset.Apply(ctx, user); err != nil {
		return fmt.Errorf("failed to apply usage reset: %w", err)
	}

	used, err := e.usage.GetUserUsageToday(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("failed to read daily usage: %w", err)
	}

	if used >= limits.DailyTokenLimit {
		logger.Log.WithFields(logrus.Fields{
			"user_id": user.ID,
			"tier":    tier,
			"used":    used,
			"limit":   limits.DailyTokenLimit,
		}).Info("Daily quota exceeded")
		return &AdmissionError{
			Kind:    ErrQuotaExceeded,
			Tier:    tier,
			Subject: model,
			Message: "Daily quota exceeded. Upgrade for more queries.",
		}
	}

	return nil
}

// RefreshUsage applies the reset policy so counters read afterwards reflect today
func (e *Engine) RefreshUsage(ctx context.Context, user *db.User) error {
	if err := e.reset.Apply(ctx, user); err != nil {
		return fmt.Errorf("failed to apply usage reset: %w", err)
	}
	return nil
}

// CheckPersonaAccess rejects personas outside the user's tier
func (e *Engine) CheckPersonaAccess(user *db.User, persona string) error {
	tier := e.catalog.ResolveTier(user.Tier)
	if !e.catalog.PersonaAllowed(string(tier), persona) {
		return &AdmissionError{
			Kind:    ErrPersonaNotAllowed,
			Tier:    tier,
			Subject: persona,
			Message: fmt.Sprintf("Persona '%s' requires Pro tier or higher.", persona),
		}
	}
	return nil
}

// CalculateCost prices a completion. Unknown models are priced as the default model.
func (e *Engine) CalculateCost(model string, promptTokens, completionTokens int64) float64 {
	pricing, ok := e.catalog.Pricing(model)
	if !ok {
		logger.Log.WithFields(logrus.Fields{"model": model, "priced_as": pricing.ID}).Warn("Unknown model, using default pricing")
	}

	input := decimal.NewFromFloat(pricing.InputPrice).Mul(decimal.NewFromInt(promptTokens))
	output := decimal.NewFromFloat(pricing.OutputPrice).Mul(decimal.NewFromInt(completionTokens))

	cost, _ := input.Add(output).Round(costPlaces).Float64()
	return cost
}
