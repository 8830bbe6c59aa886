package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Tier is a subscription level.
type Tier string

const (
	TierFree     Tier = "free"
	TierPro      Tier = "pro"
	TierChampion Tier = "champion"
	TierTeam     Tier = "team"
)

// FallbackTier is applied to users whose tier is empty or unrecognized.
const FallbackTier = TierFree

// ModelID is the branded model identifier exposed to clients.
type ModelID string

const (
	ModelScamper    ModelID = "scamper"
	ModelGoldBuckle ModelID = "gold-buckle"
	ModelBodacious  ModelID = "bodacious"
)

// DefaultModel is used when a request names no model, and its pricing is used for unknown models.
const DefaultModel = ModelScamper

// PersonaID names a system-prompt variant.
type PersonaID string

const (
	PersonaGeneral       PersonaID = "general"
	PersonaWesley        PersonaID = "wesley"
	PersonaDale          PersonaID = "dale"
	PersonaCarlye        PersonaID = "carlye"
	PersonaEzekiel       PersonaID = "ezekiel"
	PersonaWestDesperado PersonaID = "westdesperado"
)

// DefaultPersona is used when a request names no persona.
const DefaultPersona = PersonaGeneral

// UnlimitedTokens as a daily limit means the tier is never over quota.
const UnlimitedTokens int64 = -1

// Model describes a branded model, the upstream model it maps to and its per-token pricing.
type Model struct {
	ID            ModelID `json:"id"`
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	Tagline       string  `json:"tagline"`
	Icon          string  `json:"icon"`
	Color         string  `json:"color"`
	UpstreamModel string  `json:"-"`
	MaxTokens     int     `json:"max_tokens"`
	Temperature   float64 `json:"temperature"`
	InputPrice    float64 `json:"-"`
	OutputPrice   float64 `json:"-"`
}

// Persona is a named assistant character.
type Persona struct {
	ID           PersonaID `json:"id"`
	Name         string    `json:"name"`
	SystemPrompt string    `json:"-"`
}

// TierLimit is one row of the tier table.
type TierLimit struct {
	Tier            Tier        `json:"tier"`
	DailyTokenLimit int64       `json:"daily_token_limit"`
	AllowedModels   []ModelID   `json:"allowed_models"`
	AllowedPersonas []PersonaID `json:"allowed_personas"`
}

// Unlimited reports whether the tier has no daily cap.
func (l TierLimit) Unlimited() bool {
	return l.DailyTokenLimit == UnlimitedTokens
}

type tierEntry struct {
	limit    TierLimit
	models   map[ModelID]struct{}
	personas map[PersonaID]struct{}
}

// Catalog is the immutable model, persona and tier table. Build it with NewCatalog,
// DefaultCatalog or LoadCatalog; invalid identifiers are rejected there, never at lookup.
type Catalog struct {
	models     map[ModelID]Model
	modelOrder []ModelID
	personas   map[PersonaID]Persona
	personaIDs []PersonaID
	tiers      map[Tier]tierEntry
}

// NewCatalog validates and indexes the given tables.
func NewCatalog(models []Model, personas []Persona, tiers []TierLimit) (*Catalog, error) {
	c := &Catalog{
		models:   make(map[ModelID]Model, len(models)),
		personas: make(map[PersonaID]Persona, len(personas)),
		tiers:    make(map[Tier]tierEntry, len(tiers)),
	}

	for _, m := range models {
		if !isKnownModel(m.ID) {
			return nil, fmt.Errorf("unknown model %q", m.ID)
		}
		if m.InputPrice < 0 || m.OutputPrice < 0 {
			return nil, fmt.Errorf("model %q has negative pricing", m.ID)
		}
		if _, dup := c.models[m.ID]; dup {
			return nil, fmt.Errorf("model %q listed twice", m.ID)
		}
		c.models[m.ID] = m
		c.modelOrder = append(c.modelOrder, m.ID)
	}
	if _, ok := c.models[DefaultModel]; !ok {
		return nil, fmt.Errorf("default model %q missing from catalog", DefaultModel)
	}

	for _, p := range personas {
		if !isKnownPersona(p.ID) {
			return nil, fmt.Errorf("unknown persona %q", p.ID)
		}
		if _, dup := c.personas[p.ID]; dup {
			return nil, fmt.Errorf("persona %q listed twice", p.ID)
		}
		c.personas[p.ID] = p
		c.personaIDs = append(c.personaIDs, p.ID)
	}

	for _, t := range tiers {
		if !isKnownTier(t.Tier) {
			return nil, fmt.Errorf("unknown tier %q", t.Tier)
		}
		if _, dup := c.tiers[t.Tier]; dup {
			return nil, fmt.Errorf("tier %q listed twice", t.Tier)
		}
		if t.DailyTokenLimit < UnlimitedTokens {
			return nil, fmt.Errorf("tier %q has invalid daily limit %d", t.Tier, t.DailyTokenLimit)
		}
		entry := tierEntry{
			limit:    t,
			models:   make(map[ModelID]struct{}, len(t.AllowedModels)),
			personas: make(map[PersonaID]struct{}, len(t.AllowedPersonas)),
		}
		for _, m := range t.AllowedModels {
			if _, ok := c.models[m]; !ok {
				return nil, fmt.Errorf("tier %q allows unknown model %q", t.Tier, m)
			}
			entry.models[m] = struct{}{}
		}
		for _, p := range t.AllowedPersonas {
			if _, ok := c.personas[p]; !ok {
				return nil, fmt.Errorf("tier %q allows unknown persona %q", t.Tier, p)
			}
			entry.personas[p] = struct{}{}
		}
		c.tiers[t.Tier] = entry
	}
	if _, ok := c.tiers[FallbackTier]; !ok {
		return nil, fmt.Errorf("fallback tier %q missing from catalog", FallbackTier)
	}

	return c, nil
}

// DefaultCatalog returns the built-in tables.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(defaultModels(), defaultPersonas(), defaultTiers())
	if err != nil {
		// The built-in tables are constants; failing here is a programming error.
		panic(fmt.Sprintf("invalid built-in catalog: %v", err))
	}
	return c
}

// LoadCatalog reads a JSON array of tier limits from path and combines it with the
// built-in models and personas. An empty path returns DefaultCatalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var tiers []TierLimit
	if err := json.Unmarshal(data, &tiers); err != nil {
		return nil, err
	}

	return NewCatalog(defaultModels(), defaultPersonas(), tiers)
}

// ResolveTier maps a stored tier name to a tier in the table, falling back to FallbackTier.
func (c *Catalog) ResolveTier(name string) Tier {
	t := Tier(name)
	if _, ok := c.tiers[t]; ok {
		return t
	}
	return FallbackTier
}

// Limits returns the table row for a tier name, resolving unknown names first.
func (c *Catalog) Limits(name string) TierLimit {
	return c.tiers[c.ResolveTier(name)].limit
}

// ModelAllowed reports whether the tier may use the model. Unknown models are never allowed.
func (c *Catalog) ModelAllowed(tier string, model string) bool {
	_, ok := c.tiers[c.ResolveTier(tier)].models[ModelID(model)]
	return ok
}

// PersonaAllowed reports whether the tier may use the persona.
func (c *Catalog) PersonaAllowed(tier string, persona string) bool {
	_, ok := c.tiers[c.ResolveTier(tier)].personas[PersonaID(persona)]
	return ok
}

// Model looks up a model by identifier.
func (c *Catalog) Model(id string) (Model, bool) {
	m, ok := c.models[ModelID(id)]
	return m, ok
}

// Pricing returns the model used to price id, falling back to the default model.
// The second result is false when the fallback was taken.
func (c *Catalog) Pricing(id string) (Model, bool) {
	if m, ok := c.models[ModelID(id)]; ok {
		return m, true
	}
	return c.models[DefaultModel], false
}

// Models returns all models in catalog order.
func (c *Catalog) Models() []Model {
	out := make([]Model, 0, len(c.modelOrder))
	for _, id := range c.modelOrder {
		out = append(out, c.models[id])
	}
	return out
}

// ModelsForTier returns the models a tier may use, in catalog order.
func (c *Catalog) ModelsForTier(tier string) []Model {
	entry := c.tiers[c.ResolveTier(tier)]
	out := make([]Model, 0, len(entry.models))
	for _, id := range c.modelOrder {
		if _, ok := entry.models[id]; ok {
			out = append(out, c.models[id])
		}
	}
	return out
}

// Persona looks up a persona by identifier.
func (c *Catalog) Persona(id string) (Persona, bool) {
	p, ok := c.personas[PersonaID(id)]
	return p, ok
}

// PersonasForTier returns the personas a tier may use, in catalog order.
func (c *Catalog) PersonasForTier(tier string) []Persona {
	entry := c.tiers[c.ResolveTier(tier)]
	out := make([]Persona, 0, len(entry.personas))
	for _, id := range c.personaIDs {
		if _, ok := entry.personas[id]; ok {
			out = append(out, c.personas[id])
		}
	}
	return out
}

func isKnownTier(t Tier) bool {
	switch t {
	case TierFree, TierPro, TierChampion, TierTeam:
		return true
	}
	return false
}

func isKnownModel(m ModelID) bool {
	switch m {
	case ModelScamper, ModelGoldBuckle, ModelBodacious:
		return true
	}
	return false
}

func isKnownPersona(p PersonaID) bool {
	switch p {
	case PersonaGeneral, PersonaWesley, PersonaDale, PersonaCarlye, PersonaEzekiel, PersonaWestDesperado:
		return true
	}
	return false
}
