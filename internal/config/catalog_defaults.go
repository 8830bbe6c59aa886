package config

const rodeoSystemPrompt = `You are RodeoAI, an expert rodeo assistant with deep knowledge of:
- Team roping, Bull riding, Barrel racing
- Rodeo schedules and events
- Equipment and gear recommendations
- Competition strategy and NFR preparation
- Western lifestyle and ranch life

Provide practical, specific advice based on real rodeo expertise. Be conversational, helpful, and use rodeo terminology naturally.`

func defaultModels() []Model {
	return []Model{
		{
			ID:            ModelScamper,
			Name:          "Scamper",
			Description:   "Fast, efficient, instant answers",
			Tagline:       "Lightning-fast rodeo answers",
			Icon:          "⚡",
			Color:         "#008B8B",
			UpstreamModel: "gpt-4o-mini",
			MaxTokens:     1000,
			Temperature:   0.7,
			InputPrice:    0.00000015,
			OutputPrice:   0.0000006,
		},
		{
			ID:            ModelGoldBuckle,
			Name:          "Gold Buckle",
			Description:   "Balanced, everyday workhorse",
			Tagline:       "Your champion companion",
			Icon:          "🏆",
			Color:         "#DAA520",
			UpstreamModel: "gpt-4o",
			MaxTokens:     2000,
			Temperature:   0.7,
			InputPrice:    0.0000025,
			OutputPrice:   0.00001,
		},
		{
			ID:            ModelBodacious,
			Name:          "Bodacious",
			Description:   "Maximum power, deep reasoning, complex analysis",
			Tagline:       "Unstoppable intelligence",
			Icon:          "🐂",
			Color:         "#8B0000",
			UpstreamModel: "gpt-4-turbo",
			MaxTokens:     4000,
			Temperature:   0.7,
			InputPrice:    0.000003,
			OutputPrice:   0.000015,
		},
	}
}

func defaultPersonas() []Persona {
	return []Persona{
		{ID: PersonaGeneral, Name: "RodeoAI", SystemPrompt: rodeoSystemPrompt},
		{ID: PersonaWesley, Name: "Wesley", SystemPrompt: rodeoSystemPrompt + "\n\nSpeak as Wesley, a veteran team roper. Focus on header and heeler technique, horse position and loop timing."},
		{ID: PersonaDale, Name: "Dale", SystemPrompt: rodeoSystemPrompt + "\n\nSpeak as Dale, a retired bull rider turned coach. Focus on balance, safety gear and riding mindset."},
		{ID: PersonaCarlye, Name: "Carlye", SystemPrompt: rodeoSystemPrompt + "\n\nSpeak as Carlye, a barrel racing champion. Focus on patterns, horse conditioning and run analysis."},
		{ID: PersonaEzekiel, Name: "Ezekiel", SystemPrompt: rodeoSystemPrompt + "\n\nSpeak as Ezekiel, a ranch hand and horse trainer. Focus on horsemanship, ranch work and colt starting."},
		{ID: PersonaWestDesperado, Name: "West Desperado", SystemPrompt: rodeoSystemPrompt + "\n\nSpeak as the West Desperado, a storytelling cowboy. Keep answers accurate but colorful, with old-west flavor."},
	}
}

func defaultTiers() []TierLimit {
	all := []PersonaID{PersonaGeneral, PersonaWesley, PersonaDale, PersonaCarlye, PersonaEzekiel, PersonaWestDesperado}
	return []TierLimit{
		{
			Tier:            TierFree,
			DailyTokenLimit: 10000,
			AllowedModels:   []ModelID{ModelScamper},
			AllowedPersonas: []PersonaID{PersonaGeneral, PersonaWestDesperado},
		},
		{
			Tier:            TierPro,
			DailyTokenLimit: 500000,
			AllowedModels:   []ModelID{ModelScamper, ModelGoldBuckle},
			AllowedPersonas: all,
		},
		{
			Tier:            TierChampion,
			DailyTokenLimit: 2000000,
			AllowedModels:   []ModelID{ModelScamper, ModelGoldBuckle, ModelBodacious},
			AllowedPersonas: all,
		},
		{
			Tier:            TierTeam,
			DailyTokenLimit: 10000000,
			AllowedModels:   []ModelID{ModelScamper, ModelGoldBuckle, ModelBodacious},
			AllowedPersonas: all,
		},
	}
}
