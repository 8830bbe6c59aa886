package app

import (
	"rodeoai/internal/config"
	"rodeoai/internal/service/chat"
	"rodeoai/internal/service/conversation"
	"rodeoai/internal/service/quota"
	"rodeoai/internal/service/usage"
)

// Services are the domain services wired from a Config
type Services struct {
	Conversations *conversation.ConversationService
	Quota         *quota.Engine
	Ledger        *usage.Ledger
	Chat          *chat.ChatService
}

// NewServices builds the domain services. Build them once per process: the
// conversation service owns the per-conversation turn locks.
func (c *Config) NewServices() *Services {
	catalog := c.Catalog()
	ledger := usage.NewLedger(c.DB, catalog)
	conversations := conversation.NewConversationService(c.DB, catalog)
	engine := quota.NewEngine(catalog, ledger, c.ResetPolicy())

	return &Services{
		Conversations: conversations,
		Quota:         engine,
		Ledger:        ledger,
		Chat: chat.NewChatService(chat.Dependencies{
			Conversations:   conversations,
			Quota:           engine,
			Ledger:          ledger,
			Relay:           c.Relay,
			Counter:         c.Counter,
			Limiter:         c.Limiter,
			FragmentTimeout: c.AppConfig.LLM.FragmentTimeout,
		}),
	}
}

// ResetPolicy returns the configured daily counter reset policy
func (c *Config) ResetPolicy() quota.ResetPolicy {
	if c.AppConfig.Quota.ResetPolicy == config.ResetPolicyLazy {
		return quota.NewLazyDailyReset(c.DB, c.AppConfig.Quota.Timezone)
	}
	return quota.NoopResetPolicy{}
}
