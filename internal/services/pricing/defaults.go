package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/storyreel/backend/internal/catalog"
)

// defaultCosts is the hardcoded fallback table. If the pricing store is
// unreachable or has no active row for a pair, lookups degrade to these values
// instead of failing the caller. Unknown pairs resolve to zero.
var defaultCosts = map[catalog.ActionType]map[catalog.Provider]decimal.Decimal{
	catalog.ActionImage: {
		catalog.ProviderGemini: decimal.NewFromFloat(0.039),
		catalog.ProviderModal:  decimal.NewFromFloat(0.025),
		catalog.ProviderKieAI:  decimal.NewFromFloat(0.03),
		catalog.ProviderOpenAI: decimal.NewFromFloat(0.08),
	},
	catalog.ActionVideo: {
		catalog.ProviderKieAI: decimal.NewFromFloat(0.40),
		catalog.ProviderModal: decimal.NewFromFloat(0.30),
	},
	catalog.ActionVoiceover: {
		catalog.ProviderElevenLabs: decimal.NewFromFloat(0.08),
		catalog.ProviderOpenAI:     decimal.NewFromFloat(0.015),
	},
	catalog.ActionMusic: {
		catalog.ProviderKieAI: decimal.NewFromFloat(0.06),
	},
	catalog.ActionScene: {
		catalog.ProviderGemini: decimal.NewFromFloat(0.002),
		catalog.ProviderOpenAI: decimal.NewFromFloat(0.005),
	},
	catalog.ActionCharacter: {
		catalog.ProviderGemini: decimal.NewFromFloat(0.002),
		catalog.ProviderOpenAI: decimal.NewFromFloat(0.005),
	},
	catalog.ActionPrompt: {
		catalog.ProviderGemini: decimal.NewFromFloat(0.001),
		catalog.ProviderOpenAI: decimal.NewFromFloat(0.002),
	},
}

// DefaultCost returns the built-in fallback cost for the pair.
func DefaultCost(actionType catalog.ActionType, provider catalog.Provider) decimal.Decimal {
	if byProvider, ok := defaultCosts[actionType]; ok {
		if cost, ok := byProvider[provider]; ok {
			return cost
		}
	}
	return decimal.Zero
}
