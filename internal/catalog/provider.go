package catalog

import "strings"

// Provider identifies an upstream generation vendor. The set is closed so that
// a typo at the HTTP boundary cannot silently miss pricing lookups; anything we
// do not recognise maps to ProviderUnknown.
type Provider string

const (
	ProviderGemini     Provider = "gemini"
	ProviderOpenAI     Provider = "openai"
	ProviderModal      Provider = "modal"
	ProviderKieAI      Provider = "kieai"
	ProviderElevenLabs Provider = "elevenlabs"
	ProviderUnknown    Provider = "unknown"
)

var knownProviders = map[Provider]struct{}{
	ProviderGemini:     {},
	ProviderOpenAI:     {},
	ProviderModal:      {},
	ProviderKieAI:      {},
	ProviderElevenLabs: {},
}

// ParseProvider normalizes a free-text provider identifier into the closed set.
func ParseProvider(raw string) Provider {
	p := Provider(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := knownProviders[p]; ok {
		return p
	}
	return ProviderUnknown
}

// KnownProviders returns the supported providers in a stable order.
func KnownProviders() []Provider {
	return []Provider{
		ProviderGemini,
		ProviderOpenAI,
		ProviderModal,
		ProviderKieAI,
		ProviderElevenLabs,
	}
}

func (p Provider) String() string { return string(p) }

// Known reports whether the provider belongs to the closed set.
func (p Provider) Known() bool {
	_, ok := knownProviders[p]
	return ok
}
