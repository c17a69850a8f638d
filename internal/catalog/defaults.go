package catalog

// Selection pairs a provider with one of its models for a given operation.
type Selection struct {
	Provider Provider
	Model    string
}

// platformDefaults is the fallback provider/model per operation when neither a
// request override nor a saved user preference applies.
var platformDefaults = map[Operation]Selection{
	OperationImage:     {Provider: ProviderGemini, Model: "gemini-2.5-flash-image"},
	OperationImageEdit: {Provider: ProviderGemini, Model: "gemini-2.5-flash-image"},
	OperationVideo:     {Provider: ProviderKieAI, Model: "veo-3-fast"},
	OperationVoiceover: {Provider: ProviderElevenLabs, Model: "eleven_turbo_v2_5"},
	OperationMusic:     {Provider: ProviderKieAI, Model: "suno-v4"},
	OperationScene:     {Provider: ProviderGemini, Model: "gemini-2.5-flash"},
	OperationCharacter: {Provider: ProviderGemini, Model: "gemini-2.5-flash"},
	OperationPrompt:    {Provider: ProviderGemini, Model: "gemini-2.5-flash"},
}

// operationModels lists the models each provider can serve per operation. The
// first entry is the provider's default model for that operation.
var operationModels = map[Operation]map[Provider][]string{
	OperationImage: {
		ProviderGemini: {"gemini-2.5-flash-image", "imagen-3"},
		ProviderModal:  {"flux-schnell", "flux-dev"},
		ProviderKieAI:  {"flux-kontext-pro"},
		ProviderOpenAI: {"gpt-image-1"},
	},
	OperationImageEdit: {
		ProviderGemini: {"gemini-2.5-flash-image"},
		ProviderModal:  {"flux-kontext-dev"},
		ProviderKieAI:  {"flux-kontext-pro"},
	},
	OperationVideo: {
		ProviderKieAI: {"veo-3-fast", "veo-3", "runway-gen4"},
		ProviderModal: {"wan-2.2"},
	},
	OperationVoiceover: {
		ProviderElevenLabs: {"eleven_turbo_v2_5", "eleven_multilingual_v2"},
		ProviderOpenAI:     {"gpt-4o-mini-tts"},
	},
	OperationMusic: {
		ProviderKieAI: {"suno-v4"},
	},
	OperationScene: {
		ProviderGemini: {"gemini-2.5-flash", "gemini-2.5-pro"},
		ProviderOpenAI: {"gpt-4.1-mini"},
	},
	OperationCharacter: {
		ProviderGemini: {"gemini-2.5-flash", "gemini-2.5-pro"},
		ProviderOpenAI: {"gpt-4.1-mini"},
	},
	OperationPrompt: {
		ProviderGemini: {"gemini-2.5-flash"},
		ProviderOpenAI: {"gpt-4.1-mini"},
	},
}

// DefaultSelection returns the platform default provider/model for the operation.
func DefaultSelection(op Operation) (Selection, bool) {
	sel, ok := platformDefaults[op]
	return sel, ok
}

// SupportsOperation reports whether the provider can serve the operation.
func SupportsOperation(p Provider, op Operation) bool {
	models, ok := operationModels[op][p]
	return ok && len(models) > 0
}

// DefaultModel returns the provider's default model for the operation.
func DefaultModel(p Provider, op Operation) (string, bool) {
	models, ok := operationModels[op][p]
	if !ok || len(models) == 0 {
		return "", false
	}
	return models[0], true
}

// KnownModel reports whether the model is in the provider's catalog for the operation.
func KnownModel(p Provider, op Operation, model string) bool {
	for _, m := range operationModels[op][p] {
		if m == model {
			return true
		}
	}
	return false
}
