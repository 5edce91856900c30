package models

// DefaultCatalogue is served when no models.yaml is configured. The first
// entry is the initial selection in the UI.
func DefaultCatalogue() []*Model {
	openaiCaps := ModelCapabilities{
		ContextWindow:     400000,
		SupportsVision:    true,
		SupportsReasoning: true,
		SupportsWebSearch: true,
		TokenizerType:     "o200k_base",
	}
	return []*Model{
		{ID: "gpt-5-mini", Name: "GPT-5 Mini", Provider: ProviderOpenAI, Capabilities: openaiCaps},
		{ID: "gpt-5", Name: "GPT-5", Provider: ProviderOpenAI, Capabilities: openaiCaps},
		{ID: "gpt-5-nano", Name: "GPT-5 Nano", Provider: ProviderOpenAI, Capabilities: openaiCaps},
		{ID: DefaultModelID, Name: "GPT-4o Mini", Provider: ProviderOpenAI, Capabilities: ModelCapabilities{
			ContextWindow:     128000,
			SupportsVision:    true,
			SupportsWebSearch: true,
			TokenizerType:     "o200k_base",
		}},
		{ID: "claude-3-haiku-20240307", Name: "Claude 3 Haiku", Provider: ProviderAnthropic, Capabilities: ModelCapabilities{
			ContextWindow:  200000,
			SupportsVision: true,
		}},
		{ID: "claude-3-sonnet-20240229", Name: "Claude 3 Sonnet", Provider: ProviderAnthropic, Capabilities: ModelCapabilities{
			ContextWindow:  200000,
			SupportsVision: true,
		}},
		{ID: "gemini-2.0-flash", Name: "Gemini 2.0 Flash", Provider: ProviderGoogle, Capabilities: ModelCapabilities{
			ContextWindow:  1000000,
			SupportsVision: true,
		}},
		{ID: "mixtral-8x7b-32768", Name: "Mixtral-8x7b", Provider: ProviderGroq, Capabilities: ModelCapabilities{
			ContextWindow: 32768,
		}},
		{ID: "llama2-70b-4096", Name: "Llama2-70B", Provider: ProviderGroq, Capabilities: ModelCapabilities{
			ContextWindow: 4096,
		}},
	}
}
