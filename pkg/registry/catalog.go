package registry

// DefaultCatalog returns the built-in model catalog used when no
// catalog file is configured. Priorities order fallback chains within
// a category: fast hosted models first, heavier models after.
func DefaultCatalog() *Catalog {
	return &Catalog{
		Default: "llama-3.3-70b-versatile",
		Models: []Model{
			{
				ID:            "llama-3.3-70b-versatile",
				Name:          "Llama 3.3 70B Versatile",
				Provider:      "groq",
				Category:      CategoryGeneral,
				ContextWindow: 131072,
				Priority:      90,
				Fallback:      "gemini-2.0-flash",
			},
			{
				ID:            "llama-3.1-8b-instant",
				Name:          "Llama 3.1 8B Instant",
				Provider:      "groq",
				Category:      CategoryConversation,
				ContextWindow: 131072,
				Priority:      80,
				Fallback:      "llama-3.3-70b-versatile",
			},
			{
				ID:            "qwen-2.5-coder-32b",
				Name:          "Qwen 2.5 Coder 32B",
				Provider:      "groq",
				Category:      CategoryCoding,
				ContextWindow: 131072,
				Priority:      85,
				Fallback:      "claude-sonnet-4-20250514",
			},
			{
				ID:            "deepseek-r1-distill-llama-70b",
				Name:          "DeepSeek R1 Distill 70B",
				Provider:      "groq",
				Category:      CategoryMath,
				ContextWindow: 131072,
				Priority:      85,
				Fallback:      "llama-3.3-70b-versatile",
			},
			{
				ID:            "llama3.1-8b",
				Name:          "Cerebras Llama 3.1 8B",
				Provider:      "cerebras",
				Category:      CategoryConversation,
				ContextWindow: 8192,
				Priority:      60,
				Fallback:      "llama-3.3-70b-versatile",
			},
			{
				ID:            "gemini-2.0-flash",
				Name:          "Gemini 2.0 Flash",
				Provider:      "google",
				Category:      CategoryMultimodal,
				ContextWindow: 1048576,
				Priority:      80,
				Fallback:      "llama-3.3-70b-versatile",
			},
			{
				ID:            "gpt-4o-mini",
				Name:          "GPT-4o Mini",
				Provider:      "openai",
				Category:      CategoryGeneral,
				ContextWindow: 128000,
				Priority:      70,
				Fallback:      "llama-3.3-70b-versatile",
			},
			{
				ID:            "claude-sonnet-4-20250514",
				Name:          "Claude Sonnet 4",
				Provider:      "anthropic",
				Category:      CategoryCoding,
				ContextWindow: 200000,
				Priority:      75,
				Fallback:      "llama-3.3-70b-versatile",
			},
		},
	}
}
