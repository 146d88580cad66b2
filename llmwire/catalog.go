package llmwire

import "strings"

// ModelInfo describes a known model in the catalog.
type ModelInfo struct {
	ID            string   `json:"id"`
	Provider      string   `json:"provider"`
	ContextWindow int      `json:"context_window"`
	MaxOutput     int      `json:"max_output"`
	Aliases       []string `json:"aliases,omitempty"`
}

// Models is the built-in model catalog. It is used to infer a provider from
// a bare model id and for context-window awareness; it is not a gatekeeper.
var Models = []ModelInfo{
	{ID: "gemini-2.5-pro", Provider: "google", ContextWindow: 1048576, MaxOutput: 65536, Aliases: []string{"gemini-pro"}},
	{ID: "gemini-2.5-flash", Provider: "google", ContextWindow: 1048576, MaxOutput: 65536, Aliases: []string{"gemini-flash"}},
	{ID: "gpt-5.2", Provider: "openai", ContextWindow: 1047576, MaxOutput: 32768, Aliases: []string{"gpt5"}},
	{ID: "gpt-5.2-mini", Provider: "openai", ContextWindow: 1047576, MaxOutput: 16384, Aliases: []string{"gpt5-mini"}},
	{ID: "claude-opus-4-6", Provider: "anthropic", ContextWindow: 200000, MaxOutput: 32768, Aliases: []string{"opus"}},
	{ID: "claude-sonnet-4-5", Provider: "anthropic", ContextWindow: 200000, MaxOutput: 16384, Aliases: []string{"sonnet"}},
	{ID: "qwen3-coder", Provider: "ollama", ContextWindow: 262144, MaxOutput: 32768},
	{ID: "llama3.3", Provider: "ollama", ContextWindow: 131072, MaxOutput: 8192},
}

// GetModelInfo looks up a model by id or alias.
func GetModelInfo(model string) *ModelInfo {
	for i := range Models {
		if Models[i].ID == model {
			return &Models[i]
		}
		for _, alias := range Models[i].Aliases {
			if alias == model {
				return &Models[i]
			}
		}
	}
	return nil
}

// GetLatestModel returns the first catalog entry for a provider, which is
// kept in newest-first order.
func GetLatestModel(provider string) *ModelInfo {
	for i := range Models {
		if Models[i].Provider == provider {
			return &Models[i]
		}
	}
	return nil
}

// InferProvider guesses the provider from a model id, falling back to
// well-known prefixes for models the catalog has not caught up with.
func InferProvider(model string) string {
	if info := GetModelInfo(model); info != nil {
		return info.Provider
	}
	switch {
	case strings.HasPrefix(model, "gemini"):
		return "google"
	case strings.HasPrefix(model, "gpt") || strings.HasPrefix(model, "o"):
		return "openai"
	case strings.HasPrefix(model, "claude"):
		return "anthropic"
	default:
		return ""
	}
}
