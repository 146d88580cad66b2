package llmwire

import "testing"

func TestGetModelInfo(t *testing.T) {
	// By exact ID.
	info := GetModelInfo("gemini-2.5-flash")
	if info == nil {
		t.Fatal("expected to find gemini-2.5-flash")
	}
	if info.Provider != "google" {
		t.Errorf("expected provider %q, got %q", "google", info.Provider)
	}
	if info.ContextWindow != 1048576 {
		t.Errorf("expected context window 1048576, got %d", info.ContextWindow)
	}

	// By alias.
	info = GetModelInfo("opus")
	if info == nil {
		t.Fatal("expected to find model by alias 'opus'")
	}
	if info.ID != "claude-opus-4-6" {
		t.Errorf("expected id %q, got %q", "claude-opus-4-6", info.ID)
	}

	// Unknown model.
	info = GetModelInfo("nonexistent-model")
	if info != nil {
		t.Errorf("expected nil for unknown model, got %v", info)
	}
}

func TestGetLatestModel(t *testing.T) {
	// The catalog is kept newest-first per provider.
	info := GetLatestModel("google")
	if info == nil {
		t.Fatal("expected to find latest Google model")
	}
	if info.ID != "gemini-2.5-pro" {
		t.Errorf("expected %q, got %q", "gemini-2.5-pro", info.ID)
	}

	info = GetLatestModel("ollama")
	if info == nil {
		t.Fatal("expected to find latest Ollama model")
	}
	if info.ID != "qwen3-coder" {
		t.Errorf("expected %q, got %q", "qwen3-coder", info.ID)
	}

	if info := GetLatestModel("nonexistent"); info != nil {
		t.Errorf("expected nil for unknown provider, got %v", info)
	}
}

func TestInferProvider(t *testing.T) {
	tests := []struct {
		model    string
		expected string
	}{
		{"gemini-2.5-pro", "google"},    // catalog hit
		{"gemini-flash", "google"},      // catalog alias
		{"claude-sonnet-4-5", "anthropic"},
		{"gemini-99-experimental", "google"}, // prefix fallback, not in catalog
		{"gpt-99-turbo", "openai"},
		{"o9-preview", "openai"},
		{"claude-99", "anthropic"},
		{"llama3.3", "ollama"}, // catalog hit; no prefix rule for local models
		{"totally-unknown-model", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := InferProvider(tt.model); got != tt.expected {
			t.Errorf("InferProvider(%q) = %q, expected %q", tt.model, got, tt.expected)
		}
	}
}
