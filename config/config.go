package config

import "fmt"

// Config is the top-level configuration for a coxswain session.
type Config struct {
	Provider Provider `json:"provider" mapstructure:"provider"`
	Session  Session  `json:"session" mapstructure:"session"`
	Fallback Fallback `json:"fallback" mapstructure:"fallback"`
	Logging  Logging  `json:"logging" mapstructure:"logging"`
}

// Provider configures the model provider and credentials.
type Provider struct {
	Name    string   `json:"name" mapstructure:"name"` // google, openai, anthropic, ollama, or any gollm-supported provider
	Model   string   `json:"model" mapstructure:"model"`
	APIKeys []string `json:"api_keys" mapstructure:"api_keys"`
	BaseURL string   `json:"base_url" mapstructure:"base_url"` // override for self-hosted endpoints
}

// Session configures the turn engine.
type Session struct {
	SystemInstruction string  `json:"system_instruction" mapstructure:"system_instruction"`
	MaxTurns          int     `json:"max_turns" mapstructure:"max_turns"`
	MaxTokens         int     `json:"max_tokens" mapstructure:"max_tokens"`
	Temperature       float64 `json:"temperature" mapstructure:"temperature"`
	GenerationTimeout int     `json:"generation_timeout_seconds" mapstructure:"generation_timeout_seconds"`
	WorkDir           string  `json:"work_dir" mapstructure:"work_dir"`
}

// Fallback configures failure recovery.
type Fallback struct {
	OS                  string `json:"os" mapstructure:"os"`
	PackageManager      string `json:"package_manager" mapstructure:"package_manager"`
	InstallCommand      string `json:"install_command" mapstructure:"install_command"`
	UpdateCommand       string `json:"update_command" mapstructure:"update_command"`
	SystemContext       string `json:"system_context" mapstructure:"system_context"`
	EnableModelPlanning bool   `json:"enable_model_planning" mapstructure:"enable_model_planning"`
}

// Logging configures structured logging output.
type Logging struct {
	Level  string `json:"level" mapstructure:"level"` // debug, info, warn, error
	Pretty bool   `json:"pretty" mapstructure:"pretty"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider: Provider{
			Name:  "google",
			Model: "gemini-2.5-flash",
		},
		Session: Session{
			MaxTurns:          100,
			GenerationTimeout: 300,
		},
		Fallback: Fallback{
			EnableModelPlanning: true,
		},
		Logging: Logging{
			Level: "info",
		},
	}
}

// Validate checks the configuration for contradictions before a session
// starts.
func (c *Config) Validate() error {
	if c.Provider.Model == "" {
		return fmt.Errorf("provider.model is required")
	}
	if c.Provider.Name != "ollama" && len(c.Provider.APIKeys) == 0 {
		return fmt.Errorf("provider.api_keys is required for provider %q", c.Provider.Name)
	}
	if c.Session.MaxTurns < 0 {
		return fmt.Errorf("session.max_turns must not be negative")
	}
	return nil
}
