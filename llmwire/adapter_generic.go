package llmwire

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/teilomillet/gollm"
)

// GenericAdapter routes providers that have no dedicated adapter through the
// gollm library. It owns its transport: the Client dispatches it via the
// Completer interface, so the pure-transform methods are never called.
type GenericAdapter struct {
	provider string
	llm      gollm.LLM
	model    string
}

// NewGenericAdapter creates a gollm-backed adapter for the given provider.
// If apiKey is empty, gollm reads it from the provider's environment
// variable.
func NewGenericAdapter(provider, apiKey, model string) (*GenericAdapter, error) {
	if model == "" {
		if info := GetLatestModel(provider); info != nil {
			model = info.ID
		}
	}

	opts := []gollm.ConfigOption{
		gollm.SetProvider(provider),
		gollm.SetModel(model),
		gollm.SetMaxRetries(0), // retries are handled by the Client
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}
	if apiKey != "" {
		opts = append(opts, gollm.SetAPIKey(apiKey))
	}

	llm, err := gollm.NewLLM(opts...)
	if err != nil {
		return nil, fmt.Errorf("create gollm backend for %s: %w", provider, err)
	}

	return &GenericAdapter{provider: provider, llm: llm, model: model}, nil
}

// NewGenericAdapterFromLLM wraps an existing gollm.LLM instance.
func NewGenericAdapterFromLLM(provider string, llm gollm.LLM) *GenericAdapter {
	return &GenericAdapter{provider: provider, llm: llm}
}

func (a *GenericAdapter) Name() string { return a.provider }

func (a *GenericAdapter) ResolveEndpoint(model, credential string) (string, map[string]string, error) {
	return "", nil, &MalformedRequestError{APIError: APIError{
		Message: "generic adapter does not expose a wire endpoint",
	}}
}

func (a *GenericAdapter) ConvertRequest(req Request) ([]byte, error) {
	return nil, &MalformedRequestError{APIError: APIError{
		Message: "generic adapter does not expose a wire format",
	}}
}

func (a *GenericAdapter) ParseResponse(body []byte) (*Parsed, error) {
	return nil, &MalformedResponseError{APIError: APIError{
		Message: "generic adapter does not expose a wire format",
	}}
}

// Complete flattens the canonical conversation into a gollm prompt, invokes
// the backend, and lifts the reply back into the normalized shape.
func (a *GenericAdapter) Complete(ctx context.Context, req Request) (*Parsed, error) {
	prompt, err := a.translateRequest(req)
	if err != nil {
		return nil, err
	}

	if req.Model != "" {
		a.llm.SetOption("model", req.Model)
	}
	if req.MaxTokens > 0 {
		a.llm.SetOption("max_tokens", req.MaxTokens)
	}
	if req.Temperature > 0 {
		a.llm.SetOption("temperature", req.Temperature)
	}

	text, err := a.llm.Generate(ctx, prompt)
	if err != nil {
		return nil, a.translateError(err)
	}

	parsed := &Parsed{}
	calls, cleaned := extractEmbeddedCalls(text)
	parsed.Calls = calls
	if cleaned != "" {
		parsed.TextParts = append(parsed.TextParts, cleaned)
	}
	if parsed.FinishReason == "" && (len(parsed.TextParts) > 0 || len(parsed.Calls) > 0) {
		parsed.FinishReason = FinishStop
	}
	return parsed, nil
}

func (a *GenericAdapter) translateRequest(req Request) (*gollm.Prompt, error) {
	if err := requireArgs(req.Contents); err != nil {
		return nil, err
	}

	var userParts []string
	for _, c := range req.Contents {
		switch c.Role {
		case RoleUser:
			text := c.Text()
			for _, p := range c.Parts {
				if p.Kind == PartFunctionResponse {
					payload, _ := json.Marshal(p.FunctionResponse.Response)
					userParts = append(userParts, "[Tool Result]: "+string(payload))
				}
			}
			if text != "" {
				userParts = append(userParts, text)
			}
		case RoleModel:
			if text := c.Text(); text != "" {
				userParts = append(userParts, "[Assistant]: "+text)
			}
		}
	}

	promptText := strings.Join(userParts, "\n")
	if promptText == "" {
		promptText = "Hello"
	}

	var promptOpts []gollm.PromptOption
	if req.SystemInstruction != "" {
		promptOpts = append(promptOpts, gollm.WithSystemPrompt(req.SystemInstruction, gollm.CacheTypeEphemeral))
	}
	if req.MaxTokens > 0 {
		promptOpts = append(promptOpts, gollm.WithMaxLength(req.MaxTokens))
	}
	if len(req.Tools) > 0 {
		tools := make([]gollm.Tool, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, gollm.Tool{
				Type: "function",
				Function: gollm.Function{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.Parameters,
				},
			})
		}
		promptOpts = append(promptOpts, gollm.WithTools(tools))
	}

	return gollm.NewPrompt(promptText, promptOpts...), nil
}

// extractEmbeddedCalls pulls tool calls out of reply text for backends that
// return them inline as a JSON array of {"name", "arguments"} objects.
func extractEmbeddedCalls(text string) ([]FunctionCall, string) {
	start := strings.Index(text, `[{"name"`)
	if start == -1 {
		return nil, text
	}

	var rawCalls []struct {
		Name      string                 `json:"name"`
		Arguments map[string]interface{} `json:"arguments"`
	}
	if err := json.Unmarshal([]byte(text[start:]), &rawCalls); err != nil {
		return nil, text
	}

	var calls []FunctionCall
	for _, rc := range rawCalls {
		args := rc.Arguments
		if args == nil {
			args = map[string]interface{}{}
		}
		call := FunctionCall{Name: rc.Name, Args: args}
		EnsureCallID(&call)
		calls = append(calls, call)
	}
	return calls, strings.TrimSpace(text[:start])
}

// translateError lifts a gollm error into the llmwire error hierarchy by
// classifying its message.
func (a *GenericAdapter) translateError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	lower := strings.ToLower(msg)
	base := APIError{Message: msg, Cause: err}

	switch {
	case strings.Contains(lower, "401") || strings.Contains(lower, "unauthorized") || strings.Contains(lower, "invalid api key"):
		return &AuthenticationError{ProviderError: ProviderError{APIError: base, Provider: a.provider, StatusCode: 401}}
	case strings.Contains(lower, "429") || strings.Contains(lower, "rate limit"):
		return &RateLimitError{ProviderError: ProviderError{APIError: base, Provider: a.provider, StatusCode: 429, Retryable: true}}
	case strings.Contains(lower, "context length") || strings.Contains(lower, "too many tokens"):
		return &ContextLengthError{ProviderError: ProviderError{APIError: base, Provider: a.provider, StatusCode: 413}}
	case strings.Contains(lower, "timeout"):
		return &RequestTimeoutError{APIError: base}
	case strings.Contains(lower, "content filter") || strings.Contains(lower, "safety"):
		return &ContentFilterError{ProviderError: ProviderError{APIError: base, Provider: a.provider}}
	case strings.Contains(lower, "500") || strings.Contains(lower, "internal server"):
		return &ServerError{ProviderError: ProviderError{APIError: base, Provider: a.provider, StatusCode: 500, Retryable: true}}
	default:
		return &ProviderError{APIError: base, Provider: a.provider, Retryable: true}
	}
}
