package llmwire

import (
	"encoding/json"
	"strings"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion        = "2023-06-01"
	anthropicDefaultTokens  = 8192
)

// AnthropicAdapter speaks the messages wire format.
type AnthropicAdapter struct {
	baseURL string
}

// NewAnthropicAdapter creates an AnthropicAdapter. baseURL overrides the
// hosted endpoint when non-empty.
func NewAnthropicAdapter(baseURL string) *AnthropicAdapter {
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}
	return &AnthropicAdapter{baseURL: strings.TrimRight(baseURL, "/")}
}

func (a *AnthropicAdapter) Name() string { return "anthropic" }

func (a *AnthropicAdapter) ResolveEndpoint(model, credential string) (string, map[string]string, error) {
	if model == "" {
		return "", nil, &MalformedRequestError{APIError: APIError{Message: "model is required"}}
	}
	url := a.baseURL + "/messages"
	headers := map[string]string{
		"Content-Type":      "application/json",
		"Anthropic-Version": anthropicVersion,
	}
	if credential != "" && !isLoopbackURL(url) {
		headers["X-API-Key"] = credential
	}
	return url, headers, nil
}

// Wire types for the messages format. Content blocks are a tagged union
// keyed by "type".

type anthropicBlock struct {
	Type      string                 `json:"type"`
	Text      string                 `json:"text,omitempty"`
	Thinking  string                 `json:"thinking,omitempty"`
	ID        string                 `json:"id,omitempty"`
	Name      string                 `json:"name,omitempty"`
	Input     map[string]interface{} `json:"input,omitempty"`
	ToolUseID string                 `json:"tool_use_id,omitempty"`
	Content   string                 `json:"content,omitempty"`
}

type anthropicMessage struct {
	Role    string           `json:"role"`
	Content []anthropicBlock `json:"content"`
}

type anthropicTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Tools       []anthropicTool    `json:"tools,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature,omitempty"`
}

type anthropicResponse struct {
	Content    []anthropicBlock `json:"content"`
	StopReason string           `json:"stop_reason"`
	Usage      *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// ConvertRequest maps model to assistant and rebuilds tool pairing with
// tool_use blocks on the assistant side and tool_result blocks inside a
// user message. The tool declaration schema moves to input_schema with
// field names and types untouched.
func (a *AnthropicAdapter) ConvertRequest(req Request) ([]byte, error) {
	if err := requireArgs(req.Contents); err != nil {
		return nil, err
	}

	out := anthropicRequest{
		Model:       req.Model,
		System:      req.SystemInstruction,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if out.MaxTokens <= 0 {
		out.MaxTokens = anthropicDefaultTokens
	}

	for _, c := range req.Contents {
		role := "user"
		if c.Role == RoleModel {
			role = "assistant"
		}

		var blocks []anthropicBlock
		for _, p := range c.Parts {
			switch p.Kind {
			case PartText:
				if p.Thought || p.Text == "" {
					continue
				}
				blocks = append(blocks, anthropicBlock{Type: "text", Text: p.Text})
			case PartFunctionCall:
				blocks = append(blocks, anthropicBlock{
					Type:  "tool_use",
					ID:    p.FunctionCall.ID,
					Name:  p.FunctionCall.Name,
					Input: p.FunctionCall.Args,
				})
			case PartFunctionResponse:
				payload, err := json.Marshal(p.FunctionResponse.Response)
				if err != nil {
					return nil, &MalformedRequestError{APIError: APIError{
						Message: "function response is not serializable", Cause: err,
					}}
				}
				blocks = append(blocks, anthropicBlock{
					Type:      "tool_result",
					ToolUseID: p.FunctionResponse.ID,
					Content:   string(payload),
				})
			}
		}
		if len(blocks) == 0 {
			continue
		}
		out.Messages = append(out.Messages, anthropicMessage{Role: role, Content: blocks})
	}

	for _, t := range req.Tools {
		out.Tools = append(out.Tools, anthropicTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.Parameters,
		})
	}

	return json.Marshal(out)
}

func (a *AnthropicAdapter) ParseResponse(body []byte) (*Parsed, error) {
	var resp anthropicResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &MalformedResponseError{APIError: APIError{
			Message: "messages response is not valid JSON", Cause: err,
		}}
	}
	if len(resp.Content) == 0 && resp.StopReason == "" {
		return nil, &MalformedResponseError{APIError: APIError{
			Message: "messages response has no content blocks",
		}}
	}

	parsed := &Parsed{}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			if block.Text != "" {
				parsed.TextParts = append(parsed.TextParts, block.Text)
			}
		case "thinking":
			parsed.Thoughts = append(parsed.Thoughts, block.Thinking)
		case "tool_use":
			args := block.Input
			if args == nil {
				args = map[string]interface{}{}
			}
			call := FunctionCall{ID: block.ID, Name: block.Name, Args: args}
			EnsureCallID(&call)
			parsed.Calls = append(parsed.Calls, call)
		}
	}

	switch resp.StopReason {
	case "end_turn", "tool_use", "stop_sequence":
		parsed.FinishReason = FinishStop
	case "max_tokens":
		parsed.FinishReason = FinishMaxTokens
	case "refusal":
		parsed.FinishReason = FinishSafety
	case "":
		if len(parsed.TextParts) > 0 {
			parsed.FinishReason = FinishStop
		}
	default:
		parsed.FinishReason = strings.ToUpper(resp.StopReason)
	}

	if resp.Usage != nil {
		parsed.Usage = Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		}
	}

	return parsed, nil
}
