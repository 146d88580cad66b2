package llmwire

import (
	"encoding/json"
	"strings"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIAdapter speaks the chat-completions wire format.
type OpenAIAdapter struct {
	baseURL string
}

// NewOpenAIAdapter creates an OpenAIAdapter. baseURL overrides the hosted
// endpoint when non-empty (also used for chat-completions-compatible hosts).
func NewOpenAIAdapter(baseURL string) *OpenAIAdapter {
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &OpenAIAdapter{baseURL: strings.TrimRight(baseURL, "/")}
}

func (a *OpenAIAdapter) Name() string { return "openai" }

func (a *OpenAIAdapter) ResolveEndpoint(model, credential string) (string, map[string]string, error) {
	if model == "" {
		return "", nil, &MalformedRequestError{APIError: APIError{Message: "model is required"}}
	}
	url := a.baseURL + "/chat/completions"
	headers := map[string]string{
		"Content-Type": "application/json",
	}
	if credential != "" && !isLoopbackURL(url) {
		headers["Authorization"] = "Bearer " + credential
	}
	return url, headers, nil
}

// Wire types for the chat-completions format.

type openaiToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openaiMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content,omitempty"`
	ToolCalls  []openaiToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openaiRequest struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	Tools       []openaiTool    `json:"tools,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
}

type openaiTool struct {
	Type     string              `json:"type"`
	Function FunctionDeclaration `json:"function"`
}

type openaiResponse struct {
	Choices []struct {
		Message struct {
			Content   string           `json:"content"`
			ToolCalls []openaiToolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// ConvertRequest maps the role vocabulary (model becomes assistant) and
// rebuilds the call/result pairing the chat-completions format expects: an
// assistant message carrying tool_calls, followed by one tool-role message
// per result.
func (a *OpenAIAdapter) ConvertRequest(req Request) ([]byte, error) {
	if err := requireArgs(req.Contents); err != nil {
		return nil, err
	}

	out := openaiRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}

	if req.SystemInstruction != "" {
		out.Messages = append(out.Messages, openaiMessage{Role: "system", Content: req.SystemInstruction})
	}

	for _, c := range req.Contents {
		role := "user"
		if c.Role == RoleModel {
			role = "assistant"
		}

		msg := openaiMessage{Role: role, Content: c.Text()}
		emitted := false

		for _, p := range c.Parts {
			switch p.Kind {
			case PartFunctionCall:
				argBytes, err := json.Marshal(p.FunctionCall.Args)
				if err != nil {
					return nil, &MalformedRequestError{APIError: APIError{
						Message: "function call arguments are not serializable", Cause: err,
					}}
				}
				tc := openaiToolCall{ID: p.FunctionCall.ID, Type: "function"}
				tc.Function.Name = p.FunctionCall.Name
				tc.Function.Arguments = string(argBytes)
				msg.ToolCalls = append(msg.ToolCalls, tc)
			case PartFunctionResponse:
				// Tool results become their own tool-role messages.
				payload, err := json.Marshal(p.FunctionResponse.Response)
				if err != nil {
					return nil, &MalformedRequestError{APIError: APIError{
						Message: "function response is not serializable", Cause: err,
					}}
				}
				out.Messages = append(out.Messages, openaiMessage{
					Role:       "tool",
					Content:    string(payload),
					ToolCallID: p.FunctionResponse.ID,
				})
				emitted = true
			}
		}

		if msg.Content != "" || len(msg.ToolCalls) > 0 {
			out.Messages = append(out.Messages, msg)
		} else if !emitted {
			// Preserve turn alternation even for empty entries.
			out.Messages = append(out.Messages, msg)
		}
	}

	for _, t := range req.Tools {
		out.Tools = append(out.Tools, openaiTool{Type: "function", Function: t})
	}

	return json.Marshal(out)
}

func (a *OpenAIAdapter) ParseResponse(body []byte) (*Parsed, error) {
	var resp openaiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &MalformedResponseError{APIError: APIError{
			Message: "chat-completions response is not valid JSON", Cause: err,
		}}
	}
	if len(resp.Choices) == 0 {
		return nil, &MalformedResponseError{APIError: APIError{
			Message: "chat-completions response has no choices",
		}}
	}

	parsed := &Parsed{}
	choice := resp.Choices[0]
	if choice.Message.Content != "" {
		parsed.TextParts = append(parsed.TextParts, choice.Message.Content)
	}

	for _, tc := range choice.Message.ToolCalls {
		var args map[string]interface{}
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			// The model produced an argument payload that is not an object;
			// surface as a malformed call so the turn fails explicitly.
			parsed.FinishReason = FinishMalformedCall
			continue
		}
		if args == nil {
			args = map[string]interface{}{}
		}
		call := FunctionCall{ID: tc.ID, Name: tc.Function.Name, Args: args}
		EnsureCallID(&call)
		parsed.Calls = append(parsed.Calls, call)
	}

	if parsed.FinishReason == "" {
		switch choice.FinishReason {
		case "stop", "tool_calls":
			parsed.FinishReason = FinishStop
		case "length":
			parsed.FinishReason = FinishMaxTokens
		case "content_filter":
			parsed.FinishReason = FinishSafety
		case "":
			// Omitted finish reason with textual content means STOP.
			if len(parsed.TextParts) > 0 {
				parsed.FinishReason = FinishStop
			}
		default:
			parsed.FinishReason = strings.ToUpper(choice.FinishReason)
		}
	}

	if resp.Usage != nil {
		parsed.Usage = Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		}
	}

	return parsed, nil
}
