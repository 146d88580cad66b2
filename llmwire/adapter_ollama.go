package llmwire

import (
	"encoding/json"
	"strings"
)

const defaultOllamaBaseURL = "http://localhost:11434"

// OllamaAdapter speaks the chat format of Ollama-compatible servers. The
// loopback heuristic decides whether the endpoint is self-hosted: loopback
// hosts get no authorization header, anything else is treated as a hosted
// deployment behind a bearer token.
type OllamaAdapter struct {
	baseURL string
}

// NewOllamaAdapter creates an OllamaAdapter. baseURL overrides the local
// default when non-empty.
func NewOllamaAdapter(baseURL string) *OllamaAdapter {
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	return &OllamaAdapter{baseURL: strings.TrimRight(baseURL, "/")}
}

func (a *OllamaAdapter) Name() string { return "ollama" }

func (a *OllamaAdapter) ResolveEndpoint(model, credential string) (string, map[string]string, error) {
	if model == "" {
		return "", nil, &MalformedRequestError{APIError: APIError{Message: "model is required"}}
	}
	url := a.baseURL + "/api/chat"
	headers := map[string]string{
		"Content-Type": "application/json",
	}
	if credential != "" && !isLoopbackURL(url) {
		headers["Authorization"] = "Bearer " + credential
	}
	return url, headers, nil
}

// Wire types. Ollama's tool calls carry arguments as an object, not a
// string, and omit call ids entirely.

type ollamaToolCall struct {
	Function struct {
		Name      string                 `json:"name"`
		Arguments map[string]interface{} `json:"arguments"`
	} `json:"function"`
}

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Tools    []openaiTool    `json:"tools,omitempty"`
	Stream   bool            `json:"stream"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaOptions struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

type ollamaResponse struct {
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	DoneReason      string        `json:"done_reason"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
}

func (a *OllamaAdapter) ConvertRequest(req Request) ([]byte, error) {
	if err := requireArgs(req.Contents); err != nil {
		return nil, err
	}

	out := ollamaRequest{Model: req.Model, Stream: false}
	if req.MaxTokens > 0 || req.Temperature > 0 {
		out.Options = &ollamaOptions{NumPredict: req.MaxTokens, Temperature: req.Temperature}
	}

	if req.SystemInstruction != "" {
		out.Messages = append(out.Messages, ollamaMessage{Role: "system", Content: req.SystemInstruction})
	}

	for _, c := range req.Contents {
		role := "user"
		if c.Role == RoleModel {
			role = "assistant"
		}

		msg := ollamaMessage{Role: role, Content: c.Text()}
		emitted := false
		for _, p := range c.Parts {
			switch p.Kind {
			case PartFunctionCall:
				var tc ollamaToolCall
				tc.Function.Name = p.FunctionCall.Name
				tc.Function.Arguments = p.FunctionCall.Args
				msg.ToolCalls = append(msg.ToolCalls, tc)
			case PartFunctionResponse:
				payload, err := json.Marshal(p.FunctionResponse.Response)
				if err != nil {
					return nil, &MalformedRequestError{APIError: APIError{
						Message: "function response is not serializable", Cause: err,
					}}
				}
				out.Messages = append(out.Messages, ollamaMessage{Role: "tool", Content: string(payload)})
				emitted = true
			}
		}
		if msg.Content != "" || len(msg.ToolCalls) > 0 || !emitted {
			out.Messages = append(out.Messages, msg)
		}
	}

	for _, t := range req.Tools {
		out.Tools = append(out.Tools, openaiTool{Type: "function", Function: t})
	}

	return json.Marshal(out)
}

func (a *OllamaAdapter) ParseResponse(body []byte) (*Parsed, error) {
	var resp ollamaResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &MalformedResponseError{APIError: APIError{
			Message: "ollama response is not valid JSON", Cause: err,
		}}
	}

	parsed := &Parsed{}
	if resp.Message.Content != "" {
		parsed.TextParts = append(parsed.TextParts, resp.Message.Content)
	}
	for _, tc := range resp.Message.ToolCalls {
		args := tc.Function.Arguments
		if args == nil {
			args = map[string]interface{}{}
		}
		call := FunctionCall{Name: tc.Function.Name, Args: args}
		EnsureCallID(&call)
		parsed.Calls = append(parsed.Calls, call)
	}

	switch resp.DoneReason {
	case "stop":
		parsed.FinishReason = FinishStop
	case "length":
		parsed.FinishReason = FinishMaxTokens
	case "":
		if resp.Done && len(parsed.TextParts) > 0 {
			parsed.FinishReason = FinishStop
		}
	default:
		parsed.FinishReason = strings.ToUpper(resp.DoneReason)
	}

	parsed.Usage = Usage{InputTokens: resp.PromptEvalCount, OutputTokens: resp.EvalCount}
	return parsed, nil
}
