package llmwire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const defaultGoogleBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GoogleAdapter speaks the generateContent wire format. It is the default
// provider: its wire shapes match the canonical representation closely, and
// its responses arrive in any of three physical forms (a single JSON object,
// a JSON array of objects, or a line-oriented event stream).
type GoogleAdapter struct {
	baseURL string
}

// NewGoogleAdapter creates a GoogleAdapter. baseURL overrides the hosted
// endpoint when non-empty.
func NewGoogleAdapter(baseURL string) *GoogleAdapter {
	if baseURL == "" {
		baseURL = defaultGoogleBaseURL
	}
	return &GoogleAdapter{baseURL: strings.TrimRight(baseURL, "/")}
}

func (a *GoogleAdapter) Name() string { return "google" }

func (a *GoogleAdapter) ResolveEndpoint(model, credential string) (string, map[string]string, error) {
	if model == "" {
		return "", nil, &MalformedRequestError{APIError: APIError{Message: "model is required"}}
	}
	url := fmt.Sprintf("%s/models/%s:generateContent", a.baseURL, model)
	headers := map[string]string{
		"Content-Type": "application/json",
	}
	if credential != "" && !isLoopbackURL(url) {
		headers["x-goog-api-key"] = credential
	}
	return url, headers, nil
}

// Wire types for the generateContent format.

type googlePart struct {
	Text             string                 `json:"text,omitempty"`
	Thought          bool                   `json:"thought,omitempty"`
	FunctionCall     *googleFunctionCall    `json:"functionCall,omitempty"`
	FunctionResponse *googleFunctionResp    `json:"functionResponse,omitempty"`
}

type googleFunctionCall struct {
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
	ID   string                 `json:"id,omitempty"`
}

type googleFunctionResp struct {
	Name     string                 `json:"name"`
	Response map[string]interface{} `json:"response"`
	ID       string                 `json:"id,omitempty"`
}

type googleContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []googlePart `json:"parts"`
}

type googleRequest struct {
	Contents          []googleContent  `json:"contents"`
	Tools             []googleToolList `json:"tools,omitempty"`
	SystemInstruction *googleContent   `json:"systemInstruction,omitempty"`
	GenerationConfig  *googleGenConfig `json:"generationConfig,omitempty"`
}

type googleToolList struct {
	FunctionDeclarations []FunctionDeclaration `json:"functionDeclarations"`
}

type googleGenConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature,omitempty"`
}

type googleResponse struct {
	Candidates []struct {
		Content      googleContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

func (a *GoogleAdapter) ConvertRequest(req Request) ([]byte, error) {
	if err := requireArgs(req.Contents); err != nil {
		return nil, err
	}

	out := googleRequest{}
	for _, c := range req.Contents {
		gc := googleContent{Role: string(c.Role)}
		for _, p := range c.Parts {
			switch p.Kind {
			case PartText:
				gc.Parts = append(gc.Parts, googlePart{Text: p.Text, Thought: p.Thought})
			case PartFunctionCall:
				gc.Parts = append(gc.Parts, googlePart{FunctionCall: &googleFunctionCall{
					Name: p.FunctionCall.Name,
					Args: p.FunctionCall.Args,
					ID:   p.FunctionCall.ID,
				}})
			case PartFunctionResponse:
				gc.Parts = append(gc.Parts, googlePart{FunctionResponse: &googleFunctionResp{
					Name:     p.FunctionResponse.Name,
					Response: p.FunctionResponse.Response,
					ID:       p.FunctionResponse.ID,
				}})
			}
		}
		out.Contents = append(out.Contents, gc)
	}

	if len(req.Tools) > 0 {
		out.Tools = []googleToolList{{FunctionDeclarations: req.Tools}}
	}
	if req.SystemInstruction != "" {
		out.SystemInstruction = &googleContent{Parts: []googlePart{{Text: req.SystemInstruction}}}
	}
	if req.MaxTokens > 0 || req.Temperature > 0 {
		out.GenerationConfig = &googleGenConfig{
			MaxOutputTokens: req.MaxTokens,
			Temperature:     req.Temperature,
		}
	}

	return json.Marshal(out)
}

// ParseResponse accepts the three physical shapes. Every response unit is
// processed in order; the finish reason is the last non-empty occurrence.
// A stream line that fails to parse is skipped rather than aborting the
// whole response.
func (a *GoogleAdapter) ParseResponse(body []byte) (*Parsed, error) {
	parsed := &Parsed{}
	units := 0

	accumulate := func(payload []byte) bool {
		var resp googleResponse
		if err := json.Unmarshal(payload, &resp); err != nil {
			return true // skip unparseable unit, keep scanning
		}
		units++
		a.accumulate(&resp, parsed)
		return true
	}

	trimmed := bytes.TrimLeft(body, " \t\r\n")
	switch {
	case looksLikeStream(body):
		scanDataLines(body, accumulate)
	case bytes.HasPrefix(trimmed, []byte("[")):
		var responses []json.RawMessage
		if err := json.Unmarshal(trimmed, &responses); err != nil {
			return nil, &MalformedResponseError{APIError: APIError{
				Message: "response body is not a JSON array", Cause: err,
			}}
		}
		for _, raw := range responses {
			accumulate(raw)
		}
	default:
		accumulate(trimmed)
	}

	if units == 0 {
		return nil, &MalformedResponseError{APIError: APIError{
			Message: "no parseable response unit found",
		}}
	}

	// Many providers omit the finish reason on the final informational
	// chunk; textual content with no explicit finish reason means STOP.
	if parsed.FinishReason == "" && len(parsed.TextParts) > 0 {
		parsed.FinishReason = FinishStop
	}

	return parsed, nil
}

func (a *GoogleAdapter) accumulate(resp *googleResponse, parsed *Parsed) {
	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			switch {
			case p.FunctionCall != nil:
				call := FunctionCall{
					ID:   p.FunctionCall.ID,
					Name: p.FunctionCall.Name,
					Args: p.FunctionCall.Args,
				}
				if call.Args == nil {
					call.Args = map[string]interface{}{}
				}
				EnsureCallID(&call)
				parsed.Calls = append(parsed.Calls, call)
			case p.Thought:
				parsed.Thoughts = append(parsed.Thoughts, p.Text)
			case p.Text != "":
				parsed.TextParts = append(parsed.TextParts, p.Text)
			}
		}
		if cand.FinishReason != "" {
			parsed.FinishReason = cand.FinishReason
		}
	}
	if resp.UsageMetadata != nil {
		parsed.Usage = Usage{
			InputTokens:  resp.UsageMetadata.PromptTokenCount,
			OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
		}
	}
}
