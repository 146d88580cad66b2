// Package llmwire normalizes the wire formats of several LLM providers into
// one canonical conversation representation.
package llmwire

import (
	"fmt"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Role identifies who produced a content entry in a conversation.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// PartKind is the discriminator tag for Part.
type PartKind string

const (
	PartText             PartKind = "text"
	PartFunctionCall     PartKind = "function_call"
	PartFunctionResponse PartKind = "function_response"
)

// FunctionCall is a model-initiated tool invocation.
type FunctionCall struct {
	ID   string                 `json:"id,omitempty"`
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
}

// FunctionResponse carries the result of a tool invocation back to the model.
// The response payload is always a map, normalized by the caller to
// {"output": ...} on success or {"error": ...} on failure.
type FunctionResponse struct {
	ID       string                 `json:"id,omitempty"`
	Name     string                 `json:"name"`
	Response map[string]interface{} `json:"response"`
}

// Part is a tagged union representing one part of a content entry.
type Part struct {
	Kind             PartKind          `json:"kind"`
	Text             string            `json:"text,omitempty"`
	Thought          bool              `json:"thought,omitempty"`
	FunctionCall     *FunctionCall     `json:"function_call,omitempty"`
	FunctionResponse *FunctionResponse `json:"function_response,omitempty"`
}

// TextPart creates a text Part.
func TextPart(text string) Part {
	return Part{Kind: PartText, Text: text}
}

// ThoughtPart creates a reasoning Part. Thought parts stay in history but are
// never surfaced to the caller as user-visible text.
func ThoughtPart(text string) Part {
	return Part{Kind: PartText, Text: text, Thought: true}
}

// CallPart creates a function call Part.
func CallPart(call FunctionCall) Part {
	return Part{Kind: PartFunctionCall, FunctionCall: &call}
}

// ResponsePart creates a function response Part.
func ResponsePart(resp FunctionResponse) Part {
	return Part{Kind: PartFunctionResponse, FunctionResponse: &resp}
}

// Content is one entry in the conversation history.
type Content struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// UserText creates a user Content with a single text part.
func UserText(text string) Content {
	return Content{Role: RoleUser, Parts: []Part{TextPart(text)}}
}

// ModelText creates a model Content with a single text part.
func ModelText(text string) Content {
	return Content{Role: RoleModel, Parts: []Part{TextPart(text)}}
}

// Text returns the concatenation of all non-thought text parts.
func (c Content) Text() string {
	var sb strings.Builder
	for _, p := range c.Parts {
		if p.Kind == PartText && !p.Thought {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// FunctionCalls extracts all function call parts in declared order.
func (c Content) FunctionCalls() []FunctionCall {
	var calls []FunctionCall
	for _, p := range c.Parts {
		if p.Kind == PartFunctionCall && p.FunctionCall != nil {
			calls = append(calls, *p.FunctionCall)
		}
	}
	return calls
}

// FunctionDeclaration describes a tool to the model. Parameters is a JSON
// Schema object and is passed through to providers without renaming fields.
type FunctionDeclaration struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// Request is the canonical, provider-agnostic request shape.
type Request struct {
	Model             string                `json:"model"`
	Contents          []Content             `json:"contents"`
	Tools             []FunctionDeclaration `json:"tools,omitempty"`
	SystemInstruction string                `json:"system_instruction,omitempty"`
	MaxTokens         int                   `json:"max_tokens,omitempty"`
	Temperature       float64               `json:"temperature,omitempty"`
}

// Finish reasons in canonical vocabulary. Adapters map provider-native
// values onto these.
const (
	FinishStop          = "STOP"
	FinishMaxTokens     = "MAX_TOKENS"
	FinishSafety        = "SAFETY"
	FinishMalformedCall = "MALFORMED_FUNCTION_CALL"
)

// Usage tracks token consumption reported by the provider.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Add returns the sum of u and other.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
	}
}

// Parsed is the normalized result of parsing one provider response body.
// Calls are collected before any is executed, preserving declared order.
type Parsed struct {
	TextParts    []string       `json:"text_parts,omitempty"`
	Thoughts     []string       `json:"thoughts,omitempty"`
	Calls        []FunctionCall `json:"calls,omitempty"`
	FinishReason string         `json:"finish_reason,omitempty"`
	Usage        Usage          `json:"usage"`
}

// Text returns all user-visible text fragments joined together.
func (p *Parsed) Text() string {
	return strings.Join(p.TextParts, "")
}

const callIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// EnsureCallID fills in a synthesized correlation id when the provider omits
// one. Uniqueness is probabilistic and only needs to hold within a single
// conversation.
func EnsureCallID(call *FunctionCall) {
	if call.ID != "" {
		return
	}
	suffix, err := gonanoid.Generate(callIDAlphabet, 8)
	if err != nil {
		suffix = fmt.Sprintf("%08x", time.Now().UnixNano()&0xffffffff)
	}
	call.ID = fmt.Sprintf("%s-%d-%s", call.Name, time.Now().UnixNano(), suffix)
}
