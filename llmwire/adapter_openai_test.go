package llmwire

import (
	"encoding/json"
	"testing"
)

func TestOpenAIConvertRolePairing(t *testing.T) {
	req := Request{
		Model:             "gpt-5.2",
		SystemInstruction: "be brief",
		Contents: []Content{
			UserText("run the tests"),
			{Role: RoleModel, Parts: []Part{
				TextPart("Running."),
				CallPart(FunctionCall{ID: "call_1", Name: "shell", Args: map[string]interface{}{"command": "go test"}}),
			}},
			{Role: RoleUser, Parts: []Part{
				ResponsePart(FunctionResponse{ID: "call_1", Name: "shell", Response: map[string]interface{}{"output": "ok"}}),
			}},
		},
	}

	body, err := NewOpenAIAdapter("").ConvertRequest(req)
	if err != nil {
		t.Fatalf("ConvertRequest: %v", err)
	}

	var wire openaiRequest
	if err := json.Unmarshal(body, &wire); err != nil {
		t.Fatalf("wire body: %v", err)
	}

	// system, user, assistant-with-tool_calls, tool
	if len(wire.Messages) != 4 {
		t.Fatalf("messages = %d, want 4: %+v", len(wire.Messages), wire.Messages)
	}
	if wire.Messages[0].Role != "system" {
		t.Errorf("first message role = %q", wire.Messages[0].Role)
	}
	asst := wire.Messages[2]
	if asst.Role != "assistant" {
		t.Errorf("model role must map to assistant, got %q", asst.Role)
	}
	if len(asst.ToolCalls) != 1 || asst.ToolCalls[0].Function.Name != "shell" {
		t.Fatalf("assistant tool_calls = %+v", asst.ToolCalls)
	}
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(asst.ToolCalls[0].Function.Arguments), &args); err != nil {
		t.Fatalf("arguments must be a JSON string: %v", err)
	}
	toolMsg := wire.Messages[3]
	if toolMsg.Role != "tool" || toolMsg.ToolCallID != "call_1" {
		t.Errorf("tool message = %+v, want tool role paired by call id", toolMsg)
	}
}

func TestOpenAIParseToolCalls(t *testing.T) {
	body := `{
	  "choices": [{
	    "message": {
	      "content": "",
	      "tool_calls": [
	        {"id": "call_a", "type": "function", "function": {"name": "read_file", "arguments": "{\"path\":\"go.mod\"}"}},
	        {"id": "call_b", "type": "function", "function": {"name": "shell", "arguments": "{\"command\":\"ls\"}"}}
	      ]
	    },
	    "finish_reason": "tool_calls"
	  }],
	  "usage": {"prompt_tokens": 20, "completion_tokens": 5}
	}`

	parsed, err := NewOpenAIAdapter("").ParseResponse([]byte(body))
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if len(parsed.Calls) != 2 {
		t.Fatalf("calls = %d", len(parsed.Calls))
	}
	if parsed.Calls[0].ID != "call_a" || parsed.Calls[1].ID != "call_b" {
		t.Errorf("provider call ids must be preserved: %+v", parsed.Calls)
	}
	if parsed.Calls[0].Args["path"] != "go.mod" {
		t.Errorf("args = %+v", parsed.Calls[0].Args)
	}
	if parsed.Usage.InputTokens != 20 {
		t.Errorf("usage = %+v", parsed.Usage)
	}
}

func TestOpenAIParseFinishReasons(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"stop", FinishStop},
		{"length", FinishMaxTokens},
		{"content_filter", FinishSafety},
	}
	for _, tt := range tests {
		body := `{"choices":[{"message":{"content":"x"},"finish_reason":"` + tt.raw + `"}]}`
		parsed, err := NewOpenAIAdapter("").ParseResponse([]byte(body))
		if err != nil {
			t.Fatalf("%s: %v", tt.raw, err)
		}
		if parsed.FinishReason != tt.want {
			t.Errorf("%s -> %q, want %q", tt.raw, parsed.FinishReason, tt.want)
		}
	}
}

func TestOpenAIParseMalformedArguments(t *testing.T) {
	body := `{"choices":[{"message":{"content":"","tool_calls":[
	  {"id":"c","type":"function","function":{"name":"shell","arguments":"not json"}}
	]},"finish_reason":"tool_calls"}]}`

	parsed, err := NewOpenAIAdapter("").ParseResponse([]byte(body))
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if parsed.FinishReason != FinishMalformedCall {
		t.Errorf("finish reason = %q, want MALFORMED_FUNCTION_CALL", parsed.FinishReason)
	}
	if len(parsed.Calls) != 0 {
		t.Errorf("malformed call must not be surfaced: %+v", parsed.Calls)
	}
}

func TestAnthropicConvertPairing(t *testing.T) {
	req := Request{
		Model: "claude-opus-4-6",
		Tools: []FunctionDeclaration{{
			Name:       "shell",
			Parameters: map[string]interface{}{"type": "object"},
		}},
		Contents: []Content{
			UserText("hi"),
			{Role: RoleModel, Parts: []Part{CallPart(FunctionCall{ID: "toolu_1", Name: "shell", Args: map[string]interface{}{"command": "ls"}})}},
			{Role: RoleUser, Parts: []Part{ResponsePart(FunctionResponse{ID: "toolu_1", Name: "shell", Response: map[string]interface{}{"output": "ok"}})}},
		},
	}

	body, err := NewAnthropicAdapter("").ConvertRequest(req)
	if err != nil {
		t.Fatalf("ConvertRequest: %v", err)
	}

	var wire anthropicRequest
	if err := json.Unmarshal(body, &wire); err != nil {
		t.Fatalf("wire body: %v", err)
	}
	if wire.MaxTokens <= 0 {
		t.Error("max_tokens is required on the messages format")
	}
	if len(wire.Messages) != 3 {
		t.Fatalf("messages = %d", len(wire.Messages))
	}
	if wire.Messages[1].Role != "assistant" || wire.Messages[1].Content[0].Type != "tool_use" {
		t.Errorf("assistant turn = %+v", wire.Messages[1])
	}
	result := wire.Messages[2]
	if result.Role != "user" || result.Content[0].Type != "tool_result" || result.Content[0].ToolUseID != "toolu_1" {
		t.Errorf("tool result turn = %+v", result)
	}
	if wire.Tools[0].InputSchema["type"] != "object" {
		t.Error("input_schema must carry the declaration schema unchanged")
	}
}

func TestAnthropicParse(t *testing.T) {
	body := `{
	  "content": [
	    {"type": "thinking", "thinking": "hmm"},
	    {"type": "text", "text": "On it."},
	    {"type": "tool_use", "id": "toolu_9", "name": "edit_file", "input": {"path": "a.go"}}
	  ],
	  "stop_reason": "tool_use",
	  "usage": {"input_tokens": 9, "output_tokens": 4}
	}`

	parsed, err := NewAnthropicAdapter("").ParseResponse([]byte(body))
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if parsed.Text() != "On it." {
		t.Errorf("text = %q", parsed.Text())
	}
	if len(parsed.Thoughts) != 1 {
		t.Errorf("thinking block must be consumed, not surfaced")
	}
	if len(parsed.Calls) != 1 || parsed.Calls[0].ID != "toolu_9" {
		t.Fatalf("calls = %+v", parsed.Calls)
	}
	if parsed.FinishReason != FinishStop {
		t.Errorf("finish reason = %q", parsed.FinishReason)
	}
}

func TestOllamaParseSynthesizesCallIDs(t *testing.T) {
	body := `{
	  "message": {"role": "assistant", "content": "", "tool_calls": [
	    {"function": {"name": "list_dir", "arguments": {"path": "."}}}
	  ]},
	  "done": true, "done_reason": "stop"
	}`

	parsed, err := NewOllamaAdapter("").ParseResponse([]byte(body))
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if len(parsed.Calls) != 1 || parsed.Calls[0].ID == "" {
		t.Fatalf("calls = %+v, want a synthesized id", parsed.Calls)
	}
}

func TestOllamaLoopbackSkipsAuthHeader(t *testing.T) {
	_, headers, err := NewOllamaAdapter("").ResolveEndpoint("llama3.3", "secret")
	if err != nil {
		t.Fatalf("ResolveEndpoint: %v", err)
	}
	if _, ok := headers["Authorization"]; ok {
		t.Error("loopback endpoint must not send an authorization header")
	}

	_, headers, err = NewOllamaAdapter("https://ollama.example.com").ResolveEndpoint("llama3.3", "secret")
	if err != nil {
		t.Fatalf("ResolveEndpoint: %v", err)
	}
	if headers["Authorization"] != "Bearer secret" {
		t.Error("hosted endpoint must send a bearer token")
	}
}
