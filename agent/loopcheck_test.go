package agent

import (
	"fmt"
	"testing"

	"github.com/juniperhq/coxswain/llmwire"
)

func historyWithCalls(calls ...llmwire.FunctionCall) []llmwire.Content {
	var history []llmwire.Content
	for _, call := range calls {
		history = append(history,
			llmwire.Content{Role: llmwire.RoleModel, Parts: []llmwire.Part{llmwire.CallPart(call)}},
			llmwire.Content{Role: llmwire.RoleUser, Parts: []llmwire.Part{llmwire.ResponsePart(llmwire.FunctionResponse{
				ID: call.ID, Name: call.Name, Response: map[string]interface{}{"output": "ok"},
			})}},
		)
	}
	return history
}

func TestDetectLoopIdenticalCalls(t *testing.T) {
	var calls []llmwire.FunctionCall
	for i := 0; i < 6; i++ {
		calls = append(calls, llmwire.FunctionCall{ID: fmt.Sprintf("c%d", i), Name: "shell", Args: map[string]interface{}{"cmd": "ls"}})
	}
	if !DetectLoop(historyWithCalls(calls...), 6) {
		t.Error("six identical calls must register as a loop")
	}
}

func TestDetectLoopAlternatingPattern(t *testing.T) {
	var calls []llmwire.FunctionCall
	for i := 0; i < 6; i++ {
		cmd := "ls"
		if i%2 == 1 {
			cmd = "pwd"
		}
		calls = append(calls, llmwire.FunctionCall{ID: fmt.Sprintf("c%d", i), Name: "shell", Args: map[string]interface{}{"cmd": cmd}})
	}
	if !DetectLoop(historyWithCalls(calls...), 6) {
		t.Error("alternating two-call pattern must register as a loop")
	}
}

func TestDetectLoopVariedCalls(t *testing.T) {
	var calls []llmwire.FunctionCall
	for i := 0; i < 6; i++ {
		calls = append(calls, llmwire.FunctionCall{ID: fmt.Sprintf("c%d", i), Name: "shell", Args: map[string]interface{}{"cmd": fmt.Sprintf("step-%d", i)}})
	}
	if DetectLoop(historyWithCalls(calls...), 6) {
		t.Error("distinct calls must not register as a loop")
	}
}

func TestDetectLoopShortHistory(t *testing.T) {
	call := llmwire.FunctionCall{ID: "c1", Name: "shell", Args: map[string]interface{}{"cmd": "ls"}}
	if DetectLoop(historyWithCalls(call, call), 6) {
		t.Error("fewer calls than the window must never trip detection")
	}
}

func TestDetectLoopSameNameDifferentArgs(t *testing.T) {
	var calls []llmwire.FunctionCall
	for i := 0; i < 6; i++ {
		calls = append(calls, llmwire.FunctionCall{ID: fmt.Sprintf("c%d", i), Name: "read_file", Args: map[string]interface{}{"path": fmt.Sprintf("file%d.go", i)}})
	}
	if DetectLoop(historyWithCalls(calls...), 6) {
		t.Error("same tool over different arguments is progress, not a loop")
	}
}
