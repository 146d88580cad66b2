package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/juniperhq/coxswain/llmwire"
)

func newTestCoordinator(reg *Registry) (*Coordinator, *History, *Emitter) {
	history := NewHistory()
	emitter := NewEmitter("test", 64)
	return NewCoordinator(reg, history, emitter, TruncationLimits{}), history, emitter
}

func TestCoordinatorUnknownTool(t *testing.T) {
	coord, history, _ := newTestCoordinator(NewRegistry())

	result := coord.Execute(context.Background(), llmwire.FunctionCall{ID: "c1", Name: "nope"})
	if !result.IsError() || result.Err.Kind != ToolErrorNotFound {
		t.Fatalf("expected not_found error, got %+v", result)
	}

	// Even a failed call gets its response pair.
	snapshot := history.Snapshot()
	if len(snapshot) != 2 {
		t.Fatalf("expected call/response pair in history, got %d entries", len(snapshot))
	}
	resp := snapshot[1].Parts[0].FunctionResponse
	if resp == nil || resp.Response["error"] == nil {
		t.Errorf("failed call response not normalized to {error: ...}: %+v", snapshot[1])
	}
}

func TestCoordinatorInvalidArguments(t *testing.T) {
	reg := NewRegistry()
	reg.Register(llmwire.FunctionDeclaration{
		Name: "read_file",
		Parameters: map[string]interface{}{
			"type":     "object",
			"required": []interface{}{"path"},
			"properties": map[string]interface{}{
				"path": map[string]interface{}{"type": "string"},
			},
		},
	}, func(ctx context.Context, args map[string]interface{}) (string, error) {
		t.Fatal("tool must not run with invalid arguments")
		return "", nil
	})
	coord, _, _ := newTestCoordinator(reg)

	result := coord.Execute(context.Background(), llmwire.FunctionCall{
		ID:   "c1",
		Name: "read_file",
		Args: map[string]interface{}{"path": 42},
	})
	if !result.IsError() {
		t.Fatal("expected validation failure")
	}
	if result.Err.Kind != ToolErrorInvalidArgs {
		t.Errorf("expected invalid_args kind, got %s", result.Err.Kind)
	}
}

func TestCoordinatorExecutionError(t *testing.T) {
	reg := NewRegistry()
	reg.Register(llmwire.FunctionDeclaration{Name: "boom"}, func(ctx context.Context, args map[string]interface{}) (string, error) {
		return "", errors.New("disk full")
	})
	coord, _, _ := newTestCoordinator(reg)

	result := coord.Execute(context.Background(), llmwire.FunctionCall{ID: "c1", Name: "boom"})
	if !result.IsError() || result.Err.Kind != ToolErrorExecution {
		t.Fatalf("expected execution error, got %+v", result)
	}
	if result.Err.Message != "disk full" {
		t.Errorf("expected tool error message preserved, got %q", result.Err.Message)
	}
}

func TestCoordinatorPanicRecovered(t *testing.T) {
	reg := NewRegistry()
	reg.Register(llmwire.FunctionDeclaration{Name: "panicky"}, func(ctx context.Context, args map[string]interface{}) (string, error) {
		panic("oops")
	})
	coord, _, _ := newTestCoordinator(reg)

	result := coord.Execute(context.Background(), llmwire.FunctionCall{ID: "c1", Name: "panicky"})
	if !result.IsError() || result.Err.Kind != ToolErrorExecution {
		t.Fatalf("panic must come back as an execution error, got %+v", result)
	}
}

func TestCoordinatorCancellation(t *testing.T) {
	started := make(chan struct{})
	reg := NewRegistry()
	reg.Register(llmwire.FunctionDeclaration{Name: "slow"}, func(ctx context.Context, args map[string]interface{}) (string, error) {
		close(started)
		<-ctx.Done()
		return "", ctx.Err()
	})
	coord, history, _ := newTestCoordinator(reg)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	result := coord.Execute(ctx, llmwire.FunctionCall{ID: "c1", Name: "slow"})
	if !result.IsError() || result.Err.Kind != ToolErrorCancelled {
		t.Fatalf("expected cancelled kind, got %+v", result)
	}
	if history.Len() != 2 {
		t.Errorf("cancelled call still gets its history pair, got %d entries", history.Len())
	}
}

func TestCoordinatorSuccessNormalization(t *testing.T) {
	reg := NewRegistry()
	reg.Register(llmwire.FunctionDeclaration{Name: "echo"}, func(ctx context.Context, args map[string]interface{}) (string, error) {
		return "hello world", nil
	})
	coord, history, emitter := newTestCoordinator(reg)

	result := coord.Execute(context.Background(), llmwire.FunctionCall{ID: "c1", Name: "echo"})
	if result.IsError() {
		t.Fatalf("unexpected error: %+v", result.Err)
	}

	snapshot := history.Snapshot()
	if len(snapshot) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(snapshot))
	}
	if snapshot[0].Role != llmwire.RoleModel || snapshot[1].Role != llmwire.RoleUser {
		t.Errorf("unexpected pair roles: %s / %s", snapshot[0].Role, snapshot[1].Role)
	}
	resp := snapshot[1].Parts[0].FunctionResponse
	if resp.Response["output"] != "hello world" {
		t.Errorf("expected {output: hello world}, got %+v", resp.Response)
	}

	emitter.Close()
	var kinds []EventKind
	for event := range emitter.Events() {
		kinds = append(kinds, event.Kind)
	}
	if len(kinds) != 2 || kinds[0] != EventToolCallRequested || kinds[1] != EventToolCallCompleted {
		t.Errorf("unexpected event sequence: %v", kinds)
	}
}

func TestCoordinatorTruncatesOutput(t *testing.T) {
	big := make([]byte, 2000)
	for i := range big {
		big[i] = 'x'
	}
	reg := NewRegistry()
	reg.Register(llmwire.FunctionDeclaration{Name: "shell"}, func(ctx context.Context, args map[string]interface{}) (string, error) {
		return string(big), nil
	})
	history := NewHistory()
	emitter := NewEmitter("test", 64)
	coord := NewCoordinator(reg, history, emitter, TruncationLimits{
		CharLimits: map[string]int{"shell": 100},
	})

	coord.Execute(context.Background(), llmwire.FunctionCall{ID: "c1", Name: "shell"})

	resp := history.Snapshot()[1].Parts[0].FunctionResponse
	output := resp.Response["output"].(string)
	if len(output) >= 2000 {
		t.Errorf("output not truncated, %d chars", len(output))
	}
}

func TestCoordinatorSlowToolDoesNotBlockForever(t *testing.T) {
	reg := NewRegistry()
	reg.Register(llmwire.FunctionDeclaration{Name: "stuck"}, func(ctx context.Context, args map[string]interface{}) (string, error) {
		// Ignores cancellation entirely.
		time.Sleep(10 * time.Second)
		return "late", nil
	})
	coord, _, _ := newTestCoordinator(reg)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	result := coord.Execute(ctx, llmwire.FunctionCall{ID: "c1", Name: "stuck"})
	if time.Since(start) > 2*time.Second {
		t.Fatal("Execute blocked on a tool that ignores cancellation")
	}
	if !result.IsError() || result.Err.Kind != ToolErrorCancelled {
		t.Errorf("expected cancelled kind, got %+v", result)
	}
}
