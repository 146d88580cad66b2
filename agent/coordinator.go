package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"

	"github.com/juniperhq/coxswain/llmwire"
)

// Coordinator executes requested function calls and owns the bookkeeping
// that keeps history consistent: every executed call is appended together
// with exactly one response carrying the same correlation id.
type Coordinator struct {
	tools   Toolset
	history *History
	emitter *Emitter
	limits  TruncationLimits
}

// NewCoordinator creates a Coordinator bound to a toolset, history, and
// event emitter.
func NewCoordinator(tools Toolset, history *History, emitter *Emitter, limits TruncationLimits) *Coordinator {
	return &Coordinator{
		tools:   tools,
		history: history,
		emitter: emitter,
		limits:  limits,
	}
}

// Execute runs one function call to completion. The tool runs on its own
// goroutine so a slow tool cannot hold the caller's context; cancellation
// comes back as a cancellation-kind result, never an escaped error. The
// call/response pair is appended to history before Execute returns.
func (c *Coordinator) Execute(ctx context.Context, call llmwire.FunctionCall) ToolResult {
	c.emitter.Emit(Event{Kind: EventToolCallRequested, Call: &call, ToolName: call.Name})

	result := c.run(ctx, call)

	if result.IsError() {
		log.Warn().
			Str("tool", call.Name).
			Str("call_id", call.ID).
			Str("kind", string(result.Err.Kind)).
			Str("error", result.Err.Message).
			Msg("tool call failed")
	} else {
		log.Debug().
			Str("tool", call.Name).
			Str("call_id", call.ID).
			Int("output_bytes", len(result.Content)).
			Msg("tool call completed")
	}

	c.appendPair(call, result)
	c.emitter.Emit(Event{Kind: EventToolCallCompleted, ToolName: call.Name, Result: &result})
	return result
}

func (c *Coordinator) run(ctx context.Context, call llmwire.FunctionCall) ToolResult {
	if !c.tools.HasTool(call.Name) {
		return ErrorResult(ToolErrorNotFound, "unknown tool: "+call.Name)
	}
	if verr := c.validateArgs(call); verr != nil {
		return ErrorResult(ToolErrorInvalidArgs, verr.Error())
	}

	done := make(chan ToolResult, 1)
	go func() {
		done <- c.tools.Invoke(ctx, call.Name, call.Args)
	}()

	select {
	case result := <-done:
		if ctx.Err() != nil && !result.IsError() {
			return ErrorResult(ToolErrorCancelled, "tool cancelled: "+call.Name)
		}
		return result
	case <-ctx.Done():
		// The tool goroutine is abandoned; its eventual result is dropped.
		return ErrorResult(ToolErrorCancelled, "tool cancelled: "+call.Name)
	}
}

// validateArgs checks call arguments against the tool's declared JSON
// schema. A declaration without parameters accepts anything.
func (c *Coordinator) validateArgs(call llmwire.FunctionCall) error {
	var schema map[string]interface{}
	for _, decl := range c.tools.Declarations() {
		if decl.Name == call.Name {
			schema = decl.Parameters
			break
		}
	}
	if len(schema) == 0 {
		return nil
	}

	args := call.Args
	if args == nil {
		args = map[string]interface{}{}
	}
	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(args),
	)
	if err != nil {
		// An unloadable declared schema is the tool author's bug, not the
		// model's; let the call through rather than rejecting valid args.
		log.Warn().Str("tool", call.Name).Err(err).Msg("tool parameter schema failed to load")
		return nil
	}
	if result.Valid() {
		return nil
	}

	var problems []string
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return fmt.Errorf("invalid arguments for %s: %s", call.Name, strings.Join(problems, "; "))
}

// appendPair records the executed call and its result. The response payload
// is normalized to {"error": message} on failure and {"output": content} on
// success, never a raw error object.
func (c *Coordinator) appendPair(call llmwire.FunctionCall, result ToolResult) {
	var payload map[string]interface{}
	if result.IsError() {
		payload = map[string]interface{}{"error": result.Err.Message}
	} else {
		payload = map[string]interface{}{"output": c.limits.Truncate(result.Content, call.Name)}
	}

	c.history.Append(
		llmwire.Content{Role: llmwire.RoleModel, Parts: []llmwire.Part{llmwire.CallPart(call)}},
		llmwire.Content{Role: llmwire.RoleUser, Parts: []llmwire.Part{llmwire.ResponsePart(llmwire.FunctionResponse{
			ID:       call.ID,
			Name:     call.Name,
			Response: payload,
		})}},
	)
}
