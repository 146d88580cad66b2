package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/juniperhq/coxswain/llmwire"
)

// ToolErrorKind discriminates tool failure classes. Lookup misses, bad
// arguments, execution failures, and cancellation are each actionable
// differently by the model, so they never collapse into one kind.
type ToolErrorKind string

const (
	ToolErrorNotFound    ToolErrorKind = "not_found"
	ToolErrorInvalidArgs ToolErrorKind = "invalid_args"
	ToolErrorExecution   ToolErrorKind = "execution"
	ToolErrorCancelled   ToolErrorKind = "cancelled"
)

// ToolError describes a tool failure as data. It never crosses the tool
// boundary as a panic or a bare error.
type ToolError struct {
	Kind    ToolErrorKind `json:"kind"`
	Message string        `json:"message"`
}

// ToolResult is the outcome of one tool invocation. Immutable after
// creation; produced exactly once per function call.
type ToolResult struct {
	Content     string     `json:"content"`
	DisplayText string     `json:"display_text,omitempty"`
	Err         *ToolError `json:"error,omitempty"`
}

// IsError reports whether the result carries a failure.
func (r ToolResult) IsError() bool { return r.Err != nil }

// ErrorResult builds a ToolResult carrying a typed failure.
func ErrorResult(kind ToolErrorKind, message string) ToolResult {
	return ToolResult{
		Content: message,
		Err:     &ToolError{Kind: kind, Message: message},
	}
}

// Toolset is the external tool capability the coordinator consumes. Invoke
// must never panic; all failure comes back as a ToolResult.
type Toolset interface {
	HasTool(name string) bool
	Declarations() []llmwire.FunctionDeclaration
	Invoke(ctx context.Context, name string, args map[string]interface{}) ToolResult
}

// ToolFunc is the execution half of a registered tool.
type ToolFunc func(ctx context.Context, args map[string]interface{}) (string, error)

type registeredTool struct {
	decl llmwire.FunctionDeclaration
	fn   ToolFunc
}

// Registry is a mutable Toolset for hosts that assemble their tools in
// process. Registration is latest-wins.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]registeredTool
	order []string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]registeredTool)}
}

// Register adds or replaces a tool.
func (r *Registry) Register(decl llmwire.FunctionDeclaration, fn ToolFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[decl.Name]; !exists {
		r.order = append(r.order, decl.Name)
	}
	r.tools[decl.Name] = registeredTool{decl: decl, fn: fn}
}

// HasTool reports whether a tool is registered.
func (r *Registry) HasTool(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Declarations returns tool declarations in registration order.
func (r *Registry) Declarations() []llmwire.FunctionDeclaration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	decls := make([]llmwire.FunctionDeclaration, 0, len(r.order))
	for _, name := range r.order {
		decls = append(decls, r.tools[name].decl)
	}
	return decls
}

// Invoke runs a registered tool. Panics inside the tool are recovered and
// returned as execution errors so the turn loop keeps going.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]interface{}) (result ToolResult) {
	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return ErrorResult(ToolErrorNotFound, "unknown tool: "+name)
	}

	defer func() {
		if rec := recover(); rec != nil {
			result = ErrorResult(ToolErrorExecution, fmt.Sprintf("tool %s panicked: %v", name, rec))
		}
	}()

	output, err := tool.fn(ctx, args)
	if err != nil {
		if ctx.Err() != nil {
			return ErrorResult(ToolErrorCancelled, "tool cancelled: "+name)
		}
		return ErrorResult(ToolErrorExecution, err.Error())
	}
	return ToolResult{Content: output}
}
