package agent

import (
	"sync"
	"time"

	"github.com/juniperhq/coxswain/llmwire"
)

// EventKind identifies the type of session event.
type EventKind string

const (
	EventTextChunk            EventKind = "text_chunk"
	EventToolCallRequested    EventKind = "tool_call_requested"
	EventToolCallCompleted    EventKind = "tool_call_completed"
	EventLoopDetected         EventKind = "loop_detected"
	EventWarning              EventKind = "warning"
	EventCredentialsExhausted EventKind = "credentials_exhausted"
	EventFailed               EventKind = "failed"
	EventCompleted            EventKind = "completed"
)

// IsTerminal reports whether the event kind ends a submission. Every
// submission ends with exactly one terminal event.
func (k EventKind) IsTerminal() bool {
	switch k {
	case EventCredentialsExhausted, EventFailed, EventCompleted:
		return true
	}
	return false
}

// Event is a tagged event emitted by the turn engine. Only the fields
// relevant to the Kind are populated.
type Event struct {
	Kind      EventKind             `json:"kind"`
	Timestamp time.Time             `json:"timestamp"`
	SessionID string                `json:"session_id"`
	Text      string                `json:"text,omitempty"`      // text_chunk
	Call      *llmwire.FunctionCall `json:"call,omitempty"`      // tool_call_requested
	ToolName  string                `json:"tool_name,omitempty"`
	Result    *ToolResult           `json:"result,omitempty"`    // tool_call_completed
	Message   string                `json:"message,omitempty"`   // warnings and terminals
}

// Emitter delivers events to the host application via a buffered channel.
// All inner components publish here; the host subscribes once.
type Emitter struct {
	sessionID string
	ch        chan Event
	closed    bool
	mu        sync.Mutex
}

// NewEmitter creates an Emitter with a buffered channel.
func NewEmitter(sessionID string, bufferSize int) *Emitter {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Emitter{
		sessionID: sessionID,
		ch:        make(chan Event, bufferSize),
	}
}

// Emit sends a non-terminal event. If the channel is full the event is
// dropped rather than blocking the turn loop.
func (e *Emitter) Emit(event Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	event.Timestamp = time.Now()
	event.SessionID = e.sessionID
	select {
	case e.ch <- event:
	default:
	}
}

// EmitTerminal sends a terminal event, blocking until the host accepts it.
// Terminal events must never be dropped; the caller is owed exactly one.
func (e *Emitter) EmitTerminal(event Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	event.Timestamp = time.Now()
	event.SessionID = e.sessionID
	e.ch <- event
}

// Events returns the read-only event channel.
func (e *Emitter) Events() <-chan Event {
	return e.ch
}

// Close closes the event channel. Safe to call multiple times.
func (e *Emitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.ch)
	}
}
