package agent

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/juniperhq/coxswain/llmwire"
)

// Phase is the engine's position in the turn state machine.
type Phase string

const (
	PhaseAwaitingRequest  Phase = "awaiting_request"
	PhaseRequestSent      Phase = "request_sent"
	PhaseResponseReceived Phase = "response_received"
	PhaseToolCallsPending Phase = "tool_calls_pending"
	PhaseTerminating      Phase = "terminating"
)

// DefaultMaxTurns is the hard turn ceiling. It is a safety bound against
// infinite tool-call continuation, not a tuning knob.
const DefaultMaxTurns = 100

// CancelFlag is a cooperative cancellation signal shared between the turn
// loop and any recovery loops. Once raised it is never lowered.
type CancelFlag struct {
	flag atomic.Bool
}

// Cancel raises the flag.
func (f *CancelFlag) Cancel() { f.flag.Store(true) }

// Cancelled reports whether the flag has been raised.
func (f *CancelFlag) Cancelled() bool { return f.flag.Load() }

// Caller issues one generation request. *llmwire.Client satisfies it; tests
// substitute scripted responses.
type Caller interface {
	Complete(ctx context.Context, provider, credential string, req llmwire.Request) (*llmwire.Parsed, error)
}

// EngineConfig holds per-session engine settings.
type EngineConfig struct {
	Provider            string
	SystemInstruction   string
	MaxTurns            int // 0 = DefaultMaxTurns
	MaxTokens           int
	Temperature         float64
	EnableLoopDetection bool
	LoopWindow          int
	ContextWindow       int // 0 = catalog lookup by model
	Truncation          TruncationLimits
}

// DefaultEngineConfig returns the default engine settings.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MaxTurns:            DefaultMaxTurns,
		EnableLoopDetection: true,
		LoopWindow:          10,
	}
}

// Engine drives one conversation: it issues requests, feeds responses
// through the parser, runs requested tools via the Coordinator, and decides
// each turn whether to continue, terminate, or fail. Two engines share no
// mutable state and may run concurrently; within one engine the turn loop
// serializes all history writes.
type Engine struct {
	id      string
	caller  Caller
	creds   Credentials
	tools   Toolset
	coord   *Coordinator
	history *History
	emitter *Emitter
	cancel  *CancelFlag
	cfg     EngineConfig

	mu    sync.Mutex
	phase Phase
	usage llmwire.Usage
}

// NewEngine creates an Engine. A nil config uses defaults.
func NewEngine(caller Caller, creds Credentials, tools Toolset, config *EngineConfig) *Engine {
	cfg := DefaultEngineConfig()
	if config != nil {
		cfg = *config
		if cfg.MaxTurns <= 0 {
			cfg.MaxTurns = DefaultMaxTurns
		}
		if cfg.LoopWindow <= 0 {
			cfg.LoopWindow = 10
		}
	}

	id := uuid.New().String()
	history := NewHistory()
	emitter := NewEmitter(id, 256)

	return &Engine{
		id:      id,
		caller:  caller,
		creds:   creds,
		tools:   tools,
		coord:   NewCoordinator(tools, history, emitter, cfg.Truncation),
		history: history,
		emitter: emitter,
		cancel:  &CancelFlag{},
		cfg:     cfg,
		phase:   PhaseAwaitingRequest,
	}
}

// ID returns the session identifier.
func (e *Engine) ID() string { return e.id }

// Events returns the event channel for the host application.
func (e *Engine) Events() <-chan Event { return e.emitter.Events() }

// History returns the owned conversation log.
func (e *Engine) History() *History { return e.history }

// Cancel requests cooperative termination between turns.
func (e *Engine) Cancel() { e.cancel.Cancel() }

// CancelFlag exposes the shared cancellation flag so recovery loops can
// honor the same signal.
func (e *Engine) CancelFlag() *CancelFlag { return e.cancel }

// Phase returns the engine's current state-machine phase.
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// Usage returns token consumption accumulated across all turns.
func (e *Engine) Usage() llmwire.Usage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.usage
}

// Close closes the event channel.
func (e *Engine) Close() { e.emitter.Close() }

func (e *Engine) setPhase(p Phase) {
	e.mu.Lock()
	e.phase = p
	e.mu.Unlock()
}

// Submit runs one user message through the turn loop until a terminal event
// is emitted: Completed, Failed, or CredentialsExhausted, exactly one per
// submission. The returned error mirrors the Failed event for callers that
// prefer error values over the event stream.
func (e *Engine) Submit(ctx context.Context, userMessage string) error {
	intent := DetectIntent(userMessage)
	log.Info().
		Str("session_id", e.id).
		Str("intent", string(intent)).
		Int("history_len", e.history.Len()).
		Msg("processing user message")

	e.history.Append(llmwire.UserText(userMessage))

	for turn := 1; ; turn++ {
		if turn > e.cfg.MaxTurns {
			return e.fail("Maximum number of turns reached")
		}
		if e.cancel.Cancelled() {
			return e.fail("cancelled")
		}
		select {
		case <-ctx.Done():
			return e.fail("context cancelled")
		default:
		}

		parsed, err := e.completeTurn(ctx, turn)
		if err != nil {
			if err == ErrExhausted {
				e.terminate(Event{Kind: EventCredentialsExhausted, Message: "no usable credentials remain"})
				return ErrExhausted
			}
			return e.fail(err.Error())
		}

		e.setPhase(PhaseResponseReceived)
		e.mu.Lock()
		e.usage = e.usage.Add(parsed.Usage)
		e.mu.Unlock()

		// Thought fragments were consumed by the parser; only user-visible
		// text reaches the event stream.
		for _, text := range parsed.TextParts {
			e.emitter.Emit(Event{Kind: EventTextChunk, Text: text})
		}

		if len(parsed.Calls) > 0 {
			e.setPhase(PhaseToolCallsPending)
			e.runToolRound(ctx, parsed)
			e.checkContextUsage()
			e.setPhase(PhaseAwaitingRequest)
			continue
		}

		e.setPhase(PhaseTerminating)
		return e.finishTurn(parsed)
	}
}

// completeTurn acquires a credential and issues one generation request,
// rotating keys on rate limits. Rotation does not consume a turn; it is
// bounded by the credential pool instead.
func (e *Engine) completeTurn(ctx context.Context, turn int) (*llmwire.Parsed, error) {
	for {
		key, err := e.creds.NextKey()
		if err != nil {
			return nil, ErrExhausted
		}

		req := llmwire.Request{
			Model:             e.creds.CurrentModel(),
			Contents:          e.history.Snapshot(),
			Tools:             e.tools.Declarations(),
			SystemInstruction: e.cfg.SystemInstruction,
			MaxTokens:         e.cfg.MaxTokens,
			Temperature:       e.cfg.Temperature,
		}

		e.setPhase(PhaseRequestSent)
		parsed, err := e.caller.Complete(ctx, e.cfg.Provider, key, req)
		if err != nil {
			if e.creds.IsRateLimitError(err) {
				log.Warn().Str("session_id", e.id).Int("turn", turn).Msg("rate limited, rotating credential")
				continue
			}
			return nil, err
		}
		return parsed, nil
	}
}

// runToolRound appends the model's turn and executes its calls in declared
// order. Later calls may depend on earlier side effects, so there is no
// parallelism here.
func (e *Engine) runToolRound(ctx context.Context, parsed *llmwire.Parsed) {
	if text := parsed.Text(); text != "" {
		e.history.Append(llmwire.ModelText(text))
	}

	for _, call := range parsed.Calls {
		e.coord.Execute(ctx, call)
	}

	if e.cfg.EnableLoopDetection && DetectLoop(e.history.Snapshot(), e.cfg.LoopWindow) {
		warning := fmt.Sprintf("The last %d tool calls follow a repeating pattern. Try a different approach.", e.cfg.LoopWindow)
		e.history.Append(llmwire.UserText(warning))
		e.emitter.Emit(Event{Kind: EventLoopDetected, Message: warning})
	}
}

// finishTurn branches on the finish reason of a response with no tool calls.
func (e *Engine) finishTurn(parsed *llmwire.Parsed) error {
	switch parsed.FinishReason {
	case llmwire.FinishStop:
		if text := parsed.Text(); text != "" {
			e.history.Append(llmwire.ModelText(text))
		}
		e.terminate(Event{Kind: EventCompleted})
		return nil
	case llmwire.FinishMaxTokens:
		return e.fail("truncated: response hit the output token limit")
	case llmwire.FinishSafety:
		return e.fail("blocked: response stopped by the provider's safety filter")
	case llmwire.FinishMalformedCall:
		return e.fail("malformed function call in response")
	default:
		// A model turn must produce text, a tool call, or an explicit stop.
		return e.fail("no finish reason or tool calls in response")
	}
}

func (e *Engine) fail(message string) error {
	e.terminate(Event{Kind: EventFailed, Message: message})
	return fmt.Errorf("%s", message)
}

func (e *Engine) terminate(event Event) {
	e.setPhase(PhaseTerminating)
	log.Info().
		Str("session_id", e.id).
		Str("outcome", string(event.Kind)).
		Str("message", event.Message).
		Msg("turn loop finished")
	e.emitter.EmitTerminal(event)
	e.setPhase(PhaseAwaitingRequest)
}

// checkContextUsage emits a warning when approximate token usage passes 80%
// of the model's context window.
func (e *Engine) checkContextUsage() {
	window := e.cfg.ContextWindow
	if window == 0 {
		if info := llmwire.GetModelInfo(e.creds.CurrentModel()); info != nil {
			window = info.ContextWindow
		}
	}
	if window <= 0 {
		return
	}

	totalChars := 0
	for _, content := range e.history.Snapshot() {
		for _, part := range content.Parts {
			switch part.Kind {
			case llmwire.PartText:
				totalChars += len(part.Text)
			case llmwire.PartFunctionResponse:
				if part.FunctionResponse != nil {
					for _, v := range part.FunctionResponse.Response {
						if s, ok := v.(string); ok {
							totalChars += len(s)
						}
					}
				}
			}
		}
	}

	approxTokens := totalChars / 4
	if approxTokens > int(float64(window)*0.8) {
		pct := approxTokens * 100 / window
		e.emitter.Emit(Event{
			Kind:    EventWarning,
			Message: fmt.Sprintf("Context usage at ~%d%% of the model's context window", pct),
		})
	}
}
