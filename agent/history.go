package agent

import (
	"sync"

	"github.com/juniperhq/coxswain/llmwire"
)

// History is the owned, append-only conversation log. It is mutated only by
// the Engine and the Coordinator; everything else reads snapshots. Entries
// are never modified or removed once appended, except by Reset.
type History struct {
	mu      sync.Mutex
	entries []llmwire.Content
}

// NewHistory creates an empty History.
func NewHistory() *History {
	return &History{entries: make([]llmwire.Content, 0)}
}

// Append adds entries to the end of the log.
func (h *History) Append(contents ...llmwire.Content) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, contents...)
}

// Snapshot returns a copy of the log for read-only use. Callers may hold the
// snapshot across turns without observing later appends.
func (h *History) Snapshot() []llmwire.Content {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]llmwire.Content, len(h.entries))
	copy(out, h.entries)
	return out
}

// Len returns the number of entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Reset clears the log for session reuse.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = h.entries[:0]
}

// UnpairedCalls returns the ids of function calls that have no matching
// function response later in the log. A healthy session returns none; a
// non-empty result means a turn failed mid tool round.
func (h *History) UnpairedCalls() []string {
	snapshot := h.Snapshot()

	responded := make(map[string]bool)
	for _, content := range snapshot {
		for _, part := range content.Parts {
			if part.Kind == llmwire.PartFunctionResponse && part.FunctionResponse != nil {
				responded[part.FunctionResponse.ID] = true
			}
		}
	}

	var unpaired []string
	for _, content := range snapshot {
		for _, call := range content.FunctionCalls() {
			if !responded[call.ID] {
				unpaired = append(unpaired, call.ID)
			}
		}
	}
	return unpaired
}
