package agent

import (
	"errors"
	"sync"

	"github.com/juniperhq/coxswain/llmwire"
)

// ErrExhausted signals that no usable credential remains. The engine
// surfaces this as its own terminal condition, distinct from other errors,
// because the caller can act on it (wait, rotate keys) in a way it cannot
// for a malformed response or a safety block.
var ErrExhausted = errors.New("no usable credentials remain")

// Credentials is the consumed credential-rotation capability.
type Credentials interface {
	// NextKey returns the next usable API key, or ErrExhausted.
	NextKey() (string, error)
	// CurrentModel returns the model id the active key should be used with.
	CurrentModel() string
	// IsRateLimitError reports whether an error should trigger rotation.
	IsRateLimitError(err error) bool
}

// StaticCredentials rotates through a fixed key list. Each rate-limited key
// is retired for the process lifetime; when the list empties, NextKey
// returns ErrExhausted.
type StaticCredentials struct {
	mu    sync.Mutex
	keys  []string
	model string
	index int
	dead  map[int]bool
}

// NewStaticCredentials creates a StaticCredentials over the given keys.
func NewStaticCredentials(model string, keys ...string) *StaticCredentials {
	return &StaticCredentials{
		keys:  keys,
		model: model,
		dead:  make(map[int]bool),
	}
}

// NextKey returns the current live key, or ErrExhausted when none remain.
func (c *StaticCredentials) NextKey() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := 0; i < len(c.keys); i++ {
		idx := (c.index + i) % len(c.keys)
		if !c.dead[idx] {
			c.index = idx
			return c.keys[idx], nil
		}
	}
	return "", ErrExhausted
}

// CurrentModel returns the configured model id.
func (c *StaticCredentials) CurrentModel() string {
	return c.model
}

// IsRateLimitError delegates to the wire-level taxonomy and retires the
// active key, so the next NextKey call rotates.
func (c *StaticCredentials) IsRateLimitError(err error) bool {
	if !llmwire.IsRateLimit(err) {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.keys) > 0 {
		c.dead[c.index] = true
		c.index = (c.index + 1) % len(c.keys)
	}
	return true
}
