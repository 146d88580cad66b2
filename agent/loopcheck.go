package agent

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/juniperhq/coxswain/llmwire"
)

// callSignature computes a deterministic signature for a function call
// (name + hash of arguments).
func callSignature(call llmwire.FunctionCall) string {
	raw, _ := json.Marshal(call.Args)
	h := sha256.Sum256(raw)
	return fmt.Sprintf("%s:%x", call.Name, h[:8])
}

// lastCallSignatures extracts signatures from the most recent function calls
// in the history, in chronological order.
func lastCallSignatures(history []llmwire.Content, count int) []string {
	var sigs []string
	for i := len(history) - 1; i >= 0 && len(sigs) < count; i-- {
		if history[i].Role != llmwire.RoleModel {
			continue
		}
		calls := history[i].FunctionCalls()
		for j := len(calls) - 1; j >= 0 && len(sigs) < count; j-- {
			sigs = append(sigs, callSignature(calls[j]))
		}
	}
	for i, j := 0, len(sigs)-1; i < j; i, j = i+1, j-1 {
		sigs[i], sigs[j] = sigs[j], sigs[i]
	}
	return sigs
}

// DetectLoop checks whether the last windowSize tool calls follow a
// repeating pattern of length 1, 2, or 3. A detected loop is a strong signal
// the model is stuck and needs steering before the turn ceiling cuts it off.
func DetectLoop(history []llmwire.Content, windowSize int) bool {
	sigs := lastCallSignatures(history, windowSize)
	if len(sigs) < windowSize {
		return false
	}

	for patternLen := 1; patternLen <= 3; patternLen++ {
		if windowSize%patternLen != 0 {
			continue
		}
		pattern := sigs[:patternLen]
		allMatch := true
		for i := patternLen; i < windowSize && allMatch; i += patternLen {
			for j := 0; j < patternLen; j++ {
				if sigs[i+j] != pattern[j] {
					allMatch = false
					break
				}
			}
		}
		if allMatch {
			return true
		}
	}
	return false
}
