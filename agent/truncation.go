package agent

import (
	"fmt"
	"strings"
)

// TruncationMode specifies how oversized tool output is cut.
type TruncationMode string

const (
	TruncateHeadTail TruncationMode = "head_tail"
	TruncateTail     TruncationMode = "tail"
)

const fallbackCharLimit = 30000

// TruncationLimits carries per-tool output limits. Zero-value maps fall back
// to a single character limit with head/tail mode.
type TruncationLimits struct {
	CharLimits map[string]int
	LineLimits map[string]int
	Modes      map[string]TruncationMode
}

// TruncateOutput applies character-based truncation.
func TruncateOutput(output string, maxChars int, mode TruncationMode) string {
	if len(output) <= maxChars {
		return output
	}
	removed := len(output) - maxChars

	switch mode {
	case TruncateTail:
		return fmt.Sprintf("[Output truncated: first %d characters removed.]\n\n", removed) +
			output[len(output)-maxChars:]
	default:
		half := maxChars / 2
		return output[:half] +
			fmt.Sprintf("\n\n[Output truncated: %d characters removed from the middle. "+
				"Re-run the tool with more targeted parameters to see specific parts.]\n\n", removed) +
			output[len(output)-half:]
	}
}

// TruncateLines applies line-based truncation with a head/tail split.
func TruncateLines(output string, maxLines int) string {
	lines := strings.Split(output, "\n")
	if len(lines) <= maxLines {
		return output
	}

	headCount := maxLines / 2
	tailCount := maxLines - headCount
	omitted := len(lines) - headCount - tailCount

	return strings.Join(lines[:headCount], "\n") +
		fmt.Sprintf("\n[... %d lines omitted ...]\n", omitted) +
		strings.Join(lines[len(lines)-tailCount:], "\n")
}

// Truncate applies the full pipeline for one tool: character truncation
// first (handles pathological cases), then line truncation for readability.
func (l TruncationLimits) Truncate(output, toolName string) string {
	maxChars, ok := l.CharLimits[toolName]
	if !ok || maxChars <= 0 {
		maxChars = fallbackCharLimit
	}
	mode, ok := l.Modes[toolName]
	if !ok {
		mode = TruncateHeadTail
	}
	result := TruncateOutput(output, maxChars, mode)

	if maxLines, ok := l.LineLimits[toolName]; ok && maxLines > 0 {
		result = TruncateLines(result, maxLines)
	}
	return result
}
