package agent

import (
	"regexp"
	"strings"
)

// Intent classifies what a user message is asking the agent to do.
type Intent string

const (
	IntentDebug    Intent = "debug"
	IntentCreate   Intent = "create"
	IntentQuestion Intent = "question"
	IntentGeneral  Intent = "general"
)

// stackFrameRe matches error-stack indicators like "foo.js:12" or
// "main.go:42".
var stackFrameRe = regexp.MustCompile(`\b\w+\.\w+:\d+\b`)

// intentRule pairs a predicate with the intent it signals. Rules are
// evaluated in order and the first match wins, so precedence lives in the
// table, not in control flow: error-stack indicators beat the question-mark
// heuristic, and creation verbs beat a plain trailing question mark.
type intentRule struct {
	name   string
	match  func(lower string) bool
	intent Intent
}

var intentRules = []intentRule{
	{
		name: "stack frame",
		match: func(lower string) bool {
			return stackFrameRe.MatchString(lower)
		},
		intent: IntentDebug,
	},
	{
		name: "error keyword",
		match: containsAny(
			"error", "exception", "traceback", "stack trace", "panic:",
			"segfault", "crash", "not working", "broken", "fails with",
		),
		intent: IntentDebug,
	},
	{
		name:   "fix verb",
		match:  hasAnyPrefix("fix ", "debug ", "why does ", "why is "),
		intent: IntentDebug,
	},
	{
		name: "create verb",
		match: hasAnyPrefix(
			"create ", "write ", "build ", "implement ", "add ",
			"generate ", "make ", "scaffold ", "set up ",
		),
		intent: IntentCreate,
	},
	{
		name: "question word",
		match: hasAnyPrefix(
			"what ", "how ", "why ", "where ", "when ", "who ", "which ",
			"is ", "are ", "can ", "does ", "do ", "should ", "explain ",
		),
		intent: IntentQuestion,
	},
	{
		name: "question mark",
		match: func(lower string) bool {
			return strings.HasSuffix(strings.TrimSpace(lower), "?")
		},
		intent: IntentQuestion,
	},
}

func containsAny(needles ...string) func(string) bool {
	return func(lower string) bool {
		for _, n := range needles {
			if strings.Contains(lower, n) {
				return true
			}
		}
		return false
	}
}

func hasAnyPrefix(prefixes ...string) func(string) bool {
	return func(lower string) bool {
		for _, p := range prefixes {
			if strings.HasPrefix(lower, p) {
				return true
			}
		}
		return false
	}
}

// DetectIntent classifies a user message by the first matching rule.
func DetectIntent(message string) Intent {
	lower := strings.ToLower(strings.TrimSpace(message))
	if lower == "" {
		return IntentGeneral
	}
	for _, rule := range intentRules {
		if rule.match(lower) {
			return rule.intent
		}
	}
	return IntentGeneral
}
