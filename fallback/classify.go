package fallback

import "strings"

// classifyRule pairs a set of case-insensitive substrings with the error
// type they signal.
type classifyRule struct {
	errType  ErrorType
	patterns []string
}

// classifyRules is evaluated in order and the first match wins. The order is
// load-bearing because categories overlap: "npm: command not found" must
// classify as a missing command before "not found" can suggest a missing
// dependency, and a Python traceback complaining about an import is a code
// error context but still classified by the earlier rule that matches.
// Precedence: command-not-found, code-error, dependency-missing,
// permission-error, network-error, configuration-error, unknown.
var classifyRules = []classifyRule{
	{CommandNotFound, []string{
		"command not found",
		": not found",
		"is not recognized as an internal",
		"executable file not found",
		"no such command",
	}},
	{CodeError, []string{
		"syntaxerror",
		"typeerror",
		"referenceerror",
		"traceback (most recent call last)",
		"compilation error",
		"compile error",
		"cannot find symbol",
		"undefined reference",
		"panic: runtime error",
		"segmentation fault",
		"assertion failed",
	}},
	{DependencyMissing, []string{
		"cannot find module",
		"module not found",
		"no module named",
		"modulenotfounderror",
		"package not found",
		"could not resolve dependency",
		"unresolved import",
		"missing go.sum entry",
		"cannot find package",
		"unable to resolve dependency",
	}},
	{PermissionError, []string{
		"permission denied",
		"eacces",
		"eperm",
		"operation not permitted",
		"access is denied",
		"read-only file system",
	}},
	{NetworkError, []string{
		"connection refused",
		"connection reset",
		"connection timed out",
		"could not resolve host",
		"temporary failure in name resolution",
		"network is unreachable",
		"tls handshake",
		"econnrefused",
		"etimedout",
		"enotfound",
	}},
	{ConfigurationError, []string{
		"missing environment variable",
		"environment variable not set",
		"invalid configuration",
		"configuration error",
		"config file not found",
		"unknown flag",
		"unknown option",
		"invalid option",
	}},
}

// Classify assigns an error type to a failed command from its combined
// output, error message, and command line. Classification is a pure
// function of its inputs: same triple, same answer, every time.
func Classify(output, errMsg, command string) ErrorType {
	haystack := strings.ToLower(output + "\n" + errMsg + "\n" + command)
	for _, rule := range classifyRules {
		for _, pattern := range rule.patterns {
			if strings.Contains(haystack, pattern) {
				return rule.errType
			}
		}
	}
	return Unknown
}
