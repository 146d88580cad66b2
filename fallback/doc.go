// Package fallback classifies shell command failures and plans remediation.
//
// When a command fails, its output is matched against an ordered rule table
// to assign one of a closed set of error types. Static, data-driven plan
// tables then propose remediation commands for the common cases (install a
// missing runtime, reinstall dependencies for the detected ecosystem);
// model-backed planning is reserved for failures the tables cannot match. A
// restricted-environment detector short-circuits remediation when even
// trivial commands fail.
//
// RecoveringRunner ties these together into run, classify, remediate,
// retry. Every failure comes back as data (an ExecResult plus a
// FailureAnalysis), so callers can keep going.
package fallback
