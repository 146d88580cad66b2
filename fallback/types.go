package fallback

// ErrorType is the closed failure taxonomy for shell command output. It is
// derived from output text on demand, never stored.
type ErrorType string

const (
	CommandNotFound    ErrorType = "COMMAND_NOT_FOUND"
	CodeError          ErrorType = "CODE_ERROR"
	DependencyMissing  ErrorType = "DEPENDENCY_MISSING"
	PermissionError    ErrorType = "PERMISSION_ERROR"
	ConfigurationError ErrorType = "CONFIGURATION_ERROR"
	NetworkError       ErrorType = "NETWORK_ERROR"
	Unknown            ErrorType = "UNKNOWN"
)

// FallbackPlan is one remediation attempt: a command to run and whether the
// original failing command should be retried after it succeeds. Consumed
// once by the retry loop; never persisted.
type FallbackPlan struct {
	Command             string `json:"command"`
	Description         string `json:"description"`
	ShouldRetryOriginal bool   `json:"should_retry_original"`
}

// FailureAnalysis is the planner's verdict on a failed command: why it
// failed and an ordered list of remediation plans, most preferred first.
type FailureAnalysis struct {
	ErrorType ErrorType      `json:"error_type"`
	Reason    string         `json:"reason"`
	Plans     []FallbackPlan `json:"plans"`
}

// Environment is the read-only system descriptor the planner consumes. The
// core never detects any of this itself.
type Environment struct {
	OS             string `json:"os"`
	PackageManager string `json:"package_manager"`
	InstallCommand string `json:"install_command"` // e.g. "apt-get install -y"
	UpdateCommand  string `json:"update_command"`  // e.g. "apt-get update"
	SystemContext  string `json:"system_context,omitempty"`
}
