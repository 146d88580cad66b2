package fallback

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedRunner returns canned results per command, tracking invocation
// order. Commands default to success when unscripted.
type scriptedRunner struct {
	results map[string][]*ExecResult
	calls   []string
}

func newScriptedRunner() *scriptedRunner {
	return &scriptedRunner{results: make(map[string][]*ExecResult)}
}

func (r *scriptedRunner) script(command string, results ...*ExecResult) {
	r.results[command] = append(r.results[command], results...)
}

func (r *scriptedRunner) Run(ctx context.Context, command string, timeout time.Duration) (*ExecResult, error) {
	r.calls = append(r.calls, command)
	queue := r.results[command]
	if len(queue) == 0 {
		return &ExecResult{ExitCode: 0, Stdout: "ok"}, nil
	}
	next := queue[0]
	r.results[command] = queue[1:]
	return next, nil
}

func failure(output string) *ExecResult {
	return &ExecResult{ExitCode: 127, Stderr: output}
}

func success(output string) *ExecResult {
	return &ExecResult{ExitCode: 0, Stdout: output}
}

func newRecovering(runner CommandRunner, opts ...RecoveringRunnerOption) *RecoveringRunner {
	planner := NewPlanner(debianEnv(), WithManifestProbe(noManifests))
	return NewRecoveringRunner(runner, planner, nil, opts...)
}

func TestRecoveringRunnerPassesThroughSuccess(t *testing.T) {
	runner := newScriptedRunner()
	rec := newRecovering(runner)

	result, analysis, err := rec.Run(context.Background(), "echo hello")
	require.NoError(t, err)
	assert.True(t, result.Succeeded())
	assert.Nil(t, analysis)
	assert.Equal(t, []string{"echo hello"}, runner.calls)
}

func TestRecoveringRunnerInstallsMissingRuntime(t *testing.T) {
	runner := newScriptedRunner()
	// First run fails, retry after remediation succeeds.
	runner.script("npm install", failure("npm: command not found"), success("added 12 packages"))
	rec := newRecovering(runner)

	result, analysis, err := rec.Run(context.Background(), "npm install")
	require.NoError(t, err)
	assert.True(t, result.Succeeded())
	assert.Nil(t, analysis, "recovered runs report no failure")
	assert.Equal(t, []string{
		"npm install",
		"apt-get install -y nodejs",
		"npm install",
	}, runner.calls)
}

func TestRecoveringRunnerTriesPlansInOrder(t *testing.T) {
	runner := newScriptedRunner()
	runner.script("npm install",
		failure("npm: command not found"),
		failure("npm: command not found"), // retry after first plan still fails
		success("added 12 packages"),      // retry after second plan works
	)
	rec := newRecovering(runner)

	result, analysis, err := rec.Run(context.Background(), "npm install")
	require.NoError(t, err)
	assert.True(t, result.Succeeded())
	assert.Nil(t, analysis)
	assert.Equal(t, []string{
		"npm install",
		"apt-get install -y nodejs",
		"npm install",
		"apt-get update && apt-get install -y nodejs",
		"npm install",
	}, runner.calls)
}

func TestRecoveringRunnerReportsExhaustedPlans(t *testing.T) {
	runner := newScriptedRunner()
	runner.script("npm install",
		failure("npm: command not found"),
		failure("npm: command not found"),
		failure("npm: command not found"),
	)
	rec := newRecovering(runner)

	result, analysis, err := rec.Run(context.Background(), "npm install")
	require.NoError(t, err)
	assert.False(t, result.Succeeded())
	require.NotNil(t, analysis)
	assert.Equal(t, CommandNotFound, analysis.ErrorType)
	assert.NotEmpty(t, analysis.Plans)
}

func TestRecoveringRunnerHonorsCancelFlag(t *testing.T) {
	runner := newScriptedRunner()
	runner.script("npm install", failure("npm: command not found"))

	flag := &cancelledFlag{}
	rec := newRecovering(runner, WithCanceller(flag))

	result, analysis, err := rec.Run(context.Background(), "npm install")
	require.NoError(t, err)
	assert.False(t, result.Succeeded())
	require.NotNil(t, analysis)
	// Only the original command ran; no remediation after cancellation.
	assert.Equal(t, []string{"npm install"}, runner.calls)
}

type cancelledFlag struct{}

func (cancelledFlag) Cancelled() bool { return true }

func TestRecoveringRunnerSkipsRestrictedEnvironment(t *testing.T) {
	runner := newScriptedRunner()
	runner.script("npm install", failure("npm: command not found"))
	runner.script("ls", failure("ls: command not found"))

	planner := NewPlanner(debianEnv(), WithManifestProbe(noManifests))
	detector := NewRestrictedDetector(runner, NewAvailabilityCache())
	rec := NewRecoveringRunner(runner, planner, detector)

	result, analysis, err := rec.Run(context.Background(), "npm install")
	require.NoError(t, err)
	assert.False(t, result.Succeeded())
	require.NotNil(t, analysis)
	assert.Contains(t, analysis.Reason, "restricted")
	assert.NotContains(t, runner.calls, "apt-get install -y nodejs")
}
