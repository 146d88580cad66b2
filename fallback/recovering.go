package fallback

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Canceller is the cooperative cancellation signal checked between
// remediation attempts. agent.CancelFlag satisfies it.
type Canceller interface {
	Cancelled() bool
}

// neverCancelled is the default when no flag is shared.
type neverCancelled struct{}

func (neverCancelled) Cancelled() bool { return false }

const (
	defaultCommandTimeout     = 2 * time.Minute
	defaultRemediationTimeout = 5 * time.Minute
)

// RecoveringRunner runs shell commands and, when one fails, classifies the
// failure, plans remediation, and applies the plans in order before
// reporting the failure to the caller. Failures stay local: the caller gets
// a result and an analysis, never a crash.
type RecoveringRunner struct {
	runner     CommandRunner
	planner    *Planner
	restricted *RestrictedDetector
	cancel     Canceller
	timeout    time.Duration
}

// RecoveringRunnerOption configures a RecoveringRunner.
type RecoveringRunnerOption func(*RecoveringRunner)

// WithCanceller shares a cooperative cancellation flag.
func WithCanceller(c Canceller) RecoveringRunnerOption {
	return func(r *RecoveringRunner) { r.cancel = c }
}

// WithCommandTimeout overrides the per-command timeout.
func WithCommandTimeout(d time.Duration) RecoveringRunnerOption {
	return func(r *RecoveringRunner) { r.timeout = d }
}

// NewRecoveringRunner wires a runner, planner, and restricted-environment
// detector together.
func NewRecoveringRunner(runner CommandRunner, planner *Planner, restricted *RestrictedDetector, opts ...RecoveringRunnerOption) *RecoveringRunner {
	r := &RecoveringRunner{
		runner:     runner,
		planner:    planner,
		restricted: restricted,
		cancel:     neverCancelled{},
		timeout:    defaultCommandTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes a command. On failure it returns the final result together
// with the FailureAnalysis that drove recovery; on success the analysis is
// nil. The error is non-nil only when the command could not be started at
// all.
func (r *RecoveringRunner) Run(ctx context.Context, command string) (*ExecResult, *FailureAnalysis, error) {
	result, err := r.runner.Run(ctx, command, r.timeout)
	if err != nil {
		return nil, nil, err
	}
	if result.Succeeded() {
		return result, nil, nil
	}

	errType := Classify(result.Output(), "", command)
	log.Info().
		Str("command", command).
		Str("error_type", string(errType)).
		Int("exit_code", result.ExitCode).
		Msg("command failed, attempting recovery")

	// A shell that cannot even list a directory cannot run a package
	// manager; skip remediation entirely.
	if r.restricted != nil && r.restricted.IsRestricted(ctx) {
		return result, &FailureAnalysis{
			ErrorType: errType,
			Reason:    "restricted environment: basic commands fail, remediation skipped",
		}, nil
	}

	analysis := r.planner.Plan(ctx, errType, command, result.Output())

	for _, plan := range analysis.Plans {
		if r.cancel.Cancelled() || ctx.Err() != nil {
			break
		}

		log.Info().Str("remediation", plan.Command).Str("description", plan.Description).Msg("applying fallback plan")
		planResult, err := r.runner.Run(ctx, plan.Command, defaultRemediationTimeout)
		if err != nil || !planResult.Succeeded() {
			continue
		}
		if !plan.ShouldRetryOriginal {
			return planResult, &analysis, nil
		}

		if r.cancel.Cancelled() || ctx.Err() != nil {
			break
		}
		retried, err := r.runner.Run(ctx, command, r.timeout)
		if err == nil && retried.Succeeded() {
			log.Info().Str("command", command).Str("remediation", plan.Command).Msg("recovery succeeded")
			return retried, nil, nil
		}
		if retried != nil {
			result = retried
		}
	}

	return result, &analysis, nil
}
