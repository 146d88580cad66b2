package fallback

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/juniperhq/coxswain/llmwire"
)

// runtimePackages maps a missing command to the package that provides it,
// in the vocabulary of common package managers. The table is knowledge, not
// logic; extending it never touches control flow.
var runtimePackages = map[string]string{
	"node":    "nodejs",
	"npm":     "nodejs",
	"npx":     "nodejs",
	"yarn":    "yarn",
	"python":  "python3",
	"python3": "python3",
	"pip":     "python3-pip",
	"pip3":    "python3-pip",
	"go":      "golang",
	"cargo":   "rust",
	"rustc":   "rust",
	"ruby":    "ruby",
	"gem":     "ruby",
	"bundle":  "ruby",
	"java":    "default-jdk",
	"javac":   "default-jdk",
	"mvn":     "maven",
	"gradle":  "gradle",
	"git":     "git",
	"make":    "make",
	"gcc":     "gcc",
	"cmake":   "cmake",
	"curl":    "curl",
	"wget":    "wget",
}

// manifestPlans yields dependency-reinstall commands keyed by the manifest
// file whose presence signals the ecosystem. Checked in order.
var manifestPlans = []struct {
	manifest string
	plans    []FallbackPlan
}{
	{"package.json", []FallbackPlan{
		{Command: "npm install", Description: "Reinstall JavaScript dependencies from package.json", ShouldRetryOriginal: true},
	}},
	{"requirements.txt", []FallbackPlan{
		{Command: "pip install -r requirements.txt", Description: "Reinstall Python dependencies from requirements.txt", ShouldRetryOriginal: true},
	}},
	{"pyproject.toml", []FallbackPlan{
		{Command: "pip install -e .", Description: "Install the project and its dependencies from pyproject.toml", ShouldRetryOriginal: true},
	}},
	{"go.mod", []FallbackPlan{
		{Command: "go mod tidy", Description: "Reconcile Go module requirements", ShouldRetryOriginal: true},
		{Command: "go mod download", Description: "Download declared Go module dependencies", ShouldRetryOriginal: true},
	}},
	{"Cargo.toml", []FallbackPlan{
		{Command: "cargo fetch", Description: "Fetch Rust crate dependencies", ShouldRetryOriginal: true},
	}},
	{"Gemfile", []FallbackPlan{
		{Command: "bundle install", Description: "Reinstall Ruby gems from the Gemfile", ShouldRetryOriginal: true},
	}},
}

// missingCommandRe pulls the command name out of shell "not found" output,
// e.g. "bash: npm: command not found" or "sh: 1: npm: not found".
var missingCommandRe = regexp.MustCompile(`(?m)([\w.-]+):(?: \d+:)? (?:command )?not found`)

// PlanModel issues one generation request for AI-backed planning.
// *llmwire.Client satisfies it.
type PlanModel interface {
	Complete(ctx context.Context, provider, credential string, req llmwire.Request) (*llmwire.Parsed, error)
}

// Planner turns a classified failure into an ordered list of remediation
// plans. Static tables handle the common, predictable cases; the model is
// consulted only when they yield nothing, keeping the deterministic path
// deterministic.
type Planner struct {
	env        Environment
	hasFile    func(name string) bool
	model      PlanModel
	provider   string
	credential string
	modelID    string
}

// PlannerOption configures a Planner.
type PlannerOption func(*Planner)

// WithManifestProbe overrides how the planner detects ecosystem manifest
// files. The default checks the working directory of the process.
func WithManifestProbe(probe func(name string) bool) PlannerOption {
	return func(p *Planner) { p.hasFile = probe }
}

// WithModel enables AI-backed planning when the static tables come up empty.
func WithModel(model PlanModel, provider, credential, modelID string) PlannerOption {
	return func(p *Planner) {
		p.model = model
		p.provider = provider
		p.credential = credential
		p.modelID = modelID
	}
}

// NewPlanner creates a Planner for the given environment descriptor.
func NewPlanner(env Environment, opts ...PlannerOption) *Planner {
	p := &Planner{
		env: env,
		hasFile: func(name string) bool {
			wd, err := os.Getwd()
			if err != nil {
				return false
			}
			_, err = os.Stat(filepath.Join(wd, name))
			return err == nil
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan produces a FailureAnalysis for a classified failure.
func (p *Planner) Plan(ctx context.Context, errType ErrorType, command, output string) FailureAnalysis {
	analysis := FailureAnalysis{
		ErrorType: errType,
		Reason:    reasonFor(errType),
		Plans:     p.staticPlans(errType, command, output),
	}

	if len(analysis.Plans) == 0 && p.model != nil {
		plans, err := p.askModel(ctx, errType, command, output)
		if err != nil {
			log.Warn().Err(err).Str("command", command).Msg("model-backed planning failed")
		} else {
			analysis.Plans = plans
		}
	}

	log.Debug().
		Str("error_type", string(errType)).
		Str("command", command).
		Int("plans", len(analysis.Plans)).
		Msg("failure analyzed")
	return analysis
}

func reasonFor(errType ErrorType) string {
	switch errType {
	case CommandNotFound:
		return "a required command is not installed"
	case CodeError:
		return "the program itself has an error"
	case DependencyMissing:
		return "a project dependency is missing"
	case PermissionError:
		return "the command lacks the required permissions"
	case NetworkError:
		return "a network operation failed"
	case ConfigurationError:
		return "the command or project is misconfigured"
	default:
		return "the failure does not match a known category"
	}
}

func (p *Planner) staticPlans(errType ErrorType, command, output string) []FallbackPlan {
	switch errType {
	case CommandNotFound:
		return p.installPlans(command, output)
	case DependencyMissing:
		return p.dependencyPlans()
	case PermissionError:
		if target := strings.Fields(command); len(target) > 0 && strings.HasPrefix(target[0], "./") {
			return []FallbackPlan{{
				Command:             "chmod +x " + target[0],
				Description:         "Make the script executable, then retry",
				ShouldRetryOriginal: true,
			}}
		}
		return nil
	case NetworkError:
		return []FallbackPlan{{
			Command:             "sleep 2",
			Description:         "Wait for a transient network failure to clear, then retry",
			ShouldRetryOriginal: true,
		}}
	default:
		// Code, configuration, and unknown failures have no command that
		// reliably fixes them; those go to the model.
		return nil
	}
}

// installPlans proposes installing the package that provides the missing
// command via the environment's package manager.
func (p *Planner) installPlans(command, output string) []FallbackPlan {
	missing := missingCommand(command, output)
	pkg, known := runtimePackages[missing]
	if !known || p.env.InstallCommand == "" {
		return nil
	}

	plans := []FallbackPlan{{
		Command:             p.env.InstallCommand + " " + pkg,
		Description:         fmt.Sprintf("Install %s (provides %s) via %s", pkg, missing, p.env.PackageManager),
		ShouldRetryOriginal: true,
	}}
	if p.env.UpdateCommand != "" {
		plans = append(plans, FallbackPlan{
			Command:             p.env.UpdateCommand + " && " + p.env.InstallCommand + " " + pkg,
			Description:         fmt.Sprintf("Refresh the package index, then install %s", pkg),
			ShouldRetryOriginal: true,
		})
	}
	return plans
}

func (p *Planner) dependencyPlans() []FallbackPlan {
	var plans []FallbackPlan
	for _, entry := range manifestPlans {
		if p.hasFile(entry.manifest) {
			plans = append(plans, entry.plans...)
		}
	}
	return plans
}

// missingCommand extracts the command name the shell reported as missing,
// falling back to the first word of the command line.
func missingCommand(command, output string) string {
	if m := missingCommandRe.FindStringSubmatch(output); m != nil {
		name := m[1]
		// Shells often prefix their own name: "bash: npm: command not found".
		if name != "bash" && name != "sh" && name != "zsh" {
			return name
		}
	}
	if fields := strings.Fields(command); len(fields) > 0 {
		return fields[0]
	}
	return ""
}

const maxOutputInPrompt = 2000

// askModel requests remediation plans from the language model and parses a
// JSON array of the FallbackPlan shape from the reply.
func (p *Planner) askModel(ctx context.Context, errType ErrorType, command, output string) ([]FallbackPlan, error) {
	if len(output) > maxOutputInPrompt {
		output = output[len(output)-maxOutputInPrompt:]
	}

	prompt := fmt.Sprintf(
		"A shell command failed and no static remediation applies.\n\n"+
			"Command: %s\nFailure category: %s\nOutput:\n%s\n\n"+
			"System: %s, package manager %q, install with %q, update with %q.\n%s",
		command, errType, output,
		p.env.OS, p.env.PackageManager, p.env.InstallCommand, p.env.UpdateCommand,
		p.env.SystemContext,
	)

	req := llmwire.Request{
		Model:    p.modelID,
		Contents: []llmwire.Content{llmwire.UserText(prompt)},
		SystemInstruction: "Propose shell commands that could fix the failure. Reply with only a JSON array of objects " +
			`with keys "command", "description", and "should_retry_original" (boolean), ordered by preference. ` +
			"Reply with [] if nothing is likely to help.",
	}

	parsed, err := p.model.Complete(ctx, p.provider, p.credential, req)
	if err != nil {
		return nil, err
	}
	return ParsePlans(parsed.Text())
}

// planJSON tolerates both snake_case and camelCase retry keys in model
// replies.
type planJSON struct {
	Command     string `json:"command"`
	Description string `json:"description"`
	RetrySnake  *bool  `json:"should_retry_original"`
	RetryCamel  *bool  `json:"shouldRetryOriginal"`
}

// ParsePlans extracts a JSON array of fallback plans from model reply text,
// ignoring any prose or code fences around it.
func ParsePlans(text string) ([]FallbackPlan, error) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in model reply")
	}

	var raw []planJSON
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("parse fallback plans: %w", err)
	}

	plans := make([]FallbackPlan, 0, len(raw))
	for _, entry := range raw {
		if strings.TrimSpace(entry.Command) == "" {
			continue
		}
		retry := false
		if entry.RetrySnake != nil {
			retry = *entry.RetrySnake
		} else if entry.RetryCamel != nil {
			retry = *entry.RetryCamel
		}
		plans = append(plans, FallbackPlan{
			Command:             entry.Command,
			Description:         entry.Description,
			ShouldRetryOriginal: retry,
		})
	}
	return plans, nil
}
