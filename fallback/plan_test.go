package fallback

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juniperhq/coxswain/llmwire"
)

func debianEnv() Environment {
	return Environment{
		OS:             "linux",
		PackageManager: "apt",
		InstallCommand: "apt-get install -y",
		UpdateCommand:  "apt-get update",
	}
}

func noManifests(string) bool { return false }

func TestPlanMissingNpmInstallsNodeRuntime(t *testing.T) {
	planner := NewPlanner(debianEnv(), WithManifestProbe(noManifests))

	analysis := planner.Plan(context.Background(), CommandNotFound, "npm install", "npm: command not found")

	require.NotEmpty(t, analysis.Plans)
	first := analysis.Plans[0]
	assert.Equal(t, "apt-get install -y nodejs", first.Command)
	assert.True(t, first.ShouldRetryOriginal)
	assert.Equal(t, CommandNotFound, analysis.ErrorType)
}

func TestPlanUnknownCommandYieldsNothingStatic(t *testing.T) {
	planner := NewPlanner(debianEnv(), WithManifestProbe(noManifests))

	analysis := planner.Plan(context.Background(), CommandNotFound, "frobnicate --all", "frobnicate: command not found")
	assert.Empty(t, analysis.Plans)
}

func TestPlanDependencyMissingByEcosystem(t *testing.T) {
	tests := []struct {
		manifest    string
		wantCommand string
	}{
		{"package.json", "npm install"},
		{"requirements.txt", "pip install -r requirements.txt"},
		{"go.mod", "go mod tidy"},
		{"Cargo.toml", "cargo fetch"},
		{"Gemfile", "bundle install"},
	}

	for _, tt := range tests {
		t.Run(tt.manifest, func(t *testing.T) {
			planner := NewPlanner(debianEnv(), WithManifestProbe(func(name string) bool {
				return name == tt.manifest
			}))

			analysis := planner.Plan(context.Background(), DependencyMissing, "some build", "dependency output")
			require.NotEmpty(t, analysis.Plans)
			assert.Equal(t, tt.wantCommand, analysis.Plans[0].Command)
			assert.True(t, analysis.Plans[0].ShouldRetryOriginal)
		})
	}
}

func TestPlanPermissionErrorOnScript(t *testing.T) {
	planner := NewPlanner(debianEnv(), WithManifestProbe(noManifests))

	analysis := planner.Plan(context.Background(), PermissionError, "./deploy.sh", "permission denied")
	require.Len(t, analysis.Plans, 1)
	assert.Equal(t, "chmod +x ./deploy.sh", analysis.Plans[0].Command)
	assert.True(t, analysis.Plans[0].ShouldRetryOriginal)
}

func TestMissingCommandExtraction(t *testing.T) {
	tests := []struct {
		command string
		output  string
		want    string
	}{
		{"npm install", "bash: npm: command not found", "npm"},
		{"cargo build", "sh: 1: cargo: not found", "cargo"},
		{"python app.py", "", "python"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, missingCommand(tt.command, tt.output), "output %q", tt.output)
	}
}

// planModelFunc adapts a function to the PlanModel interface.
type planModelFunc func(req llmwire.Request) (*llmwire.Parsed, error)

func (f planModelFunc) Complete(ctx context.Context, provider, credential string, req llmwire.Request) (*llmwire.Parsed, error) {
	return f(req)
}

func TestPlanFallsBackToModel(t *testing.T) {
	var prompted bool
	model := planModelFunc(func(req llmwire.Request) (*llmwire.Parsed, error) {
		prompted = true
		return &llmwire.Parsed{
			TextParts: []string{"Here is what I suggest:\n```json\n" +
				`[{"command": "rm -f .cache/lock", "description": "Clear a stale lock", "shouldRetryOriginal": true}]` +
				"\n```"},
			FinishReason: llmwire.FinishStop,
		}, nil
	})
	planner := NewPlanner(debianEnv(),
		WithManifestProbe(noManifests),
		WithModel(model, "google", "key", "gemini-2.5-flash"),
	)

	analysis := planner.Plan(context.Background(), Unknown, "weird-tool run", "inexplicable output")

	assert.True(t, prompted, "static miss must consult the model")
	require.Len(t, analysis.Plans, 1)
	assert.Equal(t, "rm -f .cache/lock", analysis.Plans[0].Command)
	assert.True(t, analysis.Plans[0].ShouldRetryOriginal)
}

func TestPlanStaticHitSkipsModel(t *testing.T) {
	model := planModelFunc(func(req llmwire.Request) (*llmwire.Parsed, error) {
		t.Fatal("model must not be consulted when static plans exist")
		return nil, nil
	})
	planner := NewPlanner(debianEnv(),
		WithManifestProbe(noManifests),
		WithModel(model, "google", "key", "gemini-2.5-flash"),
	)

	analysis := planner.Plan(context.Background(), CommandNotFound, "npm install", "npm: command not found")
	assert.NotEmpty(t, analysis.Plans)
}

func TestParsePlans(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    int
		wantErr bool
	}{
		{
			name: "bare array",
			text: `[{"command": "npm install", "description": "reinstall", "should_retry_original": true}]`,
			want: 1,
		},
		{
			name: "fenced with prose",
			text: "Sure!\n```json\n[{\"command\": \"ls\", \"description\": \"x\", \"should_retry_original\": false}]\n```\nGood luck.",
			want: 1,
		},
		{
			name: "camelCase retry key",
			text: `[{"command": "ls", "shouldRetryOriginal": true}]`,
			want: 1,
		},
		{
			name: "entries without commands dropped",
			text: `[{"description": "useless"}, {"command": "ls"}]`,
			want: 1,
		},
		{
			name: "empty array",
			text: "[]",
			want: 0,
		},
		{
			name:    "no array at all",
			text:    "I cannot help with that.",
			wantErr: true,
		},
		{
			name:    "malformed json",
			text:    `[{"command": }]`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plans, err := ParsePlans(tt.text)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, plans, tt.want)
		})
	}
}
