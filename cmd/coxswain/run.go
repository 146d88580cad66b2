package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/juniperhq/coxswain/agent"
	"github.com/juniperhq/coxswain/config"
	"github.com/juniperhq/coxswain/fallback"
	"github.com/juniperhq/coxswain/llmwire"
)

var runCmd = &cobra.Command{
	Use:   "run [message]",
	Short: "Run one agent session for a user message",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSession(cmd.Context(), strings.Join(args, " "))
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runSession(parent context.Context, message string) error {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	config.SetupLogging(cfg.Logging)
	if err := cfg.Validate(); err != nil {
		return err
	}

	keys := cfg.Provider.APIKeys
	if len(keys) == 0 {
		keys = []string{""} // self-hosted providers need no key
	}

	client := llmwire.NewClient(
		llmwire.WithAdapter(llmwire.NewGoogleAdapter(baseURLFor(cfg, "google"))),
		llmwire.WithAdapter(llmwire.NewOpenAIAdapter(baseURLFor(cfg, "openai"))),
		llmwire.WithAdapter(llmwire.NewAnthropicAdapter(baseURLFor(cfg, "anthropic"))),
		llmwire.WithAdapter(llmwire.NewOllamaAdapter(baseURLFor(cfg, "ollama"))),
		llmwire.WithDefaultProvider(cfg.Provider.Name),
		llmwire.WithGenerationTimeout(time.Duration(cfg.Session.GenerationTimeout)*time.Second),
	)

	// Providers without a dedicated adapter go through the gollm backend.
	switch cfg.Provider.Name {
	case "google", "openai", "anthropic", "ollama", "":
	default:
		generic, err := llmwire.NewGenericAdapter(cfg.Provider.Name, keys[0], cfg.Provider.Model)
		if err != nil {
			return fmt.Errorf("configure provider %q: %w", cfg.Provider.Name, err)
		}
		client.RegisterAdapter(generic)
	}
	creds := agent.NewStaticCredentials(cfg.Provider.Model, keys...)

	engineCfg := agent.DefaultEngineConfig()
	engineCfg.Provider = cfg.Provider.Name
	engineCfg.SystemInstruction = cfg.Session.SystemInstruction
	engineCfg.MaxTurns = cfg.Session.MaxTurns
	engineCfg.MaxTokens = cfg.Session.MaxTokens
	engineCfg.Temperature = cfg.Session.Temperature

	tools := agent.NewRegistry()
	engine := agent.NewEngine(client, creds, tools, &engineCfg)
	defer engine.Close()

	registerShellTool(tools, cfg, client, engine.CancelFlag())
	registerFileTools(tools, cfg.Session.WorkDir)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		engine.Cancel()
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		printEvents(engine.Events())
	}()

	err = engine.Submit(ctx, message)
	engine.Close()
	<-done

	usage := engine.Usage()
	log.Info().
		Int("input_tokens", usage.InputTokens).
		Int("output_tokens", usage.OutputTokens).
		Msg("session finished")
	return err
}

func baseURLFor(cfg *config.Config, provider string) string {
	if cfg.Provider.Name == provider {
		return cfg.Provider.BaseURL
	}
	return ""
}

func printEvents(events <-chan agent.Event) {
	for event := range events {
		switch event.Kind {
		case agent.EventTextChunk:
			fmt.Print(event.Text)
		case agent.EventToolCallRequested:
			fmt.Printf("\n[tool] %s\n", event.Call.Name)
		case agent.EventToolCallCompleted:
			if event.Result != nil && event.Result.IsError() {
				fmt.Printf("[tool error] %s\n", event.Result.Err.Message)
			}
		case agent.EventLoopDetected, agent.EventWarning:
			fmt.Printf("\n[warning] %s\n", event.Message)
		case agent.EventCompleted:
			fmt.Println()
		case agent.EventFailed:
			fmt.Printf("\n[failed] %s\n", event.Message)
		case agent.EventCredentialsExhausted:
			fmt.Printf("\n[credentials exhausted] %s\n", event.Message)
		}
	}
}

// registerShellTool wires command execution through the recovering runner,
// so failed commands are classified and remediated before the model sees
// the failure.
func registerShellTool(tools *agent.Registry, cfg *config.Config, client *llmwire.Client, cancel *agent.CancelFlag) {
	env := fallback.Environment{
		OS:             cfg.Fallback.OS,
		PackageManager: cfg.Fallback.PackageManager,
		InstallCommand: cfg.Fallback.InstallCommand,
		UpdateCommand:  cfg.Fallback.UpdateCommand,
		SystemContext:  cfg.Fallback.SystemContext,
	}

	var plannerOpts []fallback.PlannerOption
	if cfg.Fallback.EnableModelPlanning && len(cfg.Provider.APIKeys) > 0 {
		plannerOpts = append(plannerOpts,
			fallback.WithModel(client, cfg.Provider.Name, cfg.Provider.APIKeys[0], cfg.Provider.Model))
	}

	runner := fallback.NewLocalRunner(cfg.Session.WorkDir)
	planner := fallback.NewPlanner(env, plannerOpts...)
	detector := fallback.NewRestrictedDetector(runner, fallback.NewAvailabilityCache())
	recovering := fallback.NewRecoveringRunner(runner, planner, detector, fallback.WithCanceller(cancel))

	tools.Register(llmwire.FunctionDeclaration{
		Name:        "shell",
		Description: "Run a shell command in the working directory and return its output.",
		Parameters: map[string]interface{}{
			"type":     "object",
			"required": []interface{}{"command"},
			"properties": map[string]interface{}{
				"command": map[string]interface{}{
					"type":        "string",
					"description": "The command to run",
				},
			},
		},
	}, func(ctx context.Context, args map[string]interface{}) (string, error) {
		command, _ := args["command"].(string)
		result, analysis, err := recovering.Run(ctx, command)
		if err != nil {
			return "", err
		}
		if !result.Succeeded() {
			reason := ""
			if analysis != nil {
				reason = fmt.Sprintf(" (%s: %s)", analysis.ErrorType, analysis.Reason)
			}
			return "", fmt.Errorf("command exited with code %d%s:\n%s", result.ExitCode, reason, result.Output())
		}
		return result.Output(), nil
	})
}

func registerFileTools(tools *agent.Registry, workDir string) {
	tools.Register(llmwire.FunctionDeclaration{
		Name:        "read_file",
		Description: "Read a file and return its contents.",
		Parameters: map[string]interface{}{
			"type":     "object",
			"required": []interface{}{"path"},
			"properties": map[string]interface{}{
				"path": map[string]interface{}{"type": "string"},
			},
		},
	}, func(ctx context.Context, args map[string]interface{}) (string, error) {
		path, _ := args["path"].(string)
		data, err := os.ReadFile(resolvePath(workDir, path))
		if err != nil {
			return "", err
		}
		return string(data), nil
	})

	tools.Register(llmwire.FunctionDeclaration{
		Name:        "write_file",
		Description: "Write content to a file, creating it if needed.",
		Parameters: map[string]interface{}{
			"type":     "object",
			"required": []interface{}{"path", "content"},
			"properties": map[string]interface{}{
				"path":    map[string]interface{}{"type": "string"},
				"content": map[string]interface{}{"type": "string"},
			},
		},
	}, func(ctx context.Context, args map[string]interface{}) (string, error) {
		path, _ := args["path"].(string)
		content, _ := args["content"].(string)
		if err := os.WriteFile(resolvePath(workDir, path), []byte(content), 0644); err != nil {
			return "", err
		}
		return "written", nil
	})
}

func resolvePath(workDir, path string) string {
	if path == "" || strings.HasPrefix(path, "/") || workDir == "" {
		return path
	}
	return workDir + "/" + path
}
