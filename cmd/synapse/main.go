// Package main provides the CLI entry point for the Synapse agentic
// orchestration runtime.
//
// Synapse wraps a ReAct-style tool-using agent (4.6), a LLM-classifying
// router (4.? / router.route_task), and a planning supervisor
// (4.7/orchestrate) behind one actor runtime (C9), exposing them as the
// facade operations spec.md §6 names: init, generate_text,
// generate_stream, agent.run_task, router.route_task,
// supervisor.orchestrate, supervisor.orchestrate_with_validation,
// session.*, mcp.*, shutdown.
//
// # Basic Usage
//
// Run a single task through one agent:
//
//	synapse run --agents agents.yaml --agent researcher "find the latest release notes"
//
// Let the router pick the agent:
//
//	synapse route --agents agents.yaml "write a sorting function in Go"
//
// Run a multi-step plan across agents:
//
//	synapse orchestrate --agents agents.yaml "ship the changelog for v2"
//
// # Environment Variables
//
//   - SYNAPSE_CONFIG: path to the YAML config file (default: synapse.yaml)
//   - SYNAPSE_LLM_API_KEY / ANTHROPIC_API_KEY / OPENAI_API_KEY: provider credentials
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/synapserun/synapse/internal/config"
	"github.com/synapserun/synapse/internal/facade"
	"github.com/synapserun/synapse/internal/llm"
	"github.com/synapserun/synapse/pkg/models"
)

// Build information, populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"

	configPath string
	agentsPath string
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps an error returned from a command's RunE to the exit
// code spec.md §6 requires: 2 for configuration errors (bad flags, a
// malformed config or agents manifest, an unregistered contract), 3 for
// initialization failures (the config was valid but the runtime could
// not come up), 1 for everything else.
func exitCodeFor(err error) int {
	var cfgErr *facade.ConfigurationError
	if errors.As(err, &cfgErr) {
		return 2
	}
	var initErr *facade.InitializationError
	if errors.As(err, &initErr) {
		return 3
	}
	var valErr *config.ConfigValidationError
	if errors.As(err, &valErr) {
		return 2
	}
	slog.Error("command failed", "error", err)
	return 1
}

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main() so tests can exercise it without os.Exit.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "synapse",
		Short: "Synapse - agentic orchestration runtime",
		Long: `Synapse runs tool-using agents behind a single actor runtime.

Run one agent directly, let a router classify a task to the right
agent, or have a supervisor plan and delegate a multi-step task across
your whole agent roster.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", resolveConfigPath(""), "Path to YAML configuration file")
	rootCmd.PersistentFlags().StringVarP(&agentsPath, "agents", "a", "", "Path to the agents roster manifest (YAML)")

	rootCmd.AddCommand(
		buildGenerateCmd(),
		buildRunCmd(),
		buildRouteCmd(),
		buildOrchestrateCmd(),
		buildSessionCmd(),
		buildMCPCmd(),
	)
	return rootCmd
}

func resolveConfigPath(path string) string {
	if strings.TrimSpace(path) != "" {
		return path
	}
	if env := strings.TrimSpace(os.Getenv("SYNAPSE_CONFIG")); env != "" {
		return env
	}
	return "synapse.yaml"
}

// buildFacade loads the config and agents manifest and brings a Facade
// up. Every command that touches the runtime starts with this, then
// defers Shutdown — init() is cheap to repeat and idempotent (facade.go),
// so a fresh process per invocation matches the CLI's one-shot nature.
func buildFacade(ctx context.Context) (*facade.Facade, []facade.AgentSpec, error) {
	cfg, err := config.Load(resolveConfigPath(configPath))
	if err != nil {
		return nil, nil, err
	}
	if strings.TrimSpace(agentsPath) == "" {
		return nil, nil, facade.NewConfigurationError(fmt.Errorf("--agents is required"))
	}
	roster, err := facade.LoadManifest(agentsPath)
	if err != nil {
		return nil, nil, err
	}

	f, err := facade.New(cfg, slog.Default())
	if err != nil {
		return nil, nil, err
	}
	if err := f.Init(ctx, roster); err != nil {
		return nil, nil, err
	}
	return f, roster, nil
}

// buildGenerateCmd implements spec.md §6's generate_text and
// generate_stream: a raw completion with no agent loop around it.
func buildGenerateCmd() *cobra.Command {
	var model string
	var temperature float64
	var maxTokens int
	var stream bool
	cmd := &cobra.Command{
		Use:   "generate [prompt]",
		Short: "Generate a completion directly from the configured LLM provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, _, err := buildFacade(cmd.Context())
			if err != nil {
				return err
			}
			defer f.Shutdown()

			opts := llm.Options{Model: model, Temperature: temperature, MaxTokens: maxTokens}
			out := cmd.OutOrStdout()
			if stream {
				text, err := f.GenerateStream(cmd.Context(), args[0], opts, func(delta string) {
					fmt.Fprint(out, delta)
				})
				fmt.Fprintln(out)
				if err != nil {
					return err
				}
				_ = text
				return nil
			}
			text, err := f.GenerateText(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, text)
			return nil
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "Override the configured model")
	cmd.Flags().Float64Var(&temperature, "temperature", 0, "Sampling temperature (0 = provider default)")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "Maximum output tokens (0 = provider default)")
	cmd.Flags().BoolVar(&stream, "stream", false, "Stream the completion to stdout as it arrives")
	return cmd
}

// buildRunCmd implements spec.md §6's agent.run_task(task, max_iterations?).
func buildRunCmd() *cobra.Command {
	var agentName string
	var maxIterations int
	cmd := &cobra.Command{
		Use:   "run [task]",
		Short: "Run a task through one named agent's ReAct loop",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(agentName) == "" {
				return facade.NewConfigurationError(fmt.Errorf("--agent is required"))
			}
			f, _, err := buildFacade(cmd.Context())
			if err != nil {
				return err
			}
			defer f.Shutdown()

			resp, err := f.RunTask(cmd.Context(), agentName, args[0], maxIterations)
			if err != nil {
				return err
			}
			return printAgentResponse(cmd, resp)
		},
	}
	cmd.Flags().StringVar(&agentName, "agent", "", "Name of the agent to run (must appear in --agents)")
	cmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "Override the agent's configured max ReAct iterations")
	return cmd
}

// buildRouteCmd implements spec.md §6's
// router.route_task(task, agents?, max_iterations?): one classification
// call, then exactly one delegation.
func buildRouteCmd() *cobra.Command {
	var maxIterations int
	cmd := &cobra.Command{
		Use:   "route [task]",
		Short: "Classify a task to one agent in the roster and run it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, _, err := buildFacade(cmd.Context())
			if err != nil {
				return err
			}
			defer f.Shutdown()

			resp, err := f.RouteTask(cmd.Context(), args[0], maxIterations)
			if err != nil {
				return err
			}
			return printAgentResponse(cmd, resp)
		},
	}
	cmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "Override the routed agent's configured max ReAct iterations")
	return cmd
}

// buildOrchestrateCmd implements spec.md §6's
// supervisor.orchestrate(task, agents?, max_steps?) and, when
// --contract is given, orchestrate_with_validation.
func buildOrchestrateCmd() *cobra.Command {
	var maxSteps int
	var contract string
	cmd := &cobra.Command{
		Use:   "orchestrate [task]",
		Short: "Plan a task into sub-goals and delegate them across the agent roster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, _, err := buildFacade(cmd.Context())
			if err != nil {
				return err
			}
			defer f.Shutdown()

			var resp *models.AgentResponse
			if strings.TrimSpace(contract) != "" {
				resp, err = f.OrchestrateWithValidation(cmd.Context(), contract, args[0], maxSteps)
			} else {
				resp, err = f.Orchestrate(cmd.Context(), args[0], maxSteps)
			}
			if err != nil {
				return err
			}
			return printAgentResponse(cmd, resp)
		},
	}
	cmd.Flags().IntVar(&maxSteps, "max-steps", 0, "Override the configured max orchestration steps")
	cmd.Flags().StringVar(&contract, "contract", "", "Handoff contract every sub-goal's result must satisfy")
	return cmd
}

// buildSessionCmd groups spec.md §6's session.create / Session.send_message
// / Session.clear / Session.message_count into one REPL-style command,
// since a CLI invocation has no way to hold a live Session handle open
// across separate process runs.
func buildSessionCmd() *cobra.Command {
	var storageKind string
	var runnerAgent string
	var sessionID string
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Hold an interactive multi-turn session open with one agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, _, err := buildFacade(cmd.Context())
			if err != nil {
				return err
			}
			defer f.Shutdown()

			sess, err := f.SessionCreate(cmd.Context(), sessionID, storageKind, runnerAgent)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			scanner := newLineScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, "> ")
				line, ok := scanner()
				if !ok {
					break
				}
				line = strings.TrimSpace(line)
				switch line {
				case "":
					continue
				case "/clear":
					if err := sess.Clear(cmd.Context()); err != nil {
						return err
					}
					fmt.Fprintln(out, "session cleared")
					continue
				case "/count":
					fmt.Fprintln(out, sess.MessageCount())
					continue
				case "/exit", "/quit":
					return nil
				}
				resp, err := sess.SendMessage(cmd.Context(), line, 0)
				if err != nil {
					return err
				}
				if err := printAgentResponse(cmd, resp); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionID, "id", "cli-session", "Session identifier")
	cmd.Flags().StringVar(&storageKind, "storage", "memory", "Conversation storage: memory, file, or sqlite")
	cmd.Flags().StringVar(&runnerAgent, "agent", "", "Name of the agent that drives this session (default: first in roster)")
	return cmd
}

// buildMCPCmd implements spec.md §6's mcp.list_tools and mcp.call_tool.
// Each invocation opens a fresh MCP client for isolation, per spec.md §6.
func buildMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Inspect and invoke tools exposed by an MCP server process",
	}
	cmd.AddCommand(buildMCPListToolsCmd(), buildMCPCallToolCmd())
	return cmd
}

func buildMCPListToolsCmd() *cobra.Command {
	var command string
	var args []string
	cmd := &cobra.Command{
		Use:   "list-tools",
		Short: "List the tools an MCP server exposes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, _, err := buildFacade(cmd.Context())
			if err != nil {
				return err
			}
			defer f.Shutdown()

			tools, err := f.MCPListTools(cmd.Context(), command, args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, t := range tools {
				fmt.Fprintf(out, "%s\t%s\n", t.Name, t.Description)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&command, "command", "", "MCP server command to launch over stdio")
	cmd.Flags().StringSliceVar(&args, "arg", nil, "Argument to pass to the MCP server command (repeatable)")
	return cmd
}

func buildMCPCallToolCmd() *cobra.Command {
	var command string
	var serverArgs []string
	var toolName string
	var paramsJSON string
	cmd := &cobra.Command{
		Use:   "call-tool",
		Short: "Call one tool on an MCP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, _, err := buildFacade(cmd.Context())
			if err != nil {
				return err
			}
			defer f.Shutdown()

			params, err := parseToolParams(paramsJSON)
			if err != nil {
				return facade.NewConfigurationError(fmt.Errorf("invalid --params JSON: %w", err))
			}
			result, err := f.MCPCallTool(cmd.Context(), command, serverArgs, toolName, params)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.Flags().StringVar(&command, "command", "", "MCP server command to launch over stdio")
	cmd.Flags().StringSliceVar(&serverArgs, "arg", nil, "Argument to pass to the MCP server command (repeatable)")
	cmd.Flags().StringVar(&toolName, "tool", "", "Name of the tool to call")
	cmd.Flags().StringVar(&paramsJSON, "params", "{}", "JSON object of tool arguments")
	return cmd
}

func printAgentResponse(cmd *cobra.Command, resp *models.AgentResponse) error {
	out := cmd.OutOrStdout()
	switch resp.Kind {
	case models.ResponseSuccess:
		fmt.Fprintln(out, resp.Result)
	case models.ResponseTimeout:
		fmt.Fprintf(out, "[timeout] %s\n", resp.PartialResult)
	default:
		fmt.Fprintf(out, "[%s] %s\n", resp.Kind, resp.Error)
	}
	return nil
}
