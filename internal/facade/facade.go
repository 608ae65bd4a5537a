// Package facade wires every internal component into the single set of
// operations spec.md 6 calls the "Facade API": init, generate_text,
// generate_stream, agent.run_task, router.route_task,
// supervisor.orchestrate(_with_validation), session.*, mcp.*, shutdown.
// cmd/synapse is a thin cobra layer over this package — nothing here
// depends on cobra or on os.Args.
package facade

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/synapserun/synapse/internal/actor"
	"github.com/synapserun/synapse/internal/config"
	"github.com/synapserun/synapse/internal/handoff"
	"github.com/synapserun/synapse/internal/llm"
	"github.com/synapserun/synapse/internal/llmprovider"
	"github.com/synapserun/synapse/internal/mcp"
	"github.com/synapserun/synapse/internal/react"
	"github.com/synapserun/synapse/internal/router"
	"github.com/synapserun/synapse/internal/session"
	"github.com/synapserun/synapse/internal/supervisor"
	"github.com/synapserun/synapse/internal/tool"
	"github.com/synapserun/synapse/internal/toolexec"
	"github.com/synapserun/synapse/internal/tools/exec"
	"github.com/synapserun/synapse/internal/tools/files"
	"github.com/synapserun/synapse/internal/tools/websearch"
	"github.com/synapserun/synapse/internal/validate"
	"github.com/synapserun/synapse/pkg/models"
)

// AgentSpec describes one specialized agent for roster-building
// operations (router.route_task, supervisor.orchestrate): the facade's
// equivalent of spec.md 6's optional `agents?` parameter, since the CLI
// has no in-process caller to pass a live object graph. Field names
// mirror models.AgentConfig's json tags in snake_case, the convention
// the rest of this tree uses for yaml keys (internal/config/config.go).
type AgentSpec struct {
	Name             string   `yaml:"name"`
	Description      string   `yaml:"description"`
	SystemPrompt     string   `yaml:"system_prompt"`
	Tools            []string `yaml:"tools"`
	ResponseSchema   string   `yaml:"response_schema"`
	ReturnToolOutput bool     `yaml:"return_tool_output"`
	MaxIterations    int      `yaml:"max_iterations"`
	Contract         string   `yaml:"contract"`
}

// agentConfig projects the roster-file fields onto models.AgentConfig.
func (s AgentSpec) agentConfig() models.AgentConfig {
	return models.AgentConfig{
		Name:             s.Name,
		Description:      s.Description,
		SystemPrompt:     s.SystemPrompt,
		Tools:            s.Tools,
		ResponseSchema:   s.ResponseSchema,
		ReturnToolOutput: s.ReturnToolOutput,
	}
}

// Manifest is the top-level shape of an agents roster file
// (cmd/synapse's --agents flag).
type Manifest struct {
	Agents []AgentSpec `yaml:"agents"`
}

// LoadManifest reads a roster file (cmd/synapse's --agents flag) listing
// the agents available to router.route_task and supervisor.orchestrate.
func LoadManifest(path string) ([]AgentSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("facade: reading agents manifest: %w", err)
	}
	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("facade: parsing agents manifest: %w", err)
	}
	if len(manifest.Agents) == 0 {
		return nil, fmt.Errorf("facade: agents manifest %q lists no agents", path)
	}
	return manifest.Agents, nil
}

// ConfigurationError wraps a failure that must surface as CLI exit code
// 2 (spec.md 6).
type ConfigurationError struct{ cause error }

func (e *ConfigurationError) Error() string { return e.cause.Error() }
func (e *ConfigurationError) Unwrap() error { return e.cause }

// NewConfigurationError wraps cause for callers outside this package
// (cmd/synapse's flag validation) that need to signal CLI exit code 2
// without constructing the unexported cause field directly.
func NewConfigurationError(cause error) error { return &ConfigurationError{cause: cause} }

// InitializationError wraps a failure that must surface as CLI exit
// code 3 (spec.md 6): the config was valid but the runtime could not
// come up (bad credentials, unreachable provider, ...).
type InitializationError struct{ cause error }

func (e *InitializationError) Error() string { return e.cause.Error() }
func (e *InitializationError) Unwrap() error { return e.cause }

// Facade is the process-wide object graph backing every operation
// spec.md 6 names. It is built once by init() and torn down once by
// shutdown().
type Facade struct {
	cfg    *config.Config
	logger *slog.Logger

	gateway     *llm.Gateway
	registry    *tool.Registry
	executor    *toolexec.Executor
	coordinator *handoff.Coordinator

	runtime *actor.Runtime
	cancel  context.CancelFunc

	mu          sync.RWMutex
	agentHandles map[string]supervisor.AgentHandle
	agents       map[string]*react.Agent
	sessions     map[string]*session.Session

	started bool
}

// New assembles the Facade's stateless components from cfg: the LLM
// provider (selected by cfg.LLM.Model's vendor prefix), a default tool
// registry (file read/write/edit, process exec, web search), and a
// handoff coordinator seeded with the built-in contracts. It does not
// start the actor runtime — call Init for that.
func New(cfg *config.Config, logger *slog.Logger) (*Facade, error) {
	if logger == nil {
		logger = slog.Default()
	}
	provider, err := buildProvider(cfg.LLM)
	if err != nil {
		return nil, &ConfigurationError{cause: err}
	}

	registry := tool.NewRegistry()
	for _, t := range defaultTools(cfg) {
		if err := registry.Register(t); err != nil {
			return nil, &ConfigurationError{cause: fmt.Errorf("facade: registering builtin tool: %w", err)}
		}
	}

	return &Facade{
		cfg:          cfg,
		logger:       logger,
		gateway:      llm.NewGateway(provider, 0, false),
		registry:     registry,
		executor:     toolexec.New(toolexec.DefaultConfig()),
		coordinator:  handoff.New(validate.New()),
		agentHandles: make(map[string]supervisor.AgentHandle),
		agents:       make(map[string]*react.Agent),
		sessions:     make(map[string]*session.Session),
	}, nil
}

func buildProvider(cfg config.LLMConfig) (llm.Provider, error) {
	model := strings.ToLower(cfg.Model)
	switch {
	case strings.HasPrefix(model, "gpt-") || strings.HasPrefix(model, "o1") || strings.Contains(model, "openai"):
		return llmprovider.NewOpenAI(llmprovider.OpenAIConfig{APIKey: cfg.APIKey, DefaultModel: cfg.Model})
	default:
		return llmprovider.NewAnthropic(llmprovider.AnthropicConfig{APIKey: cfg.APIKey, DefaultModel: cfg.Model})
	}
}

func defaultTools(cfg *config.Config) []tool.Tool {
	workspace := "."
	fileCfg := files.Config{Workspace: workspace, MaxReadBytes: 256 * 1024}
	return []tool.Tool{
		files.NewReadTool(fileCfg),
		files.NewWriteTool(fileCfg),
		files.NewEditTool(fileCfg),
		exec.NewProcessTool(exec.NewManager(workspace)),
		websearch.NewWebSearchTool(&websearch.Config{DefaultBackend: websearch.BackendDuckDuckGo, DefaultResultCount: 5}),
	}
}

// Init implements spec.md 6's `init(config) → Ok`: idempotent, builds
// one react.Agent per roster entry, registers the fixed actor set
// (llm, tool_host, one agent actor per entry, supervisor, router,
// health_monitor), and starts the ActorRuntime. Calling Init again
// after a prior success is a no-op.
func (f *Facade) Init(ctx context.Context, roster []AgentSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started {
		return nil
	}
	if len(roster) == 0 {
		return &ConfigurationError{cause: fmt.Errorf("facade: init requires at least one agent in the roster")}
	}

	rc := actor.Config{
		ChannelBufferSize:   f.cfg.System.ChannelBufferSize,
		HeartbeatIntervalMs: f.cfg.System.HeartbeatIntervalMS,
		HeartbeatTimeoutMs:  f.cfg.System.HeartbeatTimeoutMS,
		CheckIntervalMs:     f.cfg.System.CheckIntervalMS,
		AutoRestart:         f.cfg.System.AutoRestart,
	}
	runtime := actor.New(rc)

	descriptors := make([]router.AgentDescriptor, 0, len(roster))
	watch := []models.ActorId{models.LLMActor(), models.ToolHostActor(), models.SupervisorActor(), models.RouterActor()}

	for _, spec := range roster {
		if spec.Name == "" {
			return &ConfigurationError{cause: fmt.Errorf("facade: roster entry missing a name")}
		}
		scoped := f.registry
		if len(spec.Tools) > 0 {
			scoped = f.registry.Subset(spec.Tools)
		}
		maxIter := spec.MaxIterations
		if maxIter <= 0 {
			maxIter = f.cfg.Agent.MaxIterations
		}
		agent := react.New(spec.agentConfig(), scoped, f.gateway, f.executor)
		f.agents[spec.Name] = agent
		f.agentHandles[spec.Name] = supervisor.AgentHandle{Agent: agent, ContractName: spec.Contract}
		descriptors = append(descriptors, router.AgentDescriptor{Name: spec.Name, Description: spec.Description})

		if err := runtime.Register(actor.NewAgentActor(agent)); err != nil {
			return &InitializationError{cause: err}
		}
		watch = append(watch, models.AgentActor(spec.Name))
	}

	if err := runtime.Register(actor.NewLLMActor(f.gateway)); err != nil {
		return &InitializationError{cause: err}
	}
	toolHost := actor.NewToolHostActor(f.executor, func(ctx context.Context, args actor.ExecuteToolPayload) (*models.ToolResult, error) {
		t, ok := args.Tool.(tool.Tool)
		if !ok {
			return nil, fmt.Errorf("facade: tool payload is not an internal/tool.Tool")
		}
		return f.executor.Execute(ctx, t, args.Arguments)
	})
	if err := runtime.Register(toolHost); err != nil {
		return &InitializationError{cause: err}
	}

	sup := supervisor.New(f.gateway, f.agentHandles, f.coordinator, supervisor.Config{MaxSubGoals: f.cfg.Agent.MaxSubGoals})
	if err := runtime.Register(actor.NewSupervisorActor(sup)); err != nil {
		return &InitializationError{cause: err}
	}

	rt := router.New(f.gateway, descriptors)
	if err := runtime.Register(actor.NewRouterActor(rt)); err != nil {
		return &InitializationError{cause: err}
	}

	if err := runtime.Register(actor.NewHealthMonitorActor(runtime, watch)); err != nil {
		return &InitializationError{cause: err}
	}

	runCtx, cancel := context.WithCancel(ctx)
	runtime.Start(runCtx)
	f.runtime = runtime
	f.cancel = cancel
	f.started = true
	return nil
}

func (f *Facade) requireStarted() error {
	if !f.started {
		return &InitializationError{cause: fmt.Errorf("facade: runtime not initialized; call init first")}
	}
	return nil
}

// GenerateText implements spec.md 6's `generate_text(prompt, options?) → text`.
func (f *Facade) GenerateText(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	if err := f.requireStarted(); err != nil {
		return "", err
	}
	result, err := f.runtime.Send(ctx, models.LLMActor(), actor.KindComplete, actor.CompletePayload{
		Messages: models.ConversationHistory{{Role: models.RoleUser, Content: prompt}},
		Options:  opts,
	})
	if err != nil {
		return "", err
	}
	text, _ := result.(string)
	return text, nil
}

// GenerateStream implements spec.md 6's
// `generate_stream(prompt, options, sink) → text`. Streaming deltas are
// delivered synchronously through the caller's sink, so this call
// bypasses the LLM actor's mailbox (a Runtime.Send reply channel only
// carries one terminal Result, not a stream of partial ones) and talks
// to the gateway directly; the gateway still serializes calls per
// spec.md 4.3 when configured stateful.
func (f *Facade) GenerateStream(ctx context.Context, prompt string, opts llm.Options, sink llm.StreamSink) (string, error) {
	if err := f.requireStarted(); err != nil {
		return "", err
	}
	return f.gateway.CompleteStream(ctx, models.ConversationHistory{{Role: models.RoleUser, Content: prompt}}, opts, sink)
}

// RunTask implements spec.md 6's `agent.run_task(task, max_iterations?) → AgentResponse`.
func (f *Facade) RunTask(ctx context.Context, agentName, task string, maxIterations int) (*models.AgentResponse, error) {
	if err := f.requireStarted(); err != nil {
		return nil, err
	}
	if maxIterations <= 0 {
		maxIterations = f.cfg.Agent.MaxIterations
	}
	result, err := f.runtime.Send(ctx, models.AgentActor(agentName), actor.KindExecuteTask, actor.ExecuteTaskPayload{
		Task: task, MaxIterations: maxIterations,
	})
	if err != nil {
		return nil, err
	}
	resp, _ := result.(*models.AgentResponse)
	return resp, nil
}

// RouteTask implements spec.md 6's
// `router.route_task(task, agents?, max_iterations?) → AgentResponse`:
// one classification call through the router actor, then exactly one
// delegation to the chosen agent — a one-way ticket, no re-routing.
func (f *Facade) RouteTask(ctx context.Context, task string, maxIterations int) (*models.AgentResponse, error) {
	if err := f.requireStarted(); err != nil {
		return nil, err
	}
	result, err := f.runtime.Send(ctx, models.RouterActor(), actor.KindRoute, actor.RoutePayload{Task: task})
	if err != nil {
		return nil, err
	}
	agentName, _ := result.(string)
	return f.RunTask(ctx, agentName, task, maxIterations)
}

// Orchestrate implements spec.md 6's
// `supervisor.orchestrate(task, agents?, max_steps?) → AgentResponse`.
func (f *Facade) Orchestrate(ctx context.Context, task string, maxSteps int) (*models.AgentResponse, error) {
	if err := f.requireStarted(); err != nil {
		return nil, err
	}
	if maxSteps <= 0 {
		maxSteps = f.cfg.Agent.MaxOrchestrationSteps
	}
	result, err := f.runtime.Send(ctx, models.SupervisorActor(), actor.KindOrchestrate, actor.OrchestratePayload{
		Task: task, MaxSteps: maxSteps,
	})
	if err != nil {
		return nil, err
	}
	resp, _ := result.(*models.AgentResponse)
	return resp, nil
}

// OrchestrateWithValidation implements spec.md 6's
// `supervisor.orchestrate_with_validation(coordinator, task, agents?, max_steps?) → AgentResponse`:
// every sub-goal's handoff is checked against contractName, even for
// agents whose roster entry left Contract empty. Unlike Orchestrate
// this builds its own Supervisor over a copy of the roster rather than
// going through the fixed supervisor actor, since the contract to
// enforce is a per-call argument, not fixed at init time.
func (f *Facade) OrchestrateWithValidation(ctx context.Context, contractName, task string, maxSteps int) (*models.AgentResponse, error) {
	if err := f.requireStarted(); err != nil {
		return nil, err
	}
	if _, ok := f.coordinator.Contract(contractName); !ok {
		return nil, &ConfigurationError{cause: fmt.Errorf("facade: unregistered handoff contract %q", contractName)}
	}
	if maxSteps <= 0 {
		maxSteps = f.cfg.Agent.MaxOrchestrationSteps
	}

	f.mu.RLock()
	validated := make(map[string]supervisor.AgentHandle, len(f.agentHandles))
	for name, handle := range f.agentHandles {
		if handle.ContractName == "" {
			handle.ContractName = contractName
		}
		validated[name] = handle
	}
	f.mu.RUnlock()

	sup := supervisor.New(f.gateway, validated, f.coordinator, supervisor.Config{MaxSubGoals: f.cfg.Agent.MaxSubGoals})
	return sup.Orchestrate(ctx, task, maxSteps)
}

// SessionCreate implements spec.md 6's `session.create(id, storage_kind) → Session`.
// runnerAgent selects which registered agent drives Session.send_message;
// an empty name uses the first roster entry registered by Init.
func (f *Facade) SessionCreate(ctx context.Context, id, storageKind, runnerAgent string) (*session.Session, error) {
	if err := f.requireStarted(); err != nil {
		return nil, err
	}
	store, err := f.buildStore(storageKind)
	if err != nil {
		return nil, &ConfigurationError{cause: err}
	}

	f.mu.RLock()
	runner, ok := f.agents[runnerAgent]
	if !ok && runnerAgent == "" {
		for _, a := range f.agents {
			runner = a
			ok = true
			break
		}
	}
	f.mu.RUnlock()
	if !ok {
		return nil, &ConfigurationError{cause: fmt.Errorf("facade: no agent named %q is registered", runnerAgent)}
	}

	sess, err := session.Create(ctx, id, runner, store)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.sessions[sess.ID()] = sess
	f.mu.Unlock()
	return sess, nil
}

// Session looks up a previously created session by id.
func (f *Facade) Session(id string) (*session.Session, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	s, ok := f.sessions[id]
	return s, ok
}

func (f *Facade) buildStore(kind string) (session.ConversationStore, error) {
	switch strings.ToLower(kind) {
	case "", "memory":
		return session.NewMemoryStore(), nil
	case "file":
		return session.NewFileStore(".synapse/sessions")
	case "sqlite":
		return session.NewSQLiteStore(".synapse/sessions.db")
	default:
		return nil, fmt.Errorf("facade: unknown session storage kind %q", kind)
	}
}

// MCPListTools implements spec.md 6's
// `mcp.list_tools(server_command, args) → sequence<ToolMetadata>`: a
// fresh client per call, per spec.md 6's "a new client is created per
// external invocation to guarantee isolation."
func (f *Facade) MCPListTools(ctx context.Context, serverCommand string, args []string) ([]models.ToolMetadata, error) {
	client := mcp.NewClient(&mcp.ServerConfig{
		ID: "facade-mcp", Name: "facade-mcp", Transport: mcp.TransportStdio,
		Command: serverCommand, Args: args,
	}, f.logger)
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("facade: mcp connect: %w", err)
	}
	defer client.Close()

	tools := client.Tools()
	out := make([]models.ToolMetadata, 0, len(tools))
	for _, t := range tools {
		bridge := mcp.NewToolBridge(clientAdapter{client}, "facade-mcp", t, t.Name)
		out = append(out, bridge.Metadata())
	}
	return out, nil
}

// clientAdapter satisfies mcp.ToolCaller for a single *mcp.Client so
// MCPListTools can reuse ToolBridge.Metadata() instead of hand-rolling
// the MCPTool-to-ToolMetadata schema conversion a second time.
type clientAdapter struct{ c *mcp.Client }

func (a clientAdapter) CallTool(ctx context.Context, serverID, toolName string, arguments map[string]any) (*mcp.ToolCallResult, error) {
	return a.c.CallTool(ctx, toolName, arguments)
}

// MCPCallTool implements spec.md 6's
// `mcp.call_tool(server_command, args, tool_name, params) → text`.
func (f *Facade) MCPCallTool(ctx context.Context, serverCommand string, args []string, toolName string, params map[string]any) (string, error) {
	client := mcp.NewClient(&mcp.ServerConfig{
		ID: "facade-mcp", Name: "facade-mcp", Transport: mcp.TransportStdio,
		Command: serverCommand, Args: args,
	}, f.logger)
	if err := client.Connect(ctx); err != nil {
		return "", fmt.Errorf("facade: mcp connect: %w", err)
	}
	defer client.Close()

	result, err := client.CallTool(ctx, toolName, params)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

// Shutdown implements spec.md 6's `shutdown() → Ok`: cancels the
// actor runtime's context, stopping every actor's receive loop and the
// health monitor. A Facade that was never Init'd shuts down as a no-op.
func (f *Facade) Shutdown() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel != nil {
		f.cancel()
	}
	f.started = false
}
