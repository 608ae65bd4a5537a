package actor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/synapserun/synapse/internal/llm"
	"github.com/synapserun/synapse/internal/react"
	"github.com/synapserun/synapse/internal/supervisor"
	"github.com/synapserun/synapse/internal/toolexec"
	"github.com/synapserun/synapse/pkg/models"
)

// Message kinds understood by the built-in actor wrappers below.
const (
	KindComplete       = "complete"
	KindExecuteTool    = "execute_tool"
	KindExecuteTask    = "execute_task"
	KindOrchestrate    = "orchestrate"
	KindRoute          = "route"
	KindHealthSnapshot = "health_snapshot"
)

// CompletePayload is the Message.Payload shape for KindComplete sent to
// an LLMActor.
type CompletePayload struct {
	Messages models.ConversationHistory
	Options  llm.Options
}

// LLMActor wraps an llm.Gateway so every LLM call in the system, however
// it's triggered, passes through one actor mailbox — giving the gateway's
// optional per-session serialization (spec.md 4.3) a single enforcement
// point even when multiple agents call it concurrently.
type LLMActor struct {
	id      models.ActorId
	gateway *llm.Gateway
}

// NewLLMActor builds an LLMActor identified by models.LLMActor().
func NewLLMActor(gateway *llm.Gateway) *LLMActor {
	return &LLMActor{id: models.LLMActor(), gateway: gateway}
}

func (a *LLMActor) ID() models.ActorId { return a.id }

func (a *LLMActor) Handle(ctx context.Context, msg Message) (interface{}, error) {
	switch msg.Kind {
	case KindComplete:
		p, ok := msg.Payload.(CompletePayload)
		if !ok {
			return nil, fmt.Errorf("actor: LLMActor received a %s payload of type %T", msg.Kind, msg.Payload)
		}
		return a.gateway.Complete(ctx, p.Messages, p.Options)
	default:
		return nil, fmt.Errorf("actor: LLMActor does not understand message kind %q", msg.Kind)
	}
}

// ExecuteToolPayload is the Message.Payload shape for KindExecuteTool.
type ExecuteToolPayload struct {
	Tool      toolLike
	Arguments json.RawMessage
}

// toolLike avoids an import cycle on internal/tool; it is satisfied by
// any internal/tool.Tool value looked up from a *tool.Registry at the
// call site.
type toolLike interface {
	Metadata() models.ToolMetadata
	Validate(arguments json.RawMessage) error
}

// ToolHostActor wraps a toolexec.Executor, giving every tool invocation in
// the system a single mailbox to pass through — a natural point to later
// add system-wide tool concurrency limits without touching call sites.
type ToolHostActor struct {
	id       models.ActorId
	executor *toolexec.Executor
	execute  func(ctx context.Context, args ExecuteToolPayload) (*models.ToolResult, error)
}

// NewToolHostActor builds a ToolHostActor identified by
// models.ToolHostActor(). execute is supplied by the caller (typically a
// thin closure over internal/tool.Registry.Get + toolexec.Executor.Execute)
// since Tool itself lives in internal/tool and importing it here would
// create a cycle with internal/react.
func NewToolHostActor(executor *toolexec.Executor, execute func(ctx context.Context, args ExecuteToolPayload) (*models.ToolResult, error)) *ToolHostActor {
	return &ToolHostActor{id: models.ToolHostActor(), executor: executor, execute: execute}
}

func (a *ToolHostActor) ID() models.ActorId { return a.id }

func (a *ToolHostActor) Handle(ctx context.Context, msg Message) (interface{}, error) {
	switch msg.Kind {
	case KindExecuteTool:
		p, ok := msg.Payload.(ExecuteToolPayload)
		if !ok {
			return nil, fmt.Errorf("actor: ToolHostActor received a %s payload of type %T", msg.Kind, msg.Payload)
		}
		return a.execute(ctx, p)
	default:
		return nil, fmt.Errorf("actor: ToolHostActor does not understand message kind %q", msg.Kind)
	}
}

// ExecuteTaskPayload is the Message.Payload shape for KindExecuteTask.
type ExecuteTaskPayload struct {
	Task          string
	MaxIterations int
	ExtraContext  map[string]string
}

// AgentActor wraps one react.Agent, giving each specialized agent its own
// mailbox and heartbeat so a stuck agent's liveness can be tracked and
// reset independently of the rest of the system (spec.md 4.8).
type AgentActor struct {
	id    models.ActorId
	agent *react.Agent
}

// NewAgentActor builds an AgentActor identified by models.AgentActor(name).
func NewAgentActor(agent *react.Agent) *AgentActor {
	return &AgentActor{id: models.AgentActor(agent.Name()), agent: agent}
}

func (a *AgentActor) ID() models.ActorId { return a.id }

func (a *AgentActor) Handle(ctx context.Context, msg Message) (interface{}, error) {
	switch msg.Kind {
	case KindExecuteTask:
		p, ok := msg.Payload.(ExecuteTaskPayload)
		if !ok {
			return nil, fmt.Errorf("actor: AgentActor %s received a %s payload of type %T", a.id, msg.Kind, msg.Payload)
		}
		return a.agent.ExecuteTask(ctx, p.Task, p.MaxIterations, p.ExtraContext)
	default:
		return nil, fmt.Errorf("actor: AgentActor %s does not understand message kind %q", a.id, msg.Kind)
	}
}

// Reset clears no internal state today — react.Agent is stateless between
// calls to ExecuteTask — but the method exists so the health monitor's
// reset path has somewhere to go if per-call caching is ever added.
func (a *AgentActor) Reset() {}

// OrchestratePayload is the Message.Payload shape for KindOrchestrate.
type OrchestratePayload struct {
	Task     string
	MaxSteps int
}

// SupervisorActorWrapper wraps a supervisor.Supervisor as the single
// "supervisor" actor (models.SupervisorActor()).
type SupervisorActorWrapper struct {
	id         models.ActorId
	supervisor *supervisor.Supervisor
}

// NewSupervisorActor builds the fixed supervisor actor.
func NewSupervisorActor(s *supervisor.Supervisor) *SupervisorActorWrapper {
	return &SupervisorActorWrapper{id: models.SupervisorActor(), supervisor: s}
}

func (a *SupervisorActorWrapper) ID() models.ActorId { return a.id }

func (a *SupervisorActorWrapper) Handle(ctx context.Context, msg Message) (interface{}, error) {
	switch msg.Kind {
	case KindOrchestrate:
		p, ok := msg.Payload.(OrchestratePayload)
		if !ok {
			return nil, fmt.Errorf("actor: SupervisorActor received a %s payload of type %T", msg.Kind, msg.Payload)
		}
		return a.supervisor.Orchestrate(ctx, p.Task, p.MaxSteps)
	default:
		return nil, fmt.Errorf("actor: SupervisorActor does not understand message kind %q", msg.Kind)
	}
}

// RoutePayload is the Message.Payload shape for KindRoute.
type RoutePayload struct {
	Task string
}

// Router picks the best agent name for a task. A small, swappable
// decision surface — internal/router's keyword/LLM-based implementation
// satisfies this.
type Router interface {
	Route(ctx context.Context, task string) (string, error)
}

// RouterActorWrapper wraps a Router as the single "router" actor
// (models.RouterActor()).
type RouterActorWrapper struct {
	id     models.ActorId
	router Router
}

// NewRouterActor builds the fixed router actor.
func NewRouterActor(router Router) *RouterActorWrapper {
	return &RouterActorWrapper{id: models.RouterActor(), router: router}
}

func (a *RouterActorWrapper) ID() models.ActorId { return a.id }

func (a *RouterActorWrapper) Handle(ctx context.Context, msg Message) (interface{}, error) {
	switch msg.Kind {
	case KindRoute:
		p, ok := msg.Payload.(RoutePayload)
		if !ok {
			return nil, fmt.Errorf("actor: RouterActor received a %s payload of type %T", msg.Kind, msg.Payload)
		}
		return a.router.Route(ctx, p.Task)
	default:
		return nil, fmt.Errorf("actor: RouterActor does not understand message kind %q", msg.Kind)
	}
}

// HealthSnapshot reports a single actor's observed liveness, returned by
// HealthMonitorActor in response to KindHealthSnapshot.
type HealthSnapshot struct {
	Actor    models.ActorId
	Restarts int
}

// HealthMonitorActor is the single "health_monitor" actor
// (models.HealthMonitorActor()). It answers KindHealthSnapshot requests
// by reading restart counts off the owning Runtime; the actual
// heartbeat-timeout-triggered reset logic lives in Runtime.monitorHealth
// and runs independently of this actor's mailbox.
type HealthMonitorActor struct {
	id      models.ActorId
	runtime *Runtime
	watch   []models.ActorId
}

// NewHealthMonitorActor builds the fixed health-monitor actor, reporting
// on the given set of watched actor ids.
func NewHealthMonitorActor(runtime *Runtime, watch []models.ActorId) *HealthMonitorActor {
	return &HealthMonitorActor{id: models.HealthMonitorActor(), runtime: runtime, watch: watch}
}

func (a *HealthMonitorActor) ID() models.ActorId { return a.id }

func (a *HealthMonitorActor) Handle(ctx context.Context, msg Message) (interface{}, error) {
	switch msg.Kind {
	case KindHealthSnapshot:
		snapshots := make([]HealthSnapshot, 0, len(a.watch))
		for _, id := range a.watch {
			snapshots = append(snapshots, HealthSnapshot{Actor: id, Restarts: a.runtime.Restarts(id)})
		}
		return snapshots, nil
	default:
		return nil, fmt.Errorf("actor: HealthMonitorActor does not understand message kind %q", msg.Kind)
	}
}
