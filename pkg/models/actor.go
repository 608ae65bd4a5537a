package models

import "fmt"

// ActorKind discriminates the fixed roles an ActorId may name. Agent
// carries an associated name, so two Agent actors are distinct ActorIds.
type ActorKind string

const (
	ActorLLM          ActorKind = "llm"
	ActorSupervisor   ActorKind = "supervisor"
	ActorAgent        ActorKind = "agent"
	ActorToolHost     ActorKind = "tool_host"
	ActorRouter       ActorKind = "router"
	ActorHealthMonitor ActorKind = "health_monitor"
)

// ActorId identifies exactly one running task in a process. Agent-kind
// ids carry a Name distinguishing one specialized agent from another;
// all other kinds are singletons within a runtime.
type ActorId struct {
	Kind ActorKind `json:"kind"`
	Name string    `json:"name,omitempty"`
}

// String renders a stable key suitable for map indexing and logging.
func (a ActorId) String() string {
	if a.Name == "" {
		return string(a.Kind)
	}
	return fmt.Sprintf("%s:%s", a.Kind, a.Name)
}

func LLMActor() ActorId          { return ActorId{Kind: ActorLLM} }
func SupervisorActor() ActorId   { return ActorId{Kind: ActorSupervisor} }
func ToolHostActor() ActorId     { return ActorId{Kind: ActorToolHost} }
func RouterActor() ActorId       { return ActorId{Kind: ActorRouter} }
func HealthMonitorActor() ActorId { return ActorId{Kind: ActorHealthMonitor} }
func AgentActor(name string) ActorId { return ActorId{Kind: ActorAgent, Name: name} }
